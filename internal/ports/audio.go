// Package ports define interfaces for dependency inversion.
// These interfaces allow the core business logic to remain independent of external frameworks.
package ports

import (
	"time"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

// EngineListener receives playback engine notifications.
// Engines must invoke it without holding their own locks; it must not block.
type EngineListener func(event domain.EngineEvent)

// PlaybackEngine is the interface for streaming audio playback engines.
// It holds at most one media item at a time, mirroring a single-item media player.
//
// The controller owns the engine exclusively; no other component issues commands to it.
//
// Thread-safety: Implementations must be thread-safe.
type PlaybackEngine interface {
	// Load stops current playback, clears the loaded item, sets the new item and
	// starts preparing it. Preparation may finish asynchronously; readiness is
	// reported with an EngineReady event.
	//
	// Returns an error if the item cannot even be accepted (e.g. empty URI).
	Load(item domain.MediaItem) error

	// Play starts or resumes playback. If the item is still preparing,
	// playback begins as soon as it is ready.
	Play() error

	// Pause pauses playback, keeping the position.
	Pause() error

	// Stop halts playback and clears the loaded item.
	Stop() error

	// Seek jumps to the given position within the loaded item.
	Seek(position time.Duration) error

	// SetVolume sets output gain (0.0 to 1.0).
	SetVolume(volume float64) error

	// Volume returns the output gain.
	Volume() float64

	// IsPlaying reports the live engine playing flag.
	IsPlaying() bool

	// Loaded reports whether an item is set (preparing or ready).
	Loaded() bool

	// Position returns the live playback position.
	Position() time.Duration

	// Duration returns the length of the loaded item (0 if unknown).
	Duration() time.Duration

	// SetListener registers the event listener, replacing any previous one.
	SetListener(listener EngineListener)

	// Shutdown releases all engine resources.
	Shutdown() error
}
