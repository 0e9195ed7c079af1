// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the SaavnTune streaming player.
package domain

import (
	"strings"
	"time"
)

// Song is a playable track resolved from the catalog.
// Songs are values: two songs with the same ID are interchangeable for queue purposes.
type Song struct {
	// ID is the stable catalog identifier
	ID string `json:"id" yaml:"id"`

	// Name is the song title
	Name string `json:"name" yaml:"name"`

	// Artists is the pre-joined display string of primary artists
	Artists string `json:"artists" yaml:"artists"`

	// Duration is the track length in seconds
	Duration int `json:"duration" yaml:"duration"`

	// ImageURL is the artwork URL chosen by image quality preference
	ImageURL string `json:"imageUrl" yaml:"imageUrl"`

	// StreamURL is the resolved playable URL (empty if unresolved)
	StreamURL string `json:"streamUrl" yaml:"streamUrl"`
}

// ArtistNames splits the joined artist string back into individual names.
func (s Song) ArtistNames() []string {
	if strings.TrimSpace(s.Artists) == "" {
		return nil
	}
	parts := strings.Split(s.Artists, ArtistSeparator)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// ArtistSeparator joins primary artist names into Song.Artists.
const ArtistSeparator = ", "

// NoCurrentIndex marks a queue without a current song.
const NoCurrentIndex = -1

// PlayerState is the aggregate owned by the playback controller.
// Readers always receive a copy; the controller is the single writer.
type PlayerState struct {
	// CurrentSong is the loaded song (nil when nothing is loaded)
	CurrentSong *Song

	// IsPlaying mirrors the engine's playing flag
	IsPlaying bool

	// CurrentPosition is the playback position in milliseconds
	CurrentPosition int64

	// Duration is the track length in milliseconds (0 before metadata is ready)
	Duration int64

	// Queue is the ordered playback queue
	Queue []Song

	// CurrentIndex points into Queue, or NoCurrentIndex
	CurrentIndex int

	// Ducking is set while output is attenuated for a transient focus loss
	Ducking bool

	// BridgeConnected reports whether at least one session bridge is attached
	BridgeConnected bool
}

// NewPlayerState returns the empty state a controller starts with.
func NewPlayerState() PlayerState {
	return PlayerState{
		Queue:        []Song{},
		CurrentIndex: NoCurrentIndex,
	}
}

// Clone returns a deep copy safe to hand to observers.
func (s PlayerState) Clone() PlayerState {
	out := s
	out.Queue = make([]Song, len(s.Queue))
	copy(out.Queue, s.Queue)
	if s.CurrentSong != nil {
		song := *s.CurrentSong
		out.CurrentSong = &song
	}
	return out
}

// Status derives a coarse playback status from the state fields.
func (s PlayerState) Status() PlaybackStatus {
	switch {
	case s.CurrentSong == nil:
		return StatusStopped
	case s.IsPlaying:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

// Snapshot extracts the persisted part of the state.
func (s PlayerState) Snapshot() QueueSnapshot {
	q := make([]Song, len(s.Queue))
	copy(q, s.Queue)
	return QueueSnapshot{Queue: q, CurrentIndex: s.CurrentIndex}
}

// QueueSnapshot is the single record stored by a queue store.
type QueueSnapshot struct {
	Queue        []Song `json:"queue" yaml:"queue"`
	CurrentIndex int    `json:"currentIndex" yaml:"currentIndex"`
}

// EmptySnapshot is what stores return when nothing (or garbage) is persisted.
func EmptySnapshot() QueueSnapshot {
	return QueueSnapshot{Queue: []Song{}, CurrentIndex: NoCurrentIndex}
}

// Hydratable reports whether the snapshot can seed an empty controller.
func (q QueueSnapshot) Hydratable() bool {
	return len(q.Queue) > 0 && q.CurrentIndex >= 0 && q.CurrentIndex < len(q.Queue)
}

// PlaybackStatus represents the current playback state.
type PlaybackStatus int

const (
	// StatusStopped indicates nothing is loaded
	StatusStopped PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates a song is loaded but not playing
	StatusPaused
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MediaItem is what the controller hands to a playback engine.
type MediaItem struct {
	// URI is the stream location
	URI string

	// Title is the display title
	Title string

	// Artist is the display artist line
	Artist string

	// ArtworkURI is the cover image location
	ArtworkURI string

	// Duration is the catalog duration, used until the engine knows better
	Duration time.Duration
}

// MediaItemFromSong builds the engine payload for a song.
func MediaItemFromSong(s Song) MediaItem {
	return MediaItem{
		URI:        s.StreamURL,
		Title:      s.Name,
		Artist:     s.Artists,
		ArtworkURI: s.ImageURL,
		Duration:   time.Duration(s.Duration) * time.Second,
	}
}

// FocusChange is an audio focus transition reported by a focus arbiter.
type FocusChange int

const (
	// FocusGain means exclusive output was (re)granted
	FocusGain FocusChange = iota

	// FocusLoss means another application took output permanently
	FocusLoss

	// FocusLossTransient means output was taken for a short while
	FocusLossTransient

	// FocusLossTransientCanDuck means output may continue at reduced volume
	FocusLossTransientCanDuck
)

// String returns a human-readable representation of the focus change.
func (f FocusChange) String() string {
	switch f {
	case FocusGain:
		return "gain"
	case FocusLoss:
		return "loss"
	case FocusLossTransient:
		return "loss_transient"
	case FocusLossTransientCanDuck:
		return "loss_transient_can_duck"
	default:
		return "unknown"
	}
}

// EngineEventKind enumerates playback engine notifications.
type EngineEventKind int

const (
	// EnginePlayingChanged reports a change of the engine playing flag
	EnginePlayingChanged EngineEventKind = iota

	// EngineReady reports that the loaded item is decoded and its duration known
	EngineReady

	// EngineEnded reports that the loaded item played to the end
	EngineEnded

	// EnginePositionDiscontinuity reports a jump in position (seek)
	EnginePositionDiscontinuity

	// EngineFailed reports that the loaded item cannot be played
	EngineFailed
)

// EngineEvent is emitted by playback engines through their listener.
type EngineEvent struct {
	Kind     EngineEventKind
	Playing  bool
	Duration time.Duration
	Position time.Duration
	Err      error
}

// QualityURL is one quality variant of an image or a stream.
type QualityURL struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// ArtistRef is a primary artist reference on a catalog track.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogTrack is a song item as returned by the remote catalog.
type CatalogTrack struct {
	ID              string
	Name            string
	DurationSeconds int
	Images          []QualityURL
	DownloadURLs    []QualityURL
	PrimaryArtists  []ArtistRef
}

// CatalogAlbum is an album item; Tracks is only filled by detail lookups.
type CatalogAlbum struct {
	ID     string
	Name   string
	Images []QualityURL
	Tracks []CatalogTrack
}

// CatalogPlaylist is a playlist item; Tracks is only filled by detail lookups.
type CatalogPlaylist struct {
	ID     string
	Name   string
	Images []QualityURL
	Tracks []CatalogTrack
}

// CatalogArtist is an artist detail record.
type CatalogArtist struct {
	ID     string
	Name   string
	Images []QualityURL
}

// AlbumSummary is a display-ready album row.
type AlbumSummary struct {
	ID       string
	Name     string
	ImageURL string
}
