// Package mock provides a mock implementation of the PlaybackEngine interface.
// This is used for testing services and for dry runs without an audio device.
package mock

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// defaultDuration is used when a media item carries no catalog duration.
const defaultDuration = 3 * time.Minute

// Engine is a mock implementation of the PlaybackEngine interface.
// It simulates a single-item player in memory without actually playing audio.
//
// Thread-safety: This implementation is thread-safe. The listener is always
// invoked after the engine lock is released.
type Engine struct {
	// Dependencies
	logger   *slog.Logger
	listener ports.EngineListener

	// Item state
	item          *domain.MediaItem
	ready         bool
	playing       bool
	playWhenReady bool
	position      time.Duration
	duration      time.Duration
	volume        float64
	shutdown      bool

	// Recorded history (for assertions)
	loads     []domain.MediaItem
	stopCount int

	mu sync.RWMutex

	// Behavior configuration (for testing error scenarios)
	autoReady bool
	failLoad  bool
	failPlay  bool
}

// NewEngine creates a new mock playback engine.
// Loaded items become ready immediately unless SetAutoReady(false) is used.
func NewEngine() *Engine {
	return &Engine{
		volume:    1.0,
		autoReady: true,
	}
}

// SetLogger sets the logger for this engine.
// This should be called after construction before using the engine.
func (m *Engine) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// SetAutoReady controls whether Load reports readiness immediately (for testing).
func (m *Engine) SetAutoReady(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReady = auto
}

// SetFailLoad configures the mock to fail loading items (for testing).
func (m *Engine) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetFailPlay configures the mock to fail playback (for testing).
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetListener registers the event listener.
func (m *Engine) SetListener(listener ports.EngineListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = listener
}

// emit delivers events outside the engine lock.
func (m *Engine) emit(events []domain.EngineEvent) {
	m.mu.RLock()
	listener := m.listener
	m.mu.RUnlock()

	if listener == nil {
		return
	}
	for _, e := range events {
		listener(e)
	}
}

// Load replaces the current item.
func (m *Engine) Load(item domain.MediaItem) error {
	m.mu.Lock()

	if m.shutdown {
		m.mu.Unlock()
		return domain.ErrNotInitialized
	}

	if item.URI == "" {
		m.mu.Unlock()
		return domain.ErrInvalidMediaURI
	}

	if m.failLoad {
		m.mu.Unlock()
		return domain.NewAudioEngineError("load", item.URI, "mock load failed", nil)
	}

	var events []domain.EngineEvent
	if m.playing {
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}

	loaded := item
	m.item = &loaded
	m.loads = append(m.loads, item)
	m.playing = false
	m.playWhenReady = false
	m.position = 0
	m.duration = item.Duration
	if m.duration <= 0 {
		m.duration = defaultDuration
	}
	m.ready = m.autoReady
	if m.ready {
		events = append(events, domain.EngineEvent{Kind: domain.EngineReady, Duration: m.duration})
	}

	if m.logger != nil {
		m.logger.Debug("mock item loaded", slog.String("uri", item.URI))
	}
	m.mu.Unlock()

	m.emit(events)
	return nil
}

// Play starts or resumes playback. Before readiness it only records the intent.
func (m *Engine) Play() error {
	m.mu.Lock()

	if m.shutdown {
		m.mu.Unlock()
		return domain.ErrNotInitialized
	}

	if m.item == nil {
		m.mu.Unlock()
		return domain.ErrNoMediaLoaded
	}

	if m.failPlay {
		m.mu.Unlock()
		return domain.ErrPlaybackFailed
	}

	var events []domain.EngineEvent
	if !m.ready {
		m.playWhenReady = true
	} else if !m.playing {
		m.playing = true
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: true})
	}
	m.mu.Unlock()

	m.emit(events)
	return nil
}

// Pause pauses playback.
func (m *Engine) Pause() error {
	m.mu.Lock()

	if m.item == nil {
		m.mu.Unlock()
		return domain.ErrNoMediaLoaded
	}

	m.playWhenReady = false
	var events []domain.EngineEvent
	if m.playing {
		m.playing = false
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}
	m.mu.Unlock()

	m.emit(events)
	return nil
}

// Stop stops playback and clears the item.
func (m *Engine) Stop() error {
	m.mu.Lock()

	var events []domain.EngineEvent
	if m.playing {
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}

	m.item = nil
	m.ready = false
	m.playing = false
	m.playWhenReady = false
	m.position = 0
	m.duration = 0
	m.stopCount++
	m.mu.Unlock()

	m.emit(events)
	return nil
}

// Seek sets the playback position.
func (m *Engine) Seek(position time.Duration) error {
	m.mu.Lock()

	if m.item == nil {
		m.mu.Unlock()
		return domain.ErrNoMediaLoaded
	}

	if position < 0 {
		m.mu.Unlock()
		return domain.ErrInvalidPosition
	}

	if m.duration > 0 && position > m.duration {
		position = m.duration
	}
	m.position = position
	m.mu.Unlock()

	m.emit([]domain.EngineEvent{{Kind: domain.EnginePositionDiscontinuity, Position: position}})
	return nil
}

// SetVolume sets the output gain.
func (m *Engine) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

// Volume returns the output gain.
func (m *Engine) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// IsPlaying reports the playing flag.
func (m *Engine) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

// Loaded reports whether an item is set.
func (m *Engine) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.item != nil
}

// Position returns the simulated position.
func (m *Engine) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// Duration returns the simulated duration once ready.
func (m *Engine) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return 0
	}
	return m.duration
}

// Shutdown releases the engine. Later commands fail with ErrNotInitialized.
func (m *Engine) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return domain.ErrNotInitialized
	}

	m.shutdown = true
	m.item = nil
	m.playing = false
	m.ready = false
	return nil
}

// IsShutdown reports whether Shutdown was called (for testing).
func (m *Engine) IsShutdown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shutdown
}

// CurrentItem returns the loaded item, or nil (for testing).
func (m *Engine) CurrentItem() *domain.MediaItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.item == nil {
		return nil
	}
	item := *m.item
	return &item
}

// LoadedItems returns every item ever passed to Load (for testing).
func (m *Engine) LoadedItems() []domain.MediaItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MediaItem, len(m.loads))
	copy(out, m.loads)
	return out
}

// StopCount returns how many times Stop was called (for testing).
func (m *Engine) StopCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopCount
}

// CompleteLoad marks a pending item ready and honors a queued Play (for testing).
func (m *Engine) CompleteLoad() {
	m.mu.Lock()
	if m.item == nil || m.ready {
		m.mu.Unlock()
		return
	}

	m.ready = true
	events := []domain.EngineEvent{{Kind: domain.EngineReady, Duration: m.duration}}
	if m.playWhenReady {
		m.playWhenReady = false
		m.playing = true
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: true})
	}
	m.mu.Unlock()

	m.emit(events)
}

// SimulateProgress advances the position while playing (for testing).
func (m *Engine) SimulateProgress(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.playing {
		return
	}
	m.position += delta
	if m.position > m.duration {
		m.position = m.duration
	}
}

// SimulateEnd plays the item to its end (for testing).
func (m *Engine) SimulateEnd() {
	m.mu.Lock()
	if m.item == nil {
		m.mu.Unlock()
		return
	}

	m.position = m.duration
	var events []domain.EngineEvent
	if m.playing {
		m.playing = false
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}
	events = append(events, domain.EngineEvent{Kind: domain.EngineEnded})
	m.mu.Unlock()

	m.emit(events)
}

// SimulateFailure reports a decoding/streaming failure (for testing).
func (m *Engine) SimulateFailure(err error) {
	m.mu.Lock()
	var events []domain.EngineEvent
	if m.playing {
		m.playing = false
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}
	events = append(events, domain.EngineEvent{Kind: domain.EngineFailed, Err: err})
	m.mu.Unlock()

	m.emit(events)
}

// Verify that Engine implements the PlaybackEngine interface
var _ ports.PlaybackEngine = (*Engine)(nil)
