// Package service provides business logic for the SaavnTune application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// fullVolume is restored when a ducking focus loss ends.
const fullVolume = 1.0

// ControllerConfig tunes the playback controller.
type ControllerConfig struct {
	RefreshInterval time.Duration
	DuckVolume      float64
	AutoAdvance     bool
}

// DefaultControllerConfig returns the default controller settings.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		RefreshInterval: 50 * time.Millisecond,
		DuckVolume:      0.3,
		AutoAdvance:     true,
	}
}

// Controller is the single owner of the player state and the playback engine.
//
// Every mutating operation runs under one write lock. Engine and focus
// callbacks are queued and applied by a pump goroutine under the same lock.
// Snapshots are published while holding a publish lock that is acquired
// before the state lock is released, so observers see them in operation order.
//
// Event handlers run while the publish lock is held and must not call
// mutating Controller operations synchronously.
type Controller struct {
	// Dependencies (injected)
	logger *slog.Logger
	engine ports.PlaybackEngine
	store  ports.QueueStore
	focus  ports.FocusArbiter
	bus    ports.EventBus
	cfg    ControllerConfig

	// State
	state     domain.PlayerState
	seq       uint64
	focusHeld bool
	bridges   []*bridgeLink

	// Background workers
	inbox     *inbox
	persister *persister

	// Concurrency control
	mu      sync.RWMutex
	pubMu   sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewController creates a controller. focus may be nil when no arbiter is available.
func NewController(
	logger *slog.Logger,
	engine ports.PlaybackEngine,
	store ports.QueueStore,
	focus ports.FocusArbiter,
	bus ports.EventBus,
	cfg ControllerConfig,
) *Controller {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultControllerConfig().RefreshInterval
	}

	logger = logger.With(slog.String("service", "Controller"))
	c := &Controller{
		logger:    logger,
		engine:    engine,
		store:     store,
		focus:     focus,
		bus:       bus,
		cfg:       cfg,
		state:     domain.NewPlayerState(),
		inbox:     newInbox(),
		persister: newPersister(logger, store),
	}

	engine.SetListener(c.onEngineEvent)

	logger.Debug("controller initialized")
	return c
}

// Start launches the event pump, the position refresh loop, the persister
// and the one-shot queue hydration.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx
	c.mu.Unlock()

	c.persister.start(runCtx)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.inbox.run(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.refreshLoop(runCtx)
	}()

	if err := c.startHydration(runCtx); err != nil {
		c.logger.Warn("queue hydration unavailable", slog.Any("error", err))
	}

	c.logger.Info("controller started")
	return nil
}

// Stop tears the controller down: background loops exit, the last pending
// queue snapshot is flushed, bridges are detached, focus is abandoned and the
// engine is shut down. Stop is idempotent.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel := c.cancel
	links := c.bridges
	c.bridges = nil
	c.mu.Unlock()

	// Release lock before waiting for goroutines to exit (to avoid deadlock)
	cancel()
	c.wg.Wait()
	c.persister.close()

	var errs []error
	for _, link := range links {
		c.bus.Unsubscribe(link.subID)
		if err := link.bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	c.abandonFocusLocked()
	c.mu.Unlock()

	if err := c.engine.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("controller stopped")
	return errors.Join(errs...)
}

// State returns a deep copy of the current player state.
func (c *Controller) State() domain.PlayerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Play replaces the queue wholesale and starts song. An empty queue means [song].
// The index is the position of song in queue, or 0 when it is absent.
func (c *Controller) Play(song domain.Song, queue []domain.Song) {
	c.mu.Lock()
	prev := c.state.CurrentSong

	if len(queue) == 0 {
		queue = []domain.Song{song}
	}

	c.stopEngineLocked()

	c.state.Queue = slices.Clone(queue)
	c.state.CurrentIndex = max(slices.IndexFunc(queue, func(s domain.Song) bool { return s.ID == song.ID }), 0)
	current := song
	c.state.CurrentSong = &current

	c.logger.Debug("play",
		slog.String("song_id", song.ID),
		slog.Int("queue_len", len(queue)),
		slog.Int("current_index", c.state.CurrentIndex))

	extra := c.loadAndStartLocked(current)
	c.persistLocked()
	c.publishLocked(prev, extra...)
}

// PlayPause toggles playback based on the live engine flag. When nothing is
// loaded but a current song exists (e.g. after hydration), it is loaded and started.
func (c *Controller) PlayPause() {
	c.mu.Lock()

	switch {
	case c.engine.IsPlaying():
		if err := c.engine.Pause(); err != nil {
			c.logger.Warn("failed to pause", slog.Any("error", err))
		}
		c.mu.Unlock()

	case c.engine.Loaded():
		c.requestFocusLocked()
		if err := c.engine.Play(); err != nil {
			c.logger.Warn("failed to resume", slog.Any("error", err))
		}
		c.mu.Unlock()

	case c.state.CurrentSong != nil:
		song := *c.state.CurrentSong
		extra := c.loadAndStartLocked(song)
		c.publishLocked(c.state.CurrentSong, extra...)

	default:
		c.mu.Unlock()
	}
}

// SeekTo moves the engine position.
func (c *Controller) SeekTo(positionMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.engine.Seek(time.Duration(positionMillis) * time.Millisecond); err != nil {
		c.logger.Warn("failed to seek", slog.Int64("position_ms", positionMillis), slog.Any("error", err))
	}
}

// SeekBy moves the engine position by offsetMillis, clamped to the loaded song.
func (c *Controller) SeekBy(offsetMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.engine.Loaded() {
		return
	}
	target := max(c.engine.Position()+time.Duration(offsetMillis)*time.Millisecond, 0)
	if d := c.engine.Duration(); d > 0 {
		target = min(target, d)
	}
	if err := c.engine.Seek(target); err != nil {
		c.logger.Warn("failed to seek", slog.Int64("offset_ms", offsetMillis), slog.Any("error", err))
	}
}

// PlayNext advances to the next queue entry. No-op at the last index.
func (c *Controller) PlayNext() {
	c.mu.Lock()
	next := c.state.CurrentIndex + 1
	if next >= len(c.state.Queue) {
		c.mu.Unlock()
		return
	}
	c.moveToLocked(next)
}

// PlayPrevious goes back one queue entry. No-op at index 0.
func (c *Controller) PlayPrevious() {
	c.mu.Lock()
	if c.state.CurrentIndex <= 0 {
		c.mu.Unlock()
		return
	}
	c.moveToLocked(c.state.CurrentIndex - 1)
}

// AddToQueue appends song unless a song with the same id is already queued.
func (c *Controller) AddToQueue(song domain.Song) {
	c.mu.Lock()
	if lo.ContainsBy(c.state.Queue, func(s domain.Song) bool { return s.ID == song.ID }) {
		c.mu.Unlock()
		return
	}

	c.state.Queue = append(slices.Clone(c.state.Queue), song)
	c.persistLocked()
	c.publishLocked(c.state.CurrentSong)
}

// RemoveFromQueue removes the song with the same id. Removing the current
// song clears it and stops the engine without advancing.
func (c *Controller) RemoveFromQueue(song domain.Song) {
	c.mu.Lock()
	idx := slices.IndexFunc(c.state.Queue, func(s domain.Song) bool { return s.ID == song.ID })
	if idx < 0 {
		c.mu.Unlock()
		return
	}

	prev := c.state.CurrentSong
	c.state.Queue = slices.Delete(slices.Clone(c.state.Queue), idx, idx+1)

	switch {
	case idx < c.state.CurrentIndex:
		c.state.CurrentIndex--
	case idx == c.state.CurrentIndex:
		c.state.CurrentIndex = domain.NoCurrentIndex
		c.state.CurrentSong = nil
		c.stopEngineLocked()
		c.state.IsPlaying = false
		c.state.CurrentPosition = 0
		c.state.Duration = 0
	}

	c.persistLocked()
	c.publishLocked(prev)
}

// ReorderQueue moves the entry at from to to, keeping the current index on
// the same song. Out-of-range indices are ignored.
func (c *Controller) ReorderQueue(from, to int) {
	c.mu.Lock()
	n := len(c.state.Queue)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		c.mu.Unlock()
		return
	}

	queue := slices.Clone(c.state.Queue)
	moved := queue[from]
	queue = slices.Insert(slices.Delete(queue, from, from+1), to, moved)
	c.state.Queue = queue
	c.state.CurrentIndex = reorderedIndex(c.state.CurrentIndex, from, to)

	c.persistLocked()
	c.publishLocked(c.state.CurrentSong)
}

func reorderedIndex(current, from, to int) int {
	switch {
	case current < 0:
		return current
	case from == current:
		return to
	case from < current && to >= current:
		return current - 1
	case from > current && to <= current:
		return current + 1
	default:
		return current
	}
}

// Clear stops playback and empties the queue.
func (c *Controller) Clear() {
	c.mu.Lock()
	prev := c.state.CurrentSong

	c.stopEngineLocked()
	c.abandonFocusLocked()

	bridged := c.state.BridgeConnected
	c.state = domain.NewPlayerState()
	c.state.BridgeConnected = bridged

	c.persistLocked()
	c.publishLocked(prev)
}

// OnPlayPause forwards a bridge tap to PlayPause.
func (c *Controller) OnPlayPause() { c.PlayPause() }

// OnNext forwards a bridge tap to PlayNext.
func (c *Controller) OnNext() { c.PlayNext() }

// OnSeekTo forwards a bridge seek to SeekTo.
func (c *Controller) OnSeekTo(positionMillis int64) { c.SeekTo(positionMillis) }

// OnSeekBy forwards a relative bridge seek to SeekBy.
func (c *Controller) OnSeekBy(offsetMillis int64) { c.SeekBy(offsetMillis) }

// OnPrevious forwards a bridge tap to PlayPrevious.
func (c *Controller) OnPrevious() { c.PlayPrevious() }

// moveToLocked switches to queue index idx and starts it. Releases mu.
func (c *Controller) moveToLocked(idx int) {
	prev := c.state.CurrentSong

	c.stopEngineLocked()
	c.state.CurrentIndex = idx
	song := c.state.Queue[idx]
	c.state.CurrentSong = &song

	extra := c.loadAndStartLocked(song)
	c.persistLocked()
	c.publishLocked(prev, extra...)
}

// loadAndStartLocked hands song to the engine and starts it. Failures are
// logged and returned as events; playback simply does not start.
func (c *Controller) loadAndStartLocked(song domain.Song) []domain.Event {
	c.state.CurrentPosition = 0
	c.state.Duration = int64(song.Duration) * 1000

	if err := c.engine.Load(domain.MediaItemFromSong(song)); err != nil {
		c.logger.Warn("failed to load song", slog.String("song_id", song.ID), slog.Any("error", err))
		return []domain.Event{domain.NewPlaybackErrorEvent(&song, err)}
	}

	c.requestFocusLocked()
	if err := c.engine.Play(); err != nil {
		c.logger.Warn("failed to start playback", slog.String("song_id", song.ID), slog.Any("error", err))
		return []domain.Event{domain.NewPlaybackErrorEvent(&song, err)}
	}
	return nil
}

func (c *Controller) stopEngineLocked() {
	if err := c.engine.Stop(); err != nil {
		c.logger.Warn("failed to stop engine", slog.Any("error", err))
	}
}

func (c *Controller) requestFocusLocked() {
	if c.focus == nil || c.focusHeld {
		return
	}

	granted, err := c.focus.Request(c.onFocusChange)
	if err != nil {
		c.logger.Warn("audio focus request failed", slog.Any("error", err))
		return
	}
	c.focusHeld = granted
	if !granted {
		c.logger.Info("audio focus not granted, playing anyway")
	}
}

func (c *Controller) abandonFocusLocked() {
	if c.focus == nil || !c.focusHeld {
		return
	}
	if err := c.focus.Abandon(); err != nil {
		c.logger.Warn("failed to abandon audio focus", slog.Any("error", err))
	}
	c.focusHeld = false
}

func (c *Controller) persistLocked() {
	c.persister.submit(c.state.Snapshot())
}

// publishLocked hands the state lock over to the publish lock and delivers
// the new snapshot plus extra events. The caller holds mu; it is released.
func (c *Controller) publishLocked(prev *domain.Song, extra ...domain.Event) {
	c.seq++
	seq := c.seq
	snapshot := c.state.Clone()

	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	if songID(prev) != songID(snapshot.CurrentSong) {
		c.bus.Publish(domain.NewSongChangedEvent(snapshot.CurrentSong, snapshot.CurrentIndex))
	}
	c.bus.Publish(domain.NewStateChangedEvent(snapshot, seq))
	for _, e := range extra {
		c.bus.Publish(e)
	}
}

func songID(s *domain.Song) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// onEngineEvent is the engine listener. It only queues.
func (c *Controller) onEngineEvent(e domain.EngineEvent) {
	c.inbox.push(func() { c.applyEngineEvent(e) })
}

// onFocusChange is the focus listener. It only queues.
func (c *Controller) onFocusChange(change domain.FocusChange) {
	c.inbox.push(func() { c.applyFocusChange(change) })
}

func (c *Controller) applyEngineEvent(e domain.EngineEvent) {
	c.mu.Lock()

	switch e.Kind {
	case domain.EnginePlayingChanged:
		if c.state.IsPlaying == e.Playing {
			c.mu.Unlock()
			return
		}
		c.state.IsPlaying = e.Playing
		if e.Playing {
			c.state.CurrentPosition = c.engine.Position().Milliseconds()
		}
		c.publishLocked(c.state.CurrentSong)

	case domain.EngineReady:
		if e.Duration > 0 {
			c.state.Duration = e.Duration.Milliseconds()
		}
		c.publishLocked(c.state.CurrentSong)

	case domain.EnginePositionDiscontinuity:
		c.state.CurrentPosition = e.Position.Milliseconds()
		c.publishLocked(c.state.CurrentSong)

	case domain.EngineEnded:
		c.logger.Debug("song ended", slog.String("song_id", songID(c.state.CurrentSong)))
		next := c.state.CurrentIndex + 1
		if c.cfg.AutoAdvance && c.state.CurrentIndex >= 0 && next < len(c.state.Queue) {
			c.moveToLocked(next)
			return
		}
		c.state.IsPlaying = false
		c.state.CurrentPosition = c.state.Duration
		c.publishLocked(c.state.CurrentSong)

	case domain.EngineFailed:
		var song *domain.Song
		if c.state.CurrentSong != nil {
			s := *c.state.CurrentSong
			song = &s
		}
		c.logger.Warn("playback failed", slog.String("song_id", songID(song)), slog.Any("error", e.Err))
		c.state.IsPlaying = false
		c.publishLocked(c.state.CurrentSong, domain.NewPlaybackErrorEvent(song, e.Err))

	default:
		c.mu.Unlock()
	}
}

func (c *Controller) applyFocusChange(change domain.FocusChange) {
	c.mu.Lock()
	c.logger.Debug("audio focus changed", slog.String("change", change.String()))

	switch change {
	case domain.FocusLoss, domain.FocusLossTransient:
		if c.engine.IsPlaying() {
			if err := c.engine.Pause(); err != nil {
				c.logger.Warn("failed to pause on focus loss", slog.Any("error", err))
			}
		}

	case domain.FocusLossTransientCanDuck:
		if err := c.engine.SetVolume(c.cfg.DuckVolume); err != nil {
			c.logger.Warn("failed to duck", slog.Any("error", err))
		}
		c.state.Ducking = true

	case domain.FocusGain:
		if c.state.Ducking {
			if err := c.engine.SetVolume(fullVolume); err != nil {
				c.logger.Warn("failed to restore volume", slog.Any("error", err))
			}
			c.state.Ducking = false
		}
	}

	c.publishLocked(c.state.CurrentSong, domain.NewFocusChangedEvent(change))
}

// refreshLoop samples the engine position while playing.
func (c *Controller) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshPosition()
		}
	}
}

func (c *Controller) refreshPosition() {
	c.mu.Lock()
	if !c.engine.IsPlaying() {
		c.mu.Unlock()
		return
	}

	position := c.engine.Position()
	duration := c.engine.Duration()
	c.state.CurrentPosition = position.Milliseconds()
	if duration > 0 {
		c.state.Duration = duration.Milliseconds()
	} else {
		duration = time.Duration(c.state.Duration) * time.Millisecond
	}

	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	c.bus.Publish(domain.NewPositionChangedEvent(position, duration))
}

// startHydration subscribes to the queue store and adopts its first snapshot
// if the queue is still empty. Later snapshots are ignored.
func (c *Controller) startHydration(ctx context.Context) error {
	hydrateCtx, cancel := context.WithCancel(ctx)
	snapshots, err := c.store.Load(hydrateCtx)
	if err != nil {
		cancel()
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		select {
		case <-hydrateCtx.Done():
		case snapshot, ok := <-snapshots:
			if ok {
				c.hydrate(snapshot)
			}
		}
	}()
	return nil
}

func (c *Controller) hydrate(snapshot domain.QueueSnapshot) {
	c.mu.Lock()
	if len(c.state.Queue) > 0 || !snapshot.Hydratable() {
		c.logger.Debug("queue hydration skipped",
			slog.Int("in_memory", len(c.state.Queue)),
			slog.Int("stored", len(snapshot.Queue)))
		c.mu.Unlock()
		return
	}

	c.state.Queue = slices.Clone(snapshot.Queue)
	c.state.CurrentIndex = snapshot.CurrentIndex
	song := c.state.Queue[snapshot.CurrentIndex]
	c.state.CurrentSong = &song
	c.state.Duration = int64(song.Duration) * 1000

	c.logger.Info("queue hydrated",
		slog.Int("queue_len", len(snapshot.Queue)),
		slog.Int("current_index", snapshot.CurrentIndex))
	c.publishLocked(nil, domain.NewQueueHydratedEvent(c.state.Snapshot()))
}

// Verify interface implementation
var _ ports.SeekController = (*Controller)(nil)
