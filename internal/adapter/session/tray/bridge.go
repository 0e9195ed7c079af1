// Package tray provides a system tray menu with playback controls, backed by
// the desktop application's fyne driver.
package tray

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// ErrUnsupported is returned when the driver has no system tray.
var ErrUnsupported = errors.New("system tray not supported by this driver")

// Bridge is a ports.SessionBridge rendering into the system tray.
//
// The fyne app must be run on the main goroutine by the caller; Connect
// blocks until it has started, and the bridge disconnects when it stops.
type Bridge struct {
	app    fyne.App
	logger *slog.Logger
	link   *session.Link
	notify bool
	do     func(func())

	started   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	stopped   atomic.Bool

	mu         sync.Mutex
	menu       *fyne.Menu
	nowPlaying *fyne.MenuItem
	playPause  *fyne.MenuItem
	previous   *fyne.MenuItem
	next       *fyne.MenuItem
	lastID     string
}

// NewBridge creates a tray bridge for app. It must be called before app.Run.
// When notify is set a notification is sent for every new song.
func NewBridge(app fyne.App, notify bool, logger *slog.Logger) *Bridge {
	b := &Bridge{
		app:     app,
		logger:  logger.With(slog.String("adapter", "tray")),
		link:    session.NewLink(),
		notify:  notify,
		do:      fyne.Do,
		started: make(chan struct{}),
	}
	b.buildMenu()

	app.Lifecycle().SetOnStarted(b.markStarted)
	app.Lifecycle().SetOnStopped(b.markStopped)
	return b
}

func (b *Bridge) markStopped() {
	b.stopped.Store(true)
	b.link.Drop()
}

func (b *Bridge) markStarted() {
	b.startOnce.Do(func() { close(b.started) })
}

func (b *Bridge) buildMenu() {
	title, artist := session.NowPlaying(domain.NewPlayerState())

	b.nowPlaying = fyne.NewMenuItem(nowPlayingLabel(title, artist), nil)
	b.nowPlaying.Disabled = true
	b.previous = fyne.NewMenuItem("Previous", b.action(session.ActionPrevious))
	b.playPause = fyne.NewMenuItem("Play", b.action(session.ActionPlayPause))
	b.next = fyne.NewMenuItem("Next", b.action(session.ActionNext))

	b.menu = fyne.NewMenu("SaavnTune",
		b.nowPlaying,
		fyne.NewMenuItemSeparator(),
		b.previous,
		b.playPause,
		b.next,
	)
}

func (b *Bridge) action(name string) func() {
	return func() {
		// Menu callbacks run on the UI goroutine; the controller may block on I/O.
		go func() {
			if err := b.link.Dispatch(name); err != nil {
				b.logger.Warn("tray command failed", slog.String("action", name), slog.Any("error", err))
			}
		}()
	}
}

func nowPlayingLabel(title, artist string) string {
	return title + " - " + artist
}

// Name identifies the bridge.
func (b *Bridge) Name() string {
	return "tray"
}

// Connect waits for the app to start and installs the tray menu.
func (b *Bridge) Connect(ctx context.Context) error {
	desk, ok := b.app.(desktop.App)
	if !ok {
		return ErrUnsupported
	}

	select {
	case <-b.started:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.do(func() {
		desk.SetSystemTrayMenu(b.menu)
	})
	return nil
}

// Attach registers the command target.
func (b *Bridge) Attach(controller ports.PlaybackController) error {
	return b.link.Attach(controller)
}

// Render updates the menu labels and announces new songs.
func (b *Bridge) Render(state domain.PlayerState) {
	title, artist := session.NowPlaying(state)
	id := ""
	if state.CurrentSong != nil {
		id = state.CurrentSong.ID
	}

	b.mu.Lock()
	songChanged := id != b.lastID
	b.lastID = id
	b.mu.Unlock()

	playLabel := "Play"
	if state.IsPlaying {
		playLabel = "Pause"
	}
	hasNext := state.CurrentIndex >= 0 && state.CurrentIndex < len(state.Queue)-1
	hasPrevious := state.CurrentIndex > 0

	b.do(func() {
		b.mu.Lock()
		b.nowPlaying.Label = nowPlayingLabel(title, artist)
		b.playPause.Label = playLabel
		b.playPause.Disabled = state.CurrentSong == nil
		b.next.Disabled = !hasNext
		b.previous.Disabled = !hasPrevious
		b.mu.Unlock()
		b.menu.Refresh()
	})

	if b.notify && songChanged && id != "" {
		b.app.SendNotification(fyne.NewNotification(title, artist))
	}
}

// Disconnected is closed when the app stops.
func (b *Bridge) Disconnected() <-chan struct{} {
	return b.link.Disconnected()
}

// Close quits the app, which also ends its main loop. Nothing is done once
// the app has stopped.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		if !b.stopped.Load() {
			b.do(b.app.Quit)
		}
	})
	return nil
}

// Verify interface implementation
var _ ports.SessionBridge = (*Bridge)(nil)
