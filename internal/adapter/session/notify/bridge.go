// Package notify shows a desktop notification whenever the current song changes.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// Sender delivers one notification.
type Sender func(title, message string) error

// BeeepSender sends through the platform notification service.
func BeeepSender(appName string) Sender {
	beeep.AppName = appName
	return func(title, message string) error {
		return beeep.Notify(title, message, "")
	}
}

type notice struct {
	title   string
	message string
}

// Bridge is a render-only ports.SessionBridge. It has no controls, so the
// attached controller is kept but never called.
type Bridge struct {
	logger *slog.Logger
	send   Sender
	link   *session.Link

	mu       sync.Mutex
	lastID   string
	pending  chan notice
	stop     chan struct{}
	running  bool
	closeOne sync.Once

	wg sync.WaitGroup
}

// NewBridge creates a bridge delivering through send.
func NewBridge(send Sender, logger *slog.Logger) *Bridge {
	return &Bridge{
		logger:  logger.With(slog.String("adapter", "notify")),
		send:    send,
		link:    session.NewLink(),
		pending: make(chan notice, 1),
		stop:    make(chan struct{}),
	}
}

// Name identifies the bridge.
func (b *Bridge) Name() string {
	return "notify"
}

// Connect starts the delivery worker.
func (b *Bridge) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	b.running = true

	b.wg.Add(1)
	go b.deliver()
	return nil
}

func (b *Bridge) deliver() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stop:
			return
		case n := <-b.pending:
			if err := b.send(n.title, n.message); err != nil {
				b.logger.Warn("failed to send notification", slog.Any("error", err))
			}
		}
	}
}

// Attach registers the command target.
func (b *Bridge) Attach(controller ports.PlaybackController) error {
	return b.link.Attach(controller)
}

// Render queues a notification when a different song starts. Only the
// newest pending notification is kept.
func (b *Bridge) Render(state domain.PlayerState) {
	id := ""
	if state.CurrentSong != nil {
		id = state.CurrentSong.ID
	}

	b.mu.Lock()
	changed := id != b.lastID
	b.lastID = id
	b.mu.Unlock()

	if !changed || id == "" {
		return
	}

	title, artist := session.NowPlaying(state)
	n := notice{title: title, message: artist}
	for {
		select {
		case b.pending <- n:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

// Disconnected never fires on its own; notifications need no connection.
func (b *Bridge) Disconnected() <-chan struct{} {
	return b.link.Disconnected()
}

// Close stops the delivery worker.
func (b *Bridge) Close() error {
	b.closeOne.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	return nil
}

// Verify interface implementation
var _ ports.SessionBridge = (*Bridge)(nil)
