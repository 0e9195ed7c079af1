package ports

import (
	"context"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

// PlaybackController is the narrow capability handed to out-of-process control
// surfaces. Each call maps 1:1 to a controller operation and is serialized with
// every other caller.
type PlaybackController interface {
	OnPlayPause()
	OnNext()
	OnPrevious()
}

// SeekController is implemented by controllers that also accept position
// changes from a control surface.
type SeekController interface {
	PlaybackController
	OnSeekTo(positionMillis int64)
	OnSeekBy(offsetMillis int64)
}

// SessionBridge is a background control surface (media keys, tray, notification,
// local control endpoint) that renders the now-playing state and forwards user
// taps into a PlaybackController.
//
// Handshake: Connect is requested first and returns once the surface is ready;
// only then is Attach called. After Disconnected fires, the bridge is treated as
// unavailable until it is connected again.
type SessionBridge interface {
	// Name identifies the bridge in logs and events.
	Name() string

	// Connect establishes the surface. It blocks until the surface is ready or ctx is done.
	Connect(ctx context.Context) error

	// Attach registers the command-forwarding capability.
	Attach(controller PlaybackController) error

	// Render updates the surface with the latest player snapshot. It must not block.
	Render(state domain.PlayerState)

	// Disconnected is closed when the surface goes away on its own.
	Disconnected() <-chan struct{}

	// Close tears the surface down and releases its resources.
	Close() error
}

// FocusListener receives audio focus transitions.
type FocusListener func(change domain.FocusChange)

// FocusArbiter coordinates exclusive audio output with other applications.
//
// Thread-safety: Implementations must be thread-safe. Listeners may be invoked
// from arbitrary goroutines.
type FocusArbiter interface {
	// Request asks for output focus. The listener receives later transitions
	// until Abandon is called.
	Request(listener FocusListener) (granted bool, err error)

	// Abandon releases the focus grant. It is a no-op if focus is not held.
	Abandon() error
}
