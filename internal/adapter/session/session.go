// Package session holds helpers shared by the session bridges.
package session

import (
	"fmt"
	"sync"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// Placeholders shown when nothing is loaded.
const (
	DefaultTitle  = "Music Player"
	DefaultArtist = "Unknown Artist"
)

// Control actions accepted by every bridge.
const (
	ActionPlayPause = "play_pause"
	ActionNext      = "next"
	ActionPrevious  = "previous"
)

// Actions lists the control actions in display order.
var Actions = []string{ActionPrevious, ActionPlayPause, ActionNext}

// NowPlaying returns the title and artist line for a state.
func NowPlaying(state domain.PlayerState) (title, artist string) {
	title, artist = DefaultTitle, DefaultArtist
	if state.CurrentSong == nil {
		return title, artist
	}
	if state.CurrentSong.Name != "" {
		title = state.CurrentSong.Name
	}
	if state.CurrentSong.Artists != "" {
		artist = state.CurrentSong.Artists
	}
	return title, artist
}

// Dispatch forwards a named action to the controller.
func Dispatch(controller ports.PlaybackController, action string) error {
	switch action {
	case ActionPlayPause:
		controller.OnPlayPause()
	case ActionNext:
		controller.OnNext()
	case ActionPrevious:
		controller.OnPrevious()
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// Link stores the attached controller and the disconnect signal of a bridge.
type Link struct {
	mu         sync.RWMutex
	controller ports.PlaybackController
	done       chan struct{}
	once       sync.Once
}

// NewLink creates an unattached link.
func NewLink() *Link {
	return &Link{done: make(chan struct{})}
}

// Attach stores the controller.
func (l *Link) Attach(controller ports.PlaybackController) error {
	if controller == nil {
		return fmt.Errorf("attach: %w", domain.ErrNotInitialized)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.controller = controller
	return nil
}

// Dispatch forwards an action to the attached controller.
func (l *Link) Dispatch(action string) error {
	l.mu.RLock()
	controller := l.controller
	l.mu.RUnlock()

	if controller == nil {
		return domain.ErrNotInitialized
	}
	return Dispatch(controller, action)
}

// SeekTo moves the attached controller to an absolute position.
func (l *Link) SeekTo(positionMillis int64) error {
	seeker, err := l.seeker()
	if err != nil {
		return err
	}
	seeker.OnSeekTo(positionMillis)
	return nil
}

// SeekBy moves the attached controller by a relative offset.
func (l *Link) SeekBy(offsetMillis int64) error {
	seeker, err := l.seeker()
	if err != nil {
		return err
	}
	seeker.OnSeekBy(offsetMillis)
	return nil
}

func (l *Link) seeker() (ports.SeekController, error) {
	l.mu.RLock()
	controller := l.controller
	l.mu.RUnlock()

	if controller == nil {
		return nil, domain.ErrNotInitialized
	}
	seeker, ok := controller.(ports.SeekController)
	if !ok {
		return nil, domain.ErrSeekUnsupported
	}
	return seeker, nil
}

// Disconnected is closed once Drop is called.
func (l *Link) Disconnected() <-chan struct{} {
	return l.done
}

// Drop marks the surface as gone. It is safe to call more than once.
func (l *Link) Drop() {
	l.once.Do(func() { close(l.done) })
}
