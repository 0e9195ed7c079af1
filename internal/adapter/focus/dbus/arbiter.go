// Package dbus implements audio focus on Linux desktops by watching the
// playback status of other MPRIS players on the session bus.
//
// There is no system-wide focus service on the desktop, so the arbiter
// approximates one: while any other player reports "Playing", focus is
// transiently lost; once all of them stop, focus is regained.
package dbus

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

const (
	mprisPrefix    = "org.mpris.MediaPlayer2."
	mprisPath      = "/org/mpris/MediaPlayer2"
	playerIface    = "org.mpris.MediaPlayer2.Player"
	propertiesIfc  = "org.freedesktop.DBus.Properties"
	statusProperty = "PlaybackStatus"
	statusPlaying  = "Playing"
)

// Arbiter is a ports.FocusArbiter backed by the session bus.
type Arbiter struct {
	logger  *slog.Logger
	ownName string

	mu       sync.Mutex
	conn     *dbus.Conn
	signals  chan *dbus.Signal
	stop     chan struct{}
	tracker  *tracker
	listener ports.FocusListener

	wg sync.WaitGroup
}

// NewArbiter creates an arbiter. ownName is the bus name of this
// application's own MPRIS player, which is never counted as a competitor.
func NewArbiter(ownName string, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		logger:  logger.With(slog.String("adapter", "dbus_focus")),
		ownName: ownName,
	}
}

// Request connects to the session bus and starts watching other players.
// Focus is always granted; competing playback is reported as transient loss.
func (a *Arbiter) Request(listener ports.FocusListener) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.listener = listener
	if a.conn != nil {
		return true, nil
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Set up signal listeners before the initial scan to avoid missing changes
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(propertiesIfc),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to add PropertiesChanged match: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to add NameOwnerChanged match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	a.conn = conn
	a.signals = signals
	a.stop = make(chan struct{})
	a.tracker = newTracker()
	a.scan()

	a.wg.Add(1)
	go a.run(conn, signals, a.stop)

	a.logger.Debug("watching mpris players", slog.Int("playing", a.tracker.playing()))
	return true, nil
}

// scan seeds the tracker with players that are already running.
func (a *Arbiter) scan() {
	var names []string
	if err := a.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		a.logger.Warn("failed to list bus names", slog.Any("error", err))
		return
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) || name == a.ownName {
			continue
		}

		var owner string
		if err := a.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner); err != nil {
			continue
		}
		status, err := a.conn.Object(name, mprisPath).GetProperty(playerIface + "." + statusProperty)
		if err != nil {
			continue
		}
		if s, ok := status.Value().(string); ok {
			a.tracker.update(owner, s)
		}
	}
}

func (a *Arbiter) run(conn *dbus.Conn, signals <-chan *dbus.Signal, stop <-chan struct{}) {
	defer a.wg.Done()

	for {
		select {
		case <-stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			a.handle(conn, sig)
		}
	}
}

func (a *Arbiter) handle(conn *dbus.Conn, sig *dbus.Signal) {
	var (
		change  domain.FocusChange
		changed bool
	)

	switch sig.Name {
	case propertiesIfc + ".PropertiesChanged":
		if len(sig.Body) < 2 || a.isOwn(conn, sig.Sender) {
			return
		}
		if iface, _ := sig.Body[0].(string); iface != playerIface {
			return
		}
		props, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}
		v, ok := props[statusProperty]
		if !ok {
			return
		}
		status, _ := v.Value().(string)

		a.mu.Lock()
		if a.tracker != nil {
			change, changed = a.tracker.update(sig.Sender, status)
		}
		a.mu.Unlock()

	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) < 3 {
			return
		}
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		if oldOwner == "" || newOwner != "" {
			return
		}

		a.mu.Lock()
		if a.tracker != nil {
			change, changed = a.tracker.remove(oldOwner)
		}
		a.mu.Unlock()

	default:
		return
	}

	if !changed {
		return
	}

	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()

	a.logger.Debug("focus changed", slog.String("change", change.String()))
	if listener != nil {
		listener(change)
	}
}

// isOwn reports whether sender currently owns this application's player name.
func (a *Arbiter) isOwn(conn *dbus.Conn, sender string) bool {
	if a.ownName == "" {
		return false
	}
	var owner string
	if err := conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, a.ownName).Store(&owner); err != nil {
		return false
	}
	return owner == sender
}

// Abandon stops watching and closes the bus connection.
func (a *Arbiter) Abandon() error {
	a.mu.Lock()
	conn := a.conn
	stop := a.stop
	signals := a.signals
	a.conn = nil
	a.signals = nil
	a.stop = nil
	a.tracker = nil
	a.listener = nil
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	close(stop)
	a.wg.Wait()
	conn.RemoveSignal(signals)
	return conn.Close()
}

// tracker counts competing players and derives focus transitions.
type tracker struct {
	status map[string]bool
}

func newTracker() *tracker {
	return &tracker{status: make(map[string]bool)}
}

func (t *tracker) playing() int {
	n := 0
	for _, p := range t.status {
		if p {
			n++
		}
	}
	return n
}

// update records a player's status and reports the resulting transition, if any.
func (t *tracker) update(sender, status string) (domain.FocusChange, bool) {
	before := t.playing()
	t.status[sender] = status == statusPlaying
	return transition(before, t.playing())
}

// remove forgets a player that left the bus.
func (t *tracker) remove(sender string) (domain.FocusChange, bool) {
	if _, ok := t.status[sender]; !ok {
		return 0, false
	}
	before := t.playing()
	delete(t.status, sender)
	return transition(before, t.playing())
}

func transition(before, after int) (domain.FocusChange, bool) {
	switch {
	case before == 0 && after > 0:
		return domain.FocusLossTransient, true
	case before > 0 && after == 0:
		return domain.FocusGain, true
	default:
		return 0, false
	}
}

// Verify interface implementation
var _ ports.FocusArbiter = (*Arbiter)(nil)
