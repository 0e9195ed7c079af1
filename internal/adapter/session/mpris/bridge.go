// Package mpris exposes the player on the D-Bus session bus using the MPRIS
// media player specification, so desktop media keys and widgets can control it.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

const (
	objectPath  = "/org/mpris/MediaPlayer2"
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
	noTrack     = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")
)

// BusName returns the well-known bus name for an application suffix.
func BusName(suffix string) string {
	return rootIface + "." + suffix
}

var trackIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Bridge is a ports.SessionBridge publishing an MPRIS player.
type Bridge struct {
	logger   *slog.Logger
	busName  string
	identity string
	link     *session.Link
	playing  atomic.Bool
	track    atomic.Pointer[nowPlaying]

	mu     sync.Mutex
	conn   *dbus.Conn
	props  *prop.Properties
	closed bool
}

// NewBridge creates a bridge that will own busName once connected.
func NewBridge(busName, identity string, logger *slog.Logger) *Bridge {
	return &Bridge{
		logger:   logger.With(slog.String("adapter", "mpris")),
		busName:  busName,
		identity: identity,
		link:     session.NewLink(),
	}
}

// Name identifies the bridge.
func (b *Bridge) Name() string {
	return "mpris"
}

// Connect exports the player objects and claims the bus name.
func (b *Bridge) Connect(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	props, err := b.export(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	reply, err := conn.RequestName(b.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to request %s: %w", b.busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return errors.New("name already owned: " + b.busName)
	}

	b.mu.Lock()
	b.conn = conn
	b.props = props
	b.mu.Unlock()

	go func() {
		<-conn.Context().Done()
		b.link.Drop()
	}()

	b.logger.Debug("mpris player registered", slog.String("name", b.busName))
	return nil
}

func (b *Bridge) export(conn *dbus.Conn) (*prop.Properties, error) {
	p := &player{link: b.link, logger: b.logger, playing: &b.playing, track: &b.track}
	if err := conn.Export(p, objectPath, playerIface); err != nil {
		return nil, fmt.Errorf("failed to export player: %w", err)
	}
	if err := conn.Export(root{}, objectPath, rootIface); err != nil {
		return nil, fmt.Errorf("failed to export root: %w", err)
	}

	mediaPlayer := map[string]*prop.Prop{
		"CanQuit":             {Value: false, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanRaise":            {Value: false, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"HasTrackList":        {Value: false, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"Identity":            {Value: b.identity, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"SupportedUriSchemes": {Value: []string{}, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"SupportedMimeTypes":  {Value: []string{}, Writable: false, Emit: prop.EmitFalse, Callback: nil},
	}

	mprisPlayer := map[string]*prop.Prop{
		"CanControl":     {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanPause":       {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanSeek":        {Value: true, Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"CanGoNext":      {Value: false, Writable: false, Emit: prop.EmitTrue, Callback: nil},
		"CanGoPrevious":  {Value: false, Writable: false, Emit: prop.EmitTrue, Callback: nil},
		"Metadata":       {Value: metadata(domain.NewPlayerState()), Writable: false, Emit: prop.EmitTrue, Callback: nil},
		"PlaybackStatus": {Value: playbackStatus(domain.StatusStopped), Writable: false, Emit: prop.EmitTrue, Callback: nil},
		"Volume":         {Value: float64(1.0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"Rate":           {Value: float64(1.0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"MinimumRate":    {Value: float64(1.0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"MaximumRate":    {Value: float64(1.0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
		"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
	}

	props, err := prop.Export(conn, objectPath, map[string]map[string]*prop.Prop{
		rootIface:   mediaPlayer,
		playerIface: mprisPlayer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}

	n := &introspect.Node{
		Name: objectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       rootIface,
				Methods:    introspect.Methods(root{}),
				Properties: props.Introspection(rootIface),
			},
			{
				Name:       playerIface,
				Methods:    introspect.Methods(p),
				Properties: props.Introspection(playerIface),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(n), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}
	return props, nil
}

// Attach registers the command target.
func (b *Bridge) Attach(controller ports.PlaybackController) error {
	return b.link.Attach(controller)
}

// Render publishes the now-playing properties.
func (b *Bridge) Render(state domain.PlayerState) {
	b.mu.Lock()
	props := b.props
	b.mu.Unlock()

	b.playing.Store(state.IsPlaying)
	b.track.Store(currentTrack(state))
	if props == nil {
		return
	}

	props.SetMust(playerIface, "Position", state.CurrentPosition*1000)
	props.SetMust(playerIface, "Metadata", metadata(state))
	props.SetMust(playerIface, "PlaybackStatus", playbackStatus(state.Status()))
	props.SetMust(playerIface, "CanGoNext", state.CurrentIndex >= 0 && state.CurrentIndex < len(state.Queue)-1)
	props.SetMust(playerIface, "CanGoPrevious", state.CurrentIndex > 0)
}

// Disconnected is closed when the bus connection is lost.
func (b *Bridge) Disconnected() <-chan struct{} {
	return b.link.Disconnected()
}

// Close releases the bus name and the connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.conn == nil {
		return nil
	}
	b.closed = true
	b.props = nil

	if _, err := b.conn.ReleaseName(b.busName); err != nil {
		b.logger.Debug("failed to release bus name", slog.Any("error", err))
	}
	return b.conn.Close()
}

// metadata builds the MPRIS metadata map for the current song.
func metadata(state domain.PlayerState) map[string]dbus.Variant {
	title, artist := session.NowPlaying(state)
	md := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(noTrack),
		"xesam:title":   dbus.MakeVariant(title),
		"xesam:artist":  dbus.MakeVariant([]string{artist}),
	}

	song := state.CurrentSong
	if song == nil {
		return md
	}

	md["mpris:trackid"] = dbus.MakeVariant(trackPath(song.ID))
	if names := song.ArtistNames(); len(names) > 0 {
		md["xesam:artist"] = dbus.MakeVariant(names)
	}

	md["mpris:length"] = dbus.MakeVariant(lengthMicros(state))

	if song.ImageURL != "" {
		md["mpris:artUrl"] = dbus.MakeVariant(song.ImageURL)
	}
	return md
}

// lengthMicros prefers the engine duration over the catalog one.
func lengthMicros(state domain.PlayerState) int64 {
	length := state.Duration * 1000
	if length <= 0 && state.CurrentSong != nil {
		length = int64(state.CurrentSong.Duration) * 1_000_000
	}
	return length
}

// nowPlaying is what SetPosition validates against.
type nowPlaying struct {
	path   dbus.ObjectPath
	length int64 // microseconds
}

func currentTrack(state domain.PlayerState) *nowPlaying {
	if state.CurrentSong == nil {
		return &nowPlaying{path: noTrack}
	}
	return &nowPlaying{path: trackPath(state.CurrentSong.ID), length: lengthMicros(state)}
}

func trackPath(id string) dbus.ObjectPath {
	if id == "" {
		return noTrack
	}
	return dbus.ObjectPath("/com/saavntune/track/t_" + trackIDUnsafe.ReplaceAllString(id, "_"))
}

func playbackStatus(s domain.PlaybackStatus) string {
	switch s {
	case domain.StatusPlaying:
		return "Playing"
	case domain.StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// root implements org.mpris.MediaPlayer2.
type root struct{}

func (root) Raise() *dbus.Error { return nil }
func (root) Quit() *dbus.Error  { return nil }

// player implements org.mpris.MediaPlayer2.Player.
type player struct {
	link    *session.Link
	logger  *slog.Logger
	playing *atomic.Bool
	track   *atomic.Pointer[nowPlaying]
}

func (p *player) dispatch(action string) *dbus.Error {
	if err := p.link.Dispatch(action); err != nil {
		p.logger.Warn("mpris command failed", slog.String("action", action), slog.Any("error", err))
		return dbus.MakeFailedError(err)
	}
	return nil
}

// PlayPause toggles playback.
func (p *player) PlayPause() *dbus.Error { return p.dispatch(session.ActionPlayPause) }

// Next skips forward.
func (p *player) Next() *dbus.Error { return p.dispatch(session.ActionNext) }

// Previous skips back.
func (p *player) Previous() *dbus.Error { return p.dispatch(session.ActionPrevious) }

// Play toggles only when paused, judged by the last rendered state.
func (p *player) Play() *dbus.Error {
	if p.playing.Load() {
		return nil
	}
	return p.dispatch(session.ActionPlayPause)
}

// Pause toggles only when playing.
func (p *player) Pause() *dbus.Error {
	if !p.playing.Load() {
		return nil
	}
	return p.dispatch(session.ActionPlayPause)
}

// Stop is accepted and ignored.
func (p *player) Stop() *dbus.Error { return nil }

// Seek moves the position by offset microseconds.
func (p *player) Seek(offset int64) *dbus.Error {
	if err := p.link.SeekBy(offset / 1000); err != nil {
		p.logger.Warn("mpris seek failed", slog.Int64("offset_us", offset), slog.Any("error", err))
		return dbus.MakeFailedError(err)
	}
	return nil
}

// SetPosition jumps to position microseconds. Requests for another track or
// outside the track length are ignored.
func (p *player) SetPosition(track dbus.ObjectPath, position int64) *dbus.Error {
	current := p.track.Load()
	if current == nil || current.path == noTrack || current.path != track {
		return nil
	}
	if position < 0 || (current.length > 0 && position > current.length) {
		return nil
	}
	if err := p.link.SeekTo(position / 1000); err != nil {
		p.logger.Warn("mpris set position failed", slog.Int64("position_us", position), slog.Any("error", err))
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (p *player) OpenUri(string) *dbus.Error { return nil }

// Verify interface implementation
var _ ports.SessionBridge = (*Bridge)(nil)
