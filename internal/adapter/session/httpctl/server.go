// Package httpctl exposes playback control on a local HTTP endpoint so that
// other processes (the `ctl` command, scripts, hotkey daemons) can drive a
// running player.
//
// Requests must carry the bearer token that the running player writes to its
// token file; the file also records the listen address so clients can find it.
package httpctl

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// Endpoint is what the token file contains.
type Endpoint struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
	PID   int    `json:"pid"`
}

// SongView is the JSON rendering of a song.
type SongView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artists  string `json:"artists"`
	Duration int    `json:"duration"`
}

// StateView is the JSON rendering of the player state served by GET /state.
type StateView struct {
	Title        string     `json:"title"`
	Artist       string     `json:"artist"`
	Status       string     `json:"status"`
	PositionMs   int64      `json:"positionMs"`
	DurationMs   int64      `json:"durationMs"`
	CurrentIndex int        `json:"currentIndex"`
	Queue        []SongView `json:"queue"`
}

// NewStateView converts a player snapshot.
func NewStateView(state domain.PlayerState) StateView {
	title, artist := session.NowPlaying(state)
	return StateView{
		Title:        title,
		Artist:       artist,
		Status:       state.Status().String(),
		PositionMs:   state.CurrentPosition,
		DurationMs:   state.Duration,
		CurrentIndex: state.CurrentIndex,
		Queue: lo.Map(state.Queue, func(s domain.Song, _ int) SongView {
			return SongView{ID: s.ID, Name: s.Name, Artists: s.Artists, Duration: s.Duration}
		}),
	}
}

// Server is a ports.SessionBridge serving the control endpoint.
type Server struct {
	logger    *slog.Logger
	addr      string
	tokenFile string
	link      *session.Link

	state atomic.Pointer[StateView]

	mu       sync.Mutex
	server   *http.Server
	endpoint Endpoint
	closed   bool

	wg sync.WaitGroup
}

// NewServer creates a server listening on addr (use port 0 for any free port)
// and publishing its endpoint to tokenFile.
func NewServer(addr, tokenFile string, logger *slog.Logger) *Server {
	s := &Server{
		logger:    logger.With(slog.String("adapter", "httpctl")),
		addr:      addr,
		tokenFile: tokenFile,
		link:      session.NewLink(),
	}
	initial := NewStateView(domain.NewPlayerState())
	s.state.Store(&initial)
	return s
}

// Name identifies the bridge.
func (s *Server) Name() string {
	return "httpctl"
}

// Connect binds the listener, writes the token file and starts serving.
func (s *Server) Connect(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	endpoint := Endpoint{
		Addr:  ln.Addr().String(),
		Token: uuid.NewString(),
		PID:   os.Getpid(),
	}
	if err := writeEndpoint(s.tokenFile, endpoint); err != nil {
		_ = ln.Close()
		return err
	}

	mux := http.NewServeMux()
	auth := bearerAuth(endpoint.Token)
	mux.HandleFunc("POST /control/{action}", auth(s.handleControl))
	mux.HandleFunc("GET /state", auth(s.handleState))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.server = server
	s.endpoint = endpoint
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("control server stopped", slog.Any("error", err))
		}
		s.link.Drop()
	}()

	s.logger.Info("control endpoint listening", slog.String("addr", endpoint.Addr))
	return nil
}

// Endpoint returns the address and token of a connected server.
func (s *Server) Endpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func bearerAuth(token string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	if !lo.Contains(session.Actions, action) {
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}

	if err := s.link.Dispatch(action); err != nil {
		s.logger.Warn("control command failed", slog.String("action", action), slog.Any("error", err))
		http.Error(w, "player not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Load()); err != nil {
		s.logger.Debug("failed to write state", slog.Any("error", err))
	}
}

// Attach registers the command target.
func (s *Server) Attach(controller ports.PlaybackController) error {
	return s.link.Attach(controller)
}

// Render stores the snapshot served by GET /state.
func (s *Server) Render(state domain.PlayerState) {
	view := NewStateView(state)
	s.state.Store(&view)
}

// Disconnected is closed when the server stops serving.
func (s *Server) Disconnected() <-chan struct{} {
	return s.link.Disconnected()
}

// Close shuts the server down and removes the token file.
func (s *Server) Close() error {
	s.mu.Lock()
	server := s.server
	already := s.closed
	s.closed = true
	s.mu.Unlock()

	if server == nil || already {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := server.Shutdown(ctx)
	s.wg.Wait()

	if rmErr := os.Remove(s.tokenFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

func writeEndpoint(path string, e Endpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Verify interface implementation
var _ ports.SessionBridge = (*Server)(nil)
