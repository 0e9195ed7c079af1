package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// memStore is an in-memory QueueStore that records every save.
type memStore struct {
	mu      sync.Mutex
	current domain.QueueSnapshot
	saves   []domain.QueueSnapshot
	loadErr error

	// saveDelay makes Save slow; a context cancelled meanwhile fails the save.
	saveDelay time.Duration
	// failSaves fails that many upcoming saves.
	failSaves int
}

func newMemStore(initial domain.QueueSnapshot) *memStore {
	return &memStore{current: initial}
}

func (s *memStore) Save(ctx context.Context, snapshot domain.QueueSnapshot) error {
	s.mu.Lock()
	delay := s.saveDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("store unavailable")
	}
	s.current = snapshot
	s.saves = append(s.saves, snapshot)
	return nil
}

func (s *memStore) Load(ctx context.Context) (<-chan domain.QueueSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	ch := make(chan domain.QueueSnapshot, 1)
	ch <- s.current
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (s *memStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = domain.EmptySnapshot()
	return nil
}

func (s *memStore) last() (domain.QueueSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return domain.QueueSnapshot{}, false
	}
	return s.saves[len(s.saves)-1], true
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

// fakeBridge is a scriptable session bridge.
type fakeBridge struct {
	name       string
	connectErr error

	mu         sync.Mutex
	controller ports.PlaybackController
	rendered   []domain.PlayerState
	closed     bool

	disconnected chan struct{}
	once         sync.Once
}

func newFakeBridge(name string) *fakeBridge {
	return &fakeBridge{name: name, disconnected: make(chan struct{})}
}

func (b *fakeBridge) Name() string { return b.name }

func (b *fakeBridge) Connect(ctx context.Context) error {
	if b.connectErr != nil {
		return b.connectErr
	}
	return ctx.Err()
}

func (b *fakeBridge) Attach(controller ports.PlaybackController) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if controller == nil {
		return errors.New("nil controller")
	}
	b.controller = controller
	return nil
}

func (b *fakeBridge) Render(state domain.PlayerState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rendered = append(b.rendered, state)
}

func (b *fakeBridge) Disconnected() <-chan struct{} { return b.disconnected }

func (b *fakeBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBridge) disconnect() {
	b.once.Do(func() { close(b.disconnected) })
}

func (b *fakeBridge) renders() []domain.PlayerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.rendered)
}

func (b *fakeBridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *fakeBridge) target() ports.PlaybackController {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.controller
}
