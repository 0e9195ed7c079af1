// Package memory provides a queue store backed by Fyne preferences.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/repository"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// queueKey holds the whole snapshot as one JSON document so a reader never
// sees a queue from one save paired with an index from another.
const queueKey = "queue.snapshot"

// QueueStore implements ports.QueueStore using Fyne preferences.
//
// Fyne preferences automatically use OS-specific app data directories:
// - macOS: ~/Library/Preferences/com.saavntune.app.plist
// - Linux: ~/.config/fyne/com.saavntune.app/
// - Windows: %APPDATA%\fyne\com.saavntune.app\
//
// Thread-safe: All operations protected by sync.RWMutex.
type QueueStore struct {
	prefs  fyne.Preferences
	logger *slog.Logger
	feed   *repository.Feed
	mu     sync.RWMutex
}

// NewQueueStore creates a new preferences-backed queue store.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewQueueStore(prefs fyne.Preferences, logger *slog.Logger) *QueueStore {
	logger = logger.With(slog.String("adapter", "preferences_store"))
	s := &QueueStore{
		prefs:  prefs,
		logger: logger,
		feed:   repository.NewFeed(logger),
	}

	// Writes from other windows or the preferences file watcher
	prefs.AddChangeListener(s.feed.Notify)
	return s
}

// Save overwrites the stored snapshot.
func (s *QueueStore) Save(_ context.Context, snapshot domain.QueueSnapshot) error {
	data, err := json.Marshal(repository.Normalize(snapshot))
	if err != nil {
		return domain.NewRepositoryError("save", "preferences", "failed to marshal snapshot", err)
	}

	s.mu.Lock()
	s.prefs.SetString(queueKey, string(data))
	s.mu.Unlock()

	s.feed.Notify()
	return nil
}

// Load streams the stored snapshot.
func (s *QueueStore) Load(ctx context.Context) (<-chan domain.QueueSnapshot, error) {
	return s.feed.Subscribe(ctx, s.fetch), nil
}

// Clear removes the stored snapshot.
func (s *QueueStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.prefs.RemoveValue(queueKey)
	s.mu.Unlock()

	s.feed.Notify()
	return nil
}

func (s *QueueStore) fetch(context.Context) (string, domain.QueueSnapshot, error) {
	s.mu.RLock()
	raw := s.prefs.String(queueKey)
	s.mu.RUnlock()

	if raw == "" {
		return raw, domain.EmptySnapshot(), nil
	}

	var snapshot domain.QueueSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		s.logger.Warn("stored queue is corrupt, using empty queue", slog.Any("error", err))
		return raw, domain.EmptySnapshot(), nil
	}
	return raw, repository.Normalize(snapshot), nil
}

// Verify interface implementation
var _ ports.QueueStore = (*QueueStore)(nil)
