// Package file provides a queue store persisted as a YAML document on disk.
package file

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/repository"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
	"gopkg.in/yaml.v3"
)

// QueueStore implements ports.QueueStore with a single YAML file.
//
// Writes go to a temporary file in the same directory followed by a rename,
// so readers only ever see a complete document. Subscribers watch the
// directory, which makes edits from other processes (e.g. `queue clear`)
// visible as well.
//
// Thread-safe: All operations protected by sync.Mutex.
type QueueStore struct {
	path   string
	logger *slog.Logger
	feed   *repository.Feed
	mu     sync.Mutex
}

// NewQueueStore creates a store for the file at path. The parent directory
// is created on first use.
func NewQueueStore(path string, logger *slog.Logger) *QueueStore {
	logger = logger.With(slog.String("adapter", "file_store"), slog.String("path", path))
	return &QueueStore{
		path:   filepath.Clean(path),
		logger: logger,
		feed:   repository.NewFeed(logger),
	}
}

// Path returns the file location.
func (s *QueueStore) Path() string {
	return s.path
}

// Save atomically replaces the file with the snapshot.
func (s *QueueStore) Save(_ context.Context, snapshot domain.QueueSnapshot) error {
	data, err := yaml.Marshal(repository.Normalize(snapshot))
	if err != nil {
		return domain.NewRepositoryError("save", "file", "failed to marshal snapshot", err)
	}

	s.mu.Lock()
	err = s.writeAtomic(data)
	s.mu.Unlock()
	if err != nil {
		return domain.NewRepositoryError("save", "file", "failed to write "+s.path, err)
	}

	s.feed.Notify()
	return nil
}

func (s *QueueStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Load streams the stored snapshot, including changes made by other processes.
func (s *QueueStore) Load(ctx context.Context) (<-chan domain.QueueSnapshot, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, domain.NewRepositoryError("load", "file", "failed to create directory", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, domain.NewRepositoryError("load", "file", "failed to create watcher", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, domain.NewRepositoryError("load", "file", "failed to watch directory", err)
	}

	go s.watch(ctx, watcher)
	return s.feed.Subscribe(ctx, s.fetch), nil
}

func (s *QueueStore) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == s.path {
				s.feed.Notify()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("queue file watcher error", slog.Any("error", err))
		}
	}
}

// Clear deletes the file.
func (s *QueueStore) Clear(_ context.Context) error {
	s.mu.Lock()
	err := os.Remove(s.path)
	s.mu.Unlock()

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.NewRepositoryError("clear", "file", "failed to remove "+s.path, err)
	}

	s.feed.Notify()
	return nil
}

func (s *QueueStore) fetch(context.Context) (string, domain.QueueSnapshot, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.EmptySnapshot(), nil
	}
	if err != nil {
		return "", domain.QueueSnapshot{}, domain.NewRepositoryError("load", "file", "failed to read "+s.path, err)
	}

	var snapshot domain.QueueSnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		s.logger.Warn("stored queue is corrupt, using empty queue", slog.Any("error", err))
		return string(data), domain.EmptySnapshot(), nil
	}
	return string(data), repository.Normalize(snapshot), nil
}

// Verify interface implementation
var _ ports.QueueStore = (*QueueStore)(nil)
