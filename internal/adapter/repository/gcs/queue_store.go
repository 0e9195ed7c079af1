// Package gcs provides a queue store kept as a JSON object in Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/repository"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
	"google.golang.org/api/option"
)

// errNotExist is returned by object implementations for a missing object.
var errNotExist = errors.New("object does not exist")

// object is the subset of object operations the store needs.
type object interface {
	read(ctx context.Context) (data []byte, generation int64, err error)
	write(ctx context.Context, data []byte) error
	remove(ctx context.Context) error
}

// QueueStore implements ports.QueueStore on a single Cloud Storage object.
// Object writes are atomic, and the object generation identifies versions;
// Load polls the generation to stream changes made elsewhere.
type QueueStore struct {
	obj          object
	client       *storage.Client
	logger       *slog.Logger
	feed         *repository.Feed
	pollInterval time.Duration
}

// Config configures the GCS store.
type Config struct {
	Bucket          string
	Object          string
	CredentialsFile string // empty means application default credentials
	PollInterval    time.Duration
}

// NewQueueStore connects to Cloud Storage.
func NewQueueStore(ctx context.Context, cfg Config, logger *slog.Logger) (*QueueStore, error) {
	var client *storage.Client
	var err error

	// Create a client
	if cfg.CredentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		// Use application default credentials
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	handle := client.Bucket(cfg.Bucket).Object(cfg.Object)
	s := newQueueStore(&gcsObject{handle: handle}, cfg.PollInterval, logger.With(
		slog.String("adapter", "gcs_store"),
		slog.String("object", "gs://"+cfg.Bucket+"/"+cfg.Object)))
	s.client = client
	return s, nil
}

func newQueueStore(obj object, pollInterval time.Duration, logger *slog.Logger) *QueueStore {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &QueueStore{
		obj:          obj,
		logger:       logger,
		feed:         repository.NewFeed(logger),
		pollInterval: pollInterval,
	}
}

// Save uploads the snapshot, replacing the object.
func (s *QueueStore) Save(ctx context.Context, snapshot domain.QueueSnapshot) error {
	data, err := json.Marshal(repository.Normalize(snapshot))
	if err != nil {
		return domain.NewRepositoryError("save", "gcs", "failed to marshal snapshot", err)
	}
	if err := s.obj.write(ctx, data); err != nil {
		return domain.NewRepositoryError("save", "gcs", "failed to upload snapshot", err)
	}

	s.feed.Notify()
	return nil
}

// Load streams the stored snapshot, polling for changes made elsewhere.
func (s *QueueStore) Load(ctx context.Context) (<-chan domain.QueueSnapshot, error) {
	go s.poll(ctx)
	return s.feed.Subscribe(ctx, s.fetch), nil
}

func (s *QueueStore) poll(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.feed.Notify()
		}
	}
}

// Clear deletes the object.
func (s *QueueStore) Clear(ctx context.Context) error {
	if err := s.obj.remove(ctx); err != nil && !errors.Is(err, errNotExist) {
		return domain.NewRepositoryError("clear", "gcs", "failed to delete snapshot", err)
	}
	s.feed.Notify()
	return nil
}

// Close releases the client.
func (s *QueueStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *QueueStore) fetch(ctx context.Context) (string, domain.QueueSnapshot, error) {
	data, generation, err := s.obj.read(ctx)
	if errors.Is(err, errNotExist) {
		return "", domain.EmptySnapshot(), nil
	}
	if err != nil {
		return "", domain.QueueSnapshot{}, domain.NewRepositoryError("load", "gcs", "failed to download snapshot", err)
	}

	version := strconv.FormatInt(generation, 10)
	var snapshot domain.QueueSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.logger.Warn("stored queue is corrupt, using empty queue", slog.Any("error", err))
		return version, domain.EmptySnapshot(), nil
	}
	return version, repository.Normalize(snapshot), nil
}

// gcsObject adapts a storage.ObjectHandle.
type gcsObject struct {
	handle *storage.ObjectHandle
}

func (o *gcsObject) read(ctx context.Context) ([]byte, int64, error) {
	r, err := o.handle.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, errNotExist
	}
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return data, r.Attrs.Generation, nil
}

func (o *gcsObject) write(ctx context.Context, data []byte) error {
	w := o.handle.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (o *gcsObject) remove(ctx context.Context) error {
	err := o.handle.Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errNotExist
	}
	return err
}

// Verify interface implementation
var _ ports.QueueStore = (*QueueStore)(nil)
