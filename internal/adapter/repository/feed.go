// Package repository holds pieces shared by the queue store adapters.
package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

// Fetcher reads the stored slot. version identifies the stored content; a
// subscriber is only sent a snapshot when the version differs from the last
// one it received.
type Fetcher func(ctx context.Context) (version string, snapshot domain.QueueSnapshot, err error)

// Feed fans out slot changes to Load subscribers. Each subscriber is served by
// its own goroutine that re-reads the slot on notification, so a slow reader
// never blocks a writer and only ever sees the latest value.
type Feed struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewFeed creates an empty feed.
func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		logger: logger,
		subs:   make(map[chan struct{}]struct{}),
	}
}

// Notify wakes every subscriber. It never blocks.
func (f *Feed) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for wake := range f.subs {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Subscribe emits the current slot immediately and then every changed value
// until ctx is done, at which point the channel is closed.
func (f *Feed) Subscribe(ctx context.Context, fetch Fetcher) <-chan domain.QueueSnapshot {
	out := make(chan domain.QueueSnapshot)
	wake := make(chan struct{}, 1)
	wake <- struct{}{}

	f.mu.Lock()
	f.subs[wake] = struct{}{}
	f.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			f.mu.Lock()
			delete(f.subs, wake)
			f.mu.Unlock()
		}()

		first := true
		var last string
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}

			version, snapshot, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn("failed to read queue slot", slog.Any("error", err))
				continue
			}
			if !first && version == last {
				continue
			}
			first = false
			last = version

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Normalize replaces a nil queue with an empty one and resets the index of an
// empty queue.
func Normalize(s domain.QueueSnapshot) domain.QueueSnapshot {
	if len(s.Queue) == 0 {
		return domain.EmptySnapshot()
	}
	return s
}
