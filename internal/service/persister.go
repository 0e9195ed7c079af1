package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// saveTimeout bounds a single store write.
const saveTimeout = 5 * time.Second

// persister writes queue snapshots from a single goroutine.
// Submissions coalesce: only the latest pending snapshot is written, so a
// slow save can never overwrite a newer one.
type persister struct {
	logger *slog.Logger
	store  ports.QueueStore

	mu      sync.Mutex
	pending *domain.QueueSnapshot
	seq     uint64 // sequence of the latest submission
	saved   uint64 // sequence of the latest successful save

	notify chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newPersister(logger *slog.Logger, store ports.QueueStore) *persister {
	return &persister{
		logger: logger,
		store:  store,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// submit replaces the pending snapshot. It never blocks.
func (p *persister) submit(snapshot domain.QueueSnapshot) uint64 {
	p.mu.Lock()
	p.seq++
	p.pending = &snapshot
	seq := p.seq
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return seq
}

func (p *persister) start(ctx context.Context) {
	// Saves outlive the run context so that Stop can still write the last snapshot.
	saveCtx := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stop:
				p.flush(saveCtx)
				return
			case <-p.notify:
				p.flush(saveCtx)
			}
		}
	}()
}

// close stops the writer after flushing the last pending snapshot.
func (p *persister) close() {
	close(p.stop)
	p.wg.Wait()
}

// lastSaved returns the sequence of the latest successful save.
func (p *persister) lastSaved() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved
}

// latest returns the sequence of the latest submission.
func (p *persister) latest() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func (p *persister) flush(ctx context.Context) {
	p.mu.Lock()
	snapshot := p.pending
	seq := p.seq
	p.pending = nil
	p.mu.Unlock()

	if snapshot == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	err := p.store.Save(saveCtx, *snapshot)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		// Keep the snapshot for the next flush unless a newer one replaced it.
		if p.pending == nil {
			p.pending = snapshot
		}
		p.logger.Warn("failed to persist queue",
			slog.Int("queue_len", len(snapshot.Queue)),
			slog.Any("error", err))
		return
	}

	p.saved = seq
	p.logger.Debug("queue persisted",
		slog.Uint64("seq", seq),
		slog.Int("queue_len", len(snapshot.Queue)),
		slog.Int("current_index", snapshot.CurrentIndex))
}
