package service

import (
	"context"
	"sync"
)

// inbox is an unbounded FIFO of callbacks drained by a single goroutine.
// push never blocks, so engines and focus arbiters may call it from any context.
type inbox struct {
	mu     sync.Mutex
	items  []func()
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

func (b *inbox) push(fn func()) {
	b.mu.Lock()
	b.items = append(b.items, fn)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *inbox) take() []func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

// run applies callbacks in arrival order until ctx is done.
func (b *inbox) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.notify:
			for _, fn := range b.take() {
				fn()
			}
		}
	}
}
