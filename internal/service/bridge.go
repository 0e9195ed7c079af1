package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// bridgeLink tracks one attached session bridge.
type bridgeLink struct {
	bridge  ports.SessionBridge
	subID   domain.SubscriptionID
	lastSeq atomic.Uint64
}

// render forwards a snapshot unless a newer one was already rendered.
func (l *bridgeLink) render(e domain.StateChangedEvent) {
	for {
		last := l.lastSeq.Load()
		if e.Seq <= last {
			return
		}
		if l.lastSeq.CompareAndSwap(last, e.Seq) {
			l.bridge.Render(e.State)
			return
		}
	}
}

// AttachBridge performs the bridge handshake: connect and wait until the
// surface is ready, register the controller as its command target, then keep
// it rendering every published state. A later disconnect marks the bridge
// unavailable; it is logged and never fatal. Start must have been called.
func (c *Controller) AttachBridge(ctx context.Context, bridge ports.SessionBridge) error {
	c.mu.RLock()
	runCtx := c.ctx
	active := c.started && !c.stopped
	c.mu.RUnlock()
	if !active {
		return domain.ErrNotInitialized
	}

	logger := c.logger.With(slog.String("bridge", bridge.Name()))

	if err := bridge.Connect(ctx); err != nil {
		logger.Warn("session bridge unavailable", slog.Any("error", err))
		return domain.NewServiceError("Controller", "attach_bridge",
			fmt.Sprintf("connect %s", bridge.Name()), errors.Join(domain.ErrBridgeUnavailable, err))
	}

	if err := bridge.Attach(c); err != nil {
		logger.Warn("session bridge rejected controller", slog.Any("error", err))
		_ = bridge.Close()
		return domain.NewServiceError("Controller", "attach_bridge",
			fmt.Sprintf("attach %s", bridge.Name()), errors.Join(domain.ErrBridgeUnavailable, err))
	}

	link := &bridgeLink{bridge: bridge}
	link.subID = c.bus.Subscribe(domain.EventStateChanged, func(e domain.Event) {
		if sc, ok := e.(domain.StateChangedEvent); ok {
			link.render(sc)
		}
	})

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.bus.Unsubscribe(link.subID)
		_ = bridge.Close()
		return domain.ErrNotInitialized
	}
	c.bridges = append(c.bridges, link)
	c.state.BridgeConnected = true
	c.wg.Add(1)
	c.publishLocked(c.state.CurrentSong, domain.NewBridgeConnectedEvent(bridge.Name()))

	logger.Info("session bridge attached")

	go func() {
		defer c.wg.Done()
		select {
		case <-runCtx.Done():
		case <-bridge.Disconnected():
			c.detachBridge(link, nil)
		}
	}()
	return nil
}

// detachBridge drops a bridge that went away on its own.
func (c *Controller) detachBridge(link *bridgeLink, cause error) {
	c.bus.Unsubscribe(link.subID)

	c.mu.Lock()
	idx := slices.Index(c.bridges, link)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.bridges = slices.Delete(c.bridges, idx, idx+1)
	c.mu.Unlock()

	name := link.bridge.Name()
	if err := link.bridge.Close(); err != nil {
		c.logger.Debug("closing disconnected bridge failed", slog.String("bridge", name), slog.Any("error", err))
	}

	c.mu.Lock()
	c.state.BridgeConnected = len(c.bridges) > 0
	c.logger.Warn("session bridge disconnected", slog.String("bridge", name))
	c.publishLocked(c.state.CurrentSong, domain.NewBridgeDisconnectedEvent(name, cause))
}

// Bridges returns the names of the attached bridges.
func (c *Controller) Bridges() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.bridges))
	for i, l := range c.bridges {
		names[i] = l.bridge.Name()
	}
	return names
}
