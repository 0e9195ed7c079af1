package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

func testSong(id string) *domain.Song {
	return &domain.Song{ID: id, Name: "Song " + id, Artists: "Artist", StreamURL: "https://cdn.example/" + id}
}

// TestNewSyncEventBus tests event bus creation.
func TestNewSyncEventBus(t *testing.T) {
	bus := NewSyncEventBus()

	if bus == nil {
		t.Fatal("NewSyncEventBus returned nil")
	}

	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", bus.SubscriberCount())
	}

	if bus.closed {
		t.Error("New event bus should not be closed")
	}
}

// TestPublishSubscribe tests basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var received domain.Event
	var callCount int

	subID := bus.Subscribe(domain.EventSongChanged, func(event domain.Event) {
		received = event
		callCount++
	})

	if !strings.HasPrefix(string(subID), "sub-") {
		t.Fatalf("Unexpected subscription ID %q", subID)
	}

	bus.Publish(domain.NewSongChangedEvent(testSong("test123"), 2))

	if callCount != 1 {
		t.Errorf("Expected handler to be called once, got %d", callCount)
	}

	if received == nil {
		t.Fatal("Handler did not receive event")
	}

	if received.Type() != domain.EventSongChanged {
		t.Errorf("Expected EventSongChanged, got %s", received.Type())
	}

	receivedEvent := received.(domain.SongChangedEvent)
	if receivedEvent.Song.ID != "test123" || receivedEvent.Index != 2 {
		t.Errorf("Unexpected event payload: %+v", receivedEvent)
	}
}

// TestMultipleSubscribers tests multiple handlers for the same event type.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var callCount1, callCount2, callCount3 int32

	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) { atomic.AddInt32(&callCount1, 1) })
	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) { atomic.AddInt32(&callCount2, 1) })
	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) { atomic.AddInt32(&callCount3, 1) })

	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))

	if atomic.LoadInt32(&callCount1) != 1 {
		t.Errorf("Handler 1: expected 1 call, got %d", callCount1)
	}
	if atomic.LoadInt32(&callCount2) != 1 {
		t.Errorf("Handler 2: expected 1 call, got %d", callCount2)
	}
	if atomic.LoadInt32(&callCount3) != 1 {
		t.Errorf("Handler 3: expected 1 call, got %d", callCount3)
	}
}

// TestUnsubscribe tests unsubscribing handlers.
func TestUnsubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var callCount int32

	subID := bus.Subscribe(domain.EventSongChanged, func(event domain.Event) {
		atomic.AddInt32(&callCount, 1)
	})

	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected 1 call before unsubscribe, got %d", callCount)
	}

	bus.Unsubscribe(subID)
	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected 1 call after unsubscribe, got %d", callCount)
	}
}

// TestUnsubscribeKeepsOrder tests that removing a subscriber does not reorder the others.
func TestUnsubscribeKeepsOrder(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var order []string
	record := func(name string) domain.EventHandler {
		return func(domain.Event) { order = append(order, name) }
	}

	bus.Subscribe(domain.EventStateChanged, record("first"))
	second := bus.Subscribe(domain.EventStateChanged, record("second"))
	bus.Subscribe(domain.EventStateChanged, record("third"))
	bus.Subscribe(domain.EventStateChanged, record("fourth"))

	bus.Unsubscribe(second)
	bus.Publish(domain.NewStateChangedEvent(domain.NewPlayerState(), 1))

	want := []string{"first", "third", "fourth"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("Expected order %v, got %v", want, order)
	}
}

// TestUnsubscribeInvalidID tests unsubscribing with invalid ID (should be no-op).
func TestUnsubscribeInvalidID(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	bus.Unsubscribe("invalid-id")
	bus.Unsubscribe("")
}

// TestSubscribeAll tests wildcard subscriptions.
func TestSubscribeAll(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var receivedEvents []domain.Event
	var mu sync.Mutex

	bus.SubscribeAll(func(event domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		receivedEvents = append(receivedEvents, event)
	})

	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))
	bus.Publish(domain.NewPositionChangedEvent(10*time.Second, time.Minute))
	bus.Publish(domain.NewFocusChangedEvent(domain.FocusLoss))

	mu.Lock()
	defer mu.Unlock()

	if len(receivedEvents) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(receivedEvents))
	}
	if receivedEvents[2].Type() != domain.EventFocusChanged {
		t.Errorf("Expected focus event last, got %s", receivedEvents[2].Type())
	}
}

// TestSubscribeFiltered tests that filters gate delivery.
func TestSubscribeFiltered(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var withSong int32
	bus.SubscribeFiltered(domain.EventStateChanged, func(e domain.Event) bool {
		return e.(domain.StateChangedEvent).State.CurrentSong != nil
	}, func(domain.Event) {
		atomic.AddInt32(&withSong, 1)
	})

	empty := domain.NewPlayerState()
	loaded := domain.NewPlayerState()
	loaded.CurrentSong = testSong("x")

	bus.Publish(domain.NewStateChangedEvent(empty, 1))
	bus.Publish(domain.NewStateChangedEvent(loaded, 2))

	if atomic.LoadInt32(&withSong) != 1 {
		t.Errorf("Expected 1 filtered delivery, got %d", withSong)
	}
}

// TestHasSubscribers tests checking for active subscriptions.
func TestHasSubscribers(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	if bus.HasSubscribers(domain.EventSongChanged) {
		t.Error("Expected no subscribers initially")
	}

	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) {})

	if !bus.HasSubscribers(domain.EventSongChanged) {
		t.Error("Expected subscribers after Subscribe")
	}

	if bus.HasSubscribers(domain.EventFocusChanged) {
		t.Error("Expected no subscribers for different event type")
	}
}

// TestHasSubscribersWithWildcard tests HasSubscribers with wildcard subscriptions.
func TestHasSubscribersWithWildcard(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	bus.SubscribeAll(func(event domain.Event) {})

	if !bus.HasSubscribers(domain.EventSongChanged) {
		t.Error("Expected wildcard subscriber to count for song events")
	}
	if !bus.HasSubscribers(domain.EventBridgeConnected) {
		t.Error("Expected wildcard subscriber to count for bridge events")
	}
}

// TestHandlerPanic tests that panicking handlers don't crash the event bus.
func TestHandlerPanic(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var callCount int32

	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) { panic("test panic") })
	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) { atomic.AddInt32(&callCount, 1) })

	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected normal handler to be called despite panic, got %d calls", callCount)
	}
}

// TestClose tests closing the event bus.
func TestClose(t *testing.T) {
	bus := NewSyncEventBus()

	handler := func(event domain.Event) {}
	bus.Subscribe(domain.EventSongChanged, handler)
	bus.SubscribeAll(handler)

	if bus.SubscriberCount() != 2 {
		t.Errorf("Expected 2 subscribers before close, got %d", bus.SubscriberCount())
	}

	if err := bus.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after close, got %d", bus.SubscriberCount())
	}

	// Publishing should be a no-op (shouldn't panic)
	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))

	if err := bus.Close(); err == nil {
		t.Error("Expected error when closing already closed bus")
	}
}

// TestConcurrentPublish tests concurrent event publishing (race condition test).
func TestConcurrentPublish(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var eventCount int32
	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) {
		atomic.AddInt32(&eventCount, 1)
	})

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				bus.Publish(domain.NewSongChangedEvent(testSong("a"), j))
			}
		}()
	}

	wg.Wait()

	expectedCount := int32(numGoroutines * eventsPerGoroutine)
	if atomic.LoadInt32(&eventCount) != expectedCount {
		t.Errorf("Expected %d events, got %d", expectedCount, eventCount)
	}
}

// TestConcurrentSubscribe tests concurrent subscriptions (race condition test).
func TestConcurrentSubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	const numGoroutines = 10
	const subscriptionsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	handler := func(event domain.Event) {}

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < subscriptionsPerGoroutine; j++ {
				bus.Subscribe(domain.EventSongChanged, handler)
			}
		}()
	}

	wg.Wait()

	expectedCount := numGoroutines * subscriptionsPerGoroutine
	if bus.SubscriberCount() != expectedCount {
		t.Errorf("Expected %d subscribers, got %d", expectedCount, bus.SubscriberCount())
	}
}

// TestNilEvent tests publishing nil event (should be no-op).
func TestNilEvent(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var callCount int32
	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) {
		atomic.AddInt32(&callCount, 1)
	})

	bus.Publish(nil)

	if atomic.LoadInt32(&callCount) != 0 {
		t.Errorf("Handler should not be called for nil event, got %d calls", callCount)
	}
}

// TestNilHandler tests that subscribing with nil handler panics.
func TestNilHandler(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when subscribing with nil handler")
		}
	}()

	bus.Subscribe(domain.EventSongChanged, nil)
}

// TestDifferentEventTypes tests that subscribers only receive their event type.
func TestDifferentEventTypes(t *testing.T) {
	bus := NewSyncEventBus()
	defer bus.Close()

	var songCount, focusCount int32

	bus.Subscribe(domain.EventSongChanged, func(event domain.Event) { atomic.AddInt32(&songCount, 1) })
	bus.Subscribe(domain.EventFocusChanged, func(event domain.Event) { atomic.AddInt32(&focusCount, 1) })

	bus.Publish(domain.NewSongChangedEvent(testSong("a"), 0))

	if atomic.LoadInt32(&songCount) != 1 || atomic.LoadInt32(&focusCount) != 0 {
		t.Errorf("Unexpected counts after song event: song=%d focus=%d", songCount, focusCount)
	}

	bus.Publish(domain.NewFocusChangedEvent(domain.FocusLossTransientCanDuck))

	if atomic.LoadInt32(&songCount) != 1 || atomic.LoadInt32(&focusCount) != 1 {
		t.Errorf("Unexpected counts after focus event: song=%d focus=%d", songCount, focusCount)
	}
}
