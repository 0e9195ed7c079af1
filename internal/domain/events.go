// Package domain defines events for the event-driven architecture.
// Observers of the player (CLI status line, session bridges, logging) subscribe to these.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Player events
	EventStateChanged    EventType = "player.state_changed"
	EventPositionChanged EventType = "player.position_changed"
	EventSongChanged     EventType = "player.song_changed"
	EventPlaybackError   EventType = "player.error"

	// Focus events
	EventFocusChanged EventType = "focus.changed"

	// Bridge events
	EventBridgeConnected    EventType = "bridge.connected"
	EventBridgeDisconnected EventType = "bridge.disconnected"

	// Queue store events
	EventQueueHydrated EventType = "queue.hydrated"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// StateChangedEvent carries a full player snapshot after a mutation.
// Seq increases by one per published snapshot.
type StateChangedEvent struct {
	baseEvent
	State PlayerState
	Seq   uint64
}

// Type returns the event type.
func (e StateChangedEvent) Type() EventType {
	return EventStateChanged
}

// NewStateChangedEvent creates a new StateChangedEvent.
func NewStateChangedEvent(state PlayerState, seq uint64) StateChangedEvent {
	return StateChangedEvent{
		baseEvent: newBaseEvent(),
		State:     state,
		Seq:       seq,
	}
}

// PositionChangedEvent is published by the position refresh loop.
type PositionChangedEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e PositionChangedEvent) Type() EventType {
	return EventPositionChanged
}

// NewPositionChangedEvent creates a new PositionChangedEvent.
func NewPositionChangedEvent(position, duration time.Duration) PositionChangedEvent {
	return PositionChangedEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// SongChangedEvent is published when the current song switches to a different id (or to none).
type SongChangedEvent struct {
	baseEvent
	Song  *Song
	Index int
}

// Type returns the event type.
func (e SongChangedEvent) Type() EventType {
	return EventSongChanged
}

// NewSongChangedEvent creates a new SongChangedEvent.
func NewSongChangedEvent(song *Song, index int) SongChangedEvent {
	return SongChangedEvent{
		baseEvent: newBaseEvent(),
		Song:      song,
		Index:     index,
	}
}

// PlaybackErrorEvent is published when the engine reports a failure.
type PlaybackErrorEvent struct {
	baseEvent
	Song  *Song
	Error error
}

// Type returns the event type.
func (e PlaybackErrorEvent) Type() EventType {
	return EventPlaybackError
}

// NewPlaybackErrorEvent creates a new PlaybackErrorEvent.
func NewPlaybackErrorEvent(song *Song, err error) PlaybackErrorEvent {
	return PlaybackErrorEvent{
		baseEvent: newBaseEvent(),
		Song:      song,
		Error:     err,
	}
}

// FocusChangedEvent is published after the controller reacted to a focus change.
type FocusChangedEvent struct {
	baseEvent
	Change FocusChange
}

// Type returns the event type.
func (e FocusChangedEvent) Type() EventType {
	return EventFocusChanged
}

// NewFocusChangedEvent creates a new FocusChangedEvent.
func NewFocusChangedEvent(change FocusChange) FocusChangedEvent {
	return FocusChangedEvent{
		baseEvent: newBaseEvent(),
		Change:    change,
	}
}

// BridgeConnectedEvent is published when a session bridge completes its handshake.
type BridgeConnectedEvent struct {
	baseEvent
	Bridge string
}

// Type returns the event type.
func (e BridgeConnectedEvent) Type() EventType {
	return EventBridgeConnected
}

// NewBridgeConnectedEvent creates a new BridgeConnectedEvent.
func NewBridgeConnectedEvent(bridge string) BridgeConnectedEvent {
	return BridgeConnectedEvent{
		baseEvent: newBaseEvent(),
		Bridge:    bridge,
	}
}

// BridgeDisconnectedEvent is published when a session bridge goes away.
type BridgeDisconnectedEvent struct {
	baseEvent
	Bridge string
	Err    error
}

// Type returns the event type.
func (e BridgeDisconnectedEvent) Type() EventType {
	return EventBridgeDisconnected
}

// NewBridgeDisconnectedEvent creates a new BridgeDisconnectedEvent.
func NewBridgeDisconnectedEvent(bridge string, err error) BridgeDisconnectedEvent {
	return BridgeDisconnectedEvent{
		baseEvent: newBaseEvent(),
		Bridge:    bridge,
		Err:       err,
	}
}

// QueueHydratedEvent is published once the persisted queue was adopted.
type QueueHydratedEvent struct {
	baseEvent
	Snapshot QueueSnapshot
}

// Type returns the event type.
func (e QueueHydratedEvent) Type() EventType {
	return EventQueueHydrated
}

// NewQueueHydratedEvent creates a new QueueHydratedEvent.
func NewQueueHydratedEvent(snapshot QueueSnapshot) QueueHydratedEvent {
	return QueueHydratedEvent{
		baseEvent: newBaseEvent(),
		Snapshot:  snapshot,
	}
}
