// Package events provides the event bus connecting the orchestration layer
// to whatever frontend is listening (CLI output, a future GUI). Publishers
// never block: a subscriber that falls behind drops events.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/halyard-dev/halyard/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Session lifecycle
	EventSessionCreated      EventType = "session_created"
	EventSessionSwitched     EventType = "session_switched"
	EventSessionClosed       EventType = "session_closed"
	EventSessionStatus       EventType = "session_status"        // status transition on a session
	EventSessionRecovered    EventType = "session_recovered"     // keep-alive reconnect succeeded
	EventListingRestored     EventType = "listing_restored"      // cached listings rendered on switch
	EventNavigationCompleted EventType = "navigation_completed"  // a tree changed directory

	// Navigation mirroring
	EventMirrorApplied    EventType = "mirror_applied"
	EventMirrorMissingDir EventType = "mirror_missing_dir"
	EventMirrorDisabled   EventType = "mirror_disabled"

	// Transfer batch
	EventTransferQueued    EventType = "transfer_queued"
	EventTransferStarted   EventType = "transfer_started"
	EventTransferProgress  EventType = "transfer_progress"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferSkipped   EventType = "transfer_skipped"
	EventTransferCancelled EventType = "transfer_cancelled"
	EventBatchFinished     EventType = "batch_finished"

	// Conflict resolution
	EventConflictDetected EventType = "conflict_detected"
	EventConflictResolved EventType = "conflict_resolved"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// SessionEvent carries session lifecycle notifications.
type SessionEvent struct {
	BaseEvent
	SessionID   string
	SessionName string
	Backend     string // backend kind (plus sub-kind for providers)
	OldStatus   string
	NewStatus   string
	Err         error // set on failed transitions (reconnect failure etc.)
}

// NavigationEvent carries directory-change notifications for either tree.
type NavigationEvent struct {
	BaseEvent
	SessionID string
	Tree      string // "remote" or "local"
	Path      string
	Entries   int
}

// MirrorEvent carries navigation-sync notifications.
type MirrorEvent struct {
	BaseEvent
	SessionID  string
	SourceTree string // tree the user navigated
	SourcePath string
	TargetPath string // mirrored path on the other tree
	Err        error
}

// TransferEvent carries per-item transfer queue notifications.
type TransferEvent struct {
	BaseEvent
	BatchID   string
	ItemID    string
	SessionID string
	Direction string // "upload" or "download"
	Name      string
	Size      int64
	Progress  float64 // 0.0 to 1.0
	Speed     float64 // bytes/sec
	Err       error
}

// BatchEvent summarizes a finished transfer batch.
type BatchEvent struct {
	BaseEvent
	BatchID   string
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Cancelled int
	Duration  time.Duration
}

// ConflictEvent carries overwrite-conflict notifications.
type ConflictEvent struct {
	BaseEvent
	BatchID  string
	Name     string
	Action   string // decision action once resolved
	ApplyAll bool
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Never blocks; a full
// subscriber buffer drops the event and increments the drop counter.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// DroppedEventCount returns the total number of events dropped due to full
// buffers. Useful for detecting undersized subscriber buffers.
func (eb *EventBus) DroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// PublishSessionStatus is a convenience method for session status transitions.
func (eb *EventBus) PublishSessionStatus(sessionID, name, backend, oldStatus, newStatus string, err error) {
	eb.Publish(&SessionEvent{
		BaseEvent:   BaseEvent{EventType: EventSessionStatus, Time: time.Now()},
		SessionID:   sessionID,
		SessionName: name,
		Backend:     backend,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Err:         err,
	})
}
