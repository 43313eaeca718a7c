// Package events carries workflow notifications from controllers to whoever
// is listening (the log bridge, CLI progress output, tests).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eightd/eightd/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventPhaseChanged     EventType = "phase_changed"     // Controller moved between Idle/Submitting/Completed
	EventNotice           EventType = "notice"            // Transient user-facing notice raised
	EventResultReady      EventType = "result_ready"      // Result handle acquired
	EventResultReleased   EventType = "result_released"   // Result handle released
	EventTransferProgress EventType = "transfer_progress" // Bytes sent to the processing service
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

// PhaseChangedEvent is published on every controller phase transition.
type PhaseChangedEvent struct {
	BaseEvent
	SessionID string
	OldPhase  string
	NewPhase  string
	FileName  string
}

// NoticeEvent is published whenever a notice is raised.
type NoticeEvent struct {
	BaseEvent
	SessionID string
	Kind      string // "missing_input" or "transfer_failure"
	Message   string
	Error     error
}

// ResultEvent is published when a result handle is acquired or released.
type ResultEvent struct {
	BaseEvent
	SessionID string
	HandleID  string
	Size      int64
}

// TransferProgressEvent reports upload progress for one submission.
type TransferProgressEvent struct {
	BaseEvent
	SessionID  string
	FileName   string
	BytesSent  int64
	BytesTotal int64
}

// Progress returns the sent fraction in [0, 1].
func (e *TransferProgressEvent) Progress() float64 {
	if e.BytesTotal <= 0 {
		return 0
	}
	return float64(e.BytesSent) / float64(e.BytesTotal)
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
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

// Publish sends an event to all subscribers without blocking.
// A nil bus is a valid no-op publisher.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

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

// UnsubscribeAll removes a subscription channel from every list it appears in.
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

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// PublishPhaseChange is a convenience method for publishing phase transitions
func (eb *EventBus) PublishPhaseChange(sessionID, oldPhase, newPhase, fileName string) {
	eb.Publish(&PhaseChangedEvent{
		BaseEvent: BaseEvent{EventType: EventPhaseChanged, Time: time.Now()},
		SessionID: sessionID,
		OldPhase:  oldPhase,
		NewPhase:  newPhase,
		FileName:  fileName,
	})
}

// PublishNotice is a convenience method for publishing notices
func (eb *EventBus) PublishNotice(sessionID, kind, message string, err error) {
	eb.Publish(&NoticeEvent{
		BaseEvent: BaseEvent{EventType: EventNotice, Time: time.Now()},
		SessionID: sessionID,
		Kind:      kind,
		Message:   message,
		Error:     err,
	})
}

// PublishResult is a convenience method for result acquire/release events
func (eb *EventBus) PublishResult(eventType EventType, sessionID, handleID string, size int64) {
	eb.Publish(&ResultEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		SessionID: sessionID,
		HandleID:  handleID,
		Size:      size,
	})
}

// PublishTransferProgress is a convenience method for upload progress
func (eb *EventBus) PublishTransferProgress(sessionID, fileName string, sent, total int64) {
	eb.Publish(&TransferProgressEvent{
		BaseEvent:  BaseEvent{EventType: EventTransferProgress, Time: time.Now()},
		SessionID:  sessionID,
		FileName:   fileName,
		BytesSent:  sent,
		BytesTotal: total,
	})
}
