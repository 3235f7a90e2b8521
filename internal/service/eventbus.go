package service

import (
	"slices"
	"sync"
	"time"

	"github.com/bnema/scenefetch/internal/domain"
)

type EventKind string

const (
	EventCreated   EventKind = "created"
	EventAdmitted  EventKind = "admitted"
	EventProgress  EventKind = "progress"
	EventMetadata  EventKind = "metadata"
	EventRetrying  EventKind = "retrying"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventRemoved   EventKind = "removed"
)

// IsTerminal reports whether the event closes a session's lifecycle.
func (k EventKind) IsTerminal() bool {
	return k == EventCompleted || k == EventFailed || k == EventCancelled
}

type SessionEvent struct {
	SessionID string          `json:"session_id"`
	Kind      EventKind       `json:"kind"`
	Snapshot  *domain.Session `json:"snapshot"`
	// Retry carries the classified failure of a retrying event.
	Retry *domain.ErrorInfo `json:"retry,omitempty"`
	At    time.Time         `json:"at"`
}

type EventPublisher interface {
	Publish(event SessionEvent)
}

const subscriberBuffer = 64

type subscription struct {
	ch    chan SessionEvent
	kinds []EventKind
}

func (s subscription) wants(kind EventKind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, kind)
}

// EventBus fans session events out to per-session and global subscribers.
// Slow subscribers lose events instead of blocking the publisher.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	global      []subscription
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]subscription),
	}
}

// Subscribe returns a channel receiving every event of one session.
func (eb *EventBus) Subscribe(sessionID string) chan SessionEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan SessionEvent, subscriberBuffer)
	eb.subscribers[sessionID] = append(eb.subscribers[sessionID], subscription{ch: ch})
	return ch
}

// SubscribeAll receives events of every session, limited to kinds when given.
func (eb *EventBus) SubscribeAll(kinds ...EventKind) chan SessionEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan SessionEvent, subscriberBuffer)
	eb.global = append(eb.global, subscription{ch: ch, kinds: kinds})
	return ch
}

func (eb *EventBus) Unsubscribe(sessionID string, ch chan SessionEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[sessionID]
	for i, sub := range subs {
		if sub.ch == ch {
			eb.subscribers[sessionID] = slices.Delete(subs, i, i+1)
			close(ch)
			break
		}
	}
	if len(eb.subscribers[sessionID]) == 0 {
		delete(eb.subscribers, sessionID)
	}
}

func (eb *EventBus) UnsubscribeAll(ch chan SessionEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, sub := range eb.global {
		if sub.ch == ch {
			eb.global = slices.Delete(eb.global, i, i+1)
			close(ch)
			return
		}
	}
}

func (eb *EventBus) Publish(event SessionEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers[event.SessionID] {
		deliver(sub.ch, event)
	}
	for _, sub := range eb.global {
		if sub.wants(event.Kind) {
			deliver(sub.ch, event)
		}
	}
}

func deliver(ch chan SessionEvent, event SessionEvent) {
	select {
	case ch <- event:
	default:
		// slow subscriber
	}
}
