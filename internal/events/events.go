// Package events carries progress notifications from a running task to
// interested observers. Publishing with no observers registered costs
// nothing, so the agent emits unconditionally.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind identifies an event type on the wire.
type Kind string

const (
	KindConnected      Kind = "connected"
	KindTaskStarted    Kind = "task_started"
	KindTaskCompleted  Kind = "task_completed"
	KindTaskFailed     Kind = "task_failed"
	KindStepStarted    Kind = "step_started"
	KindStepCompleted  Kind = "step_completed"
	KindActionExecuted Kind = "action_executed"
	KindStateChanged   Kind = "state_changed"
	KindScreenUpdated  Kind = "screen_updated"
	KindTokensUsed     Kind = "tokens_used"
	KindProgressUpdate Kind = "progress_update"
	KindError          Kind = "error"
)

// Event is one notification. Data carries kind-specific fields.
type Event struct {
	Type      Kind           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TaskID    string         `json:"task_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// New builds an event stamped with the current time.
func New(kind Kind, taskID string, data map[string]any) Event {
	return Event{Type: kind, Timestamp: time.Now(), TaskID: taskID, Data: data}
}

// Observer receives published events. Implementations must not block;
// slow consumers buffer on their own side.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type subscription struct {
	id       uint64
	observer Observer
}

// Broadcaster fans events out to registered observers synchronously, in
// registration order. A panicking observer is isolated; the remaining
// observers still receive the event.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers an observer and returns a function that removes it.
func (b *Broadcaster) Subscribe(o Observer) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, observer: o})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every observer.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s.observer, e)
	}
}

func deliver(o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("event", string(e.Type)).Msg("event observer panicked")
		}
	}()
	o.OnEvent(e)
}
