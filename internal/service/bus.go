package service

import (
	"context"
	"sync"
)

// EventKind says which part of a layer's state changed.
type EventKind string

const (
	EventLoad       EventKind = "load"       // State is a LoadState
	EventVisibility EventKind = "visibility" // State is a Visibility
)

// Event is a change to one layer of the map session.
type Event struct {
	Kind    EventKind
	LayerID string
	State   string
}

// LoadEvent reports a load task state change.
func LoadEvent(st LoadStatus) Event {
	return Event{Kind: EventLoad, LayerID: st.LayerID, State: string(st.State)}
}

// VisibilityEvent reports a visibility change.
func VisibilityEvent(id string, v Visibility) Event {
	return Event{Kind: EventVisibility, LayerID: id, State: string(v)}
}

// EventBus fans session events out to every open page. Publish never
// blocks; a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates an event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish delivers e to all current subscribers. A nil bus drops it.
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of events that stays open until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Subscribers returns the number of open subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
