package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handler processes one event. Returned errors are logged by the Bus.
type Handler func(ctx context.Context, event *Event) error

// Subscription binds a named handler to an event type
type Subscription struct {
	ID      uint64
	Type    EventType
	Name    string
	Handler Handler
}

type subscriptionTable map[EventType][]Subscription

// Registry maps event types to ordered subscriber lists.
// Writers copy the table and swap it in; readers never lock.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	table  atomic.Pointer[subscriptionTable]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{}
	empty := subscriptionTable{}
	r.table.Store(&empty)
	return r
}

// Add appends a subscription and returns its id. Registering the same
// handler twice yields two entries.
func (r *Registry) Add(t EventType, name string, h Handler) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := Subscription{ID: r.nextID, Type: t, Name: name, Handler: h}

	next := r.copyTable()
	list := make([]Subscription, 0, len(next[t])+1)
	list = append(list, next[t]...)
	next[t] = append(list, sub)
	r.table.Store(&next)

	return sub.ID
}

// Remove drops the subscription with id. Unknown ids are ignored.
func (r *Registry) Remove(t EventType, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.table.Load()
	idx := -1
	for i, sub := range current[t] {
		if sub.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	next := r.copyTable()
	list := make([]Subscription, 0, len(current[t])-1)
	list = append(list, current[t][:idx]...)
	list = append(list, current[t][idx+1:]...)
	if len(list) == 0 {
		delete(next, t)
	} else {
		next[t] = list
	}
	r.table.Store(&next)
}

// Handlers returns the subscriptions for t in registration order.
// The returned slice must not be modified.
func (r *Registry) Handlers(t EventType) []Subscription {
	return (*r.table.Load())[t]
}

// Count returns the number of subscriptions per event type
func (r *Registry) Count() map[EventType]int {
	table := *r.table.Load()
	counts := make(map[EventType]int, len(table))
	for t, subs := range table {
		counts[t] = len(subs)
	}
	return counts
}

// copyTable must be called with mu held.
func (r *Registry) copyTable() subscriptionTable {
	current := *r.table.Load()
	next := make(subscriptionTable, len(current)+1)
	for t, subs := range current {
		next[t] = subs
	}
	return next
}
