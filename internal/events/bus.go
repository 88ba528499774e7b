// Package events carries the invalidate-and-refetch contract: after a
// successful mutation the mutating component publishes ResourceChanged, and
// every list that owns that resource re-queries.
package events

import "sync"

// ResourceChanged tells subscribers that the server-side state of Resource moved.
type ResourceChanged struct {
	Resource string
}

// Publisher is the only capability mutating components need.
type Publisher interface {
	Publish(evt ResourceChanged)
}

// Bus is a synchronous, in-process publish/subscribe hub keyed by resource name.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(ResourceChanged)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(ResourceChanged))}
}

// Subscribe registers fn for resource and returns a function that removes it.
func (b *Bus) Subscribe(resource string, fn func(ResourceChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[resource] == nil {
		b.subs[resource] = make(map[int]func(ResourceChanged))
	}
	b.subs[resource][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[resource], id)
		})
	}
}

// Publish calls every subscriber of evt.Resource once, outside the bus lock.
func (b *Bus) Publish(evt ResourceChanged) {
	b.mu.RLock()
	handlers := make([]func(ResourceChanged), 0, len(b.subs[evt.Resource]))
	for _, fn := range b.subs[evt.Resource] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
