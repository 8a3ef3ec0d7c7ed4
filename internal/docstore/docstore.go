// Package docstore defines the document-store boundary: the collections the
// application reads and writes, and the change feed that drives live sync.
package docstore

import "sync"

type Collection string

const (
	CollectionItems Collection = "inventory_items"
	CollectionZones Collection = "inventory_zones"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes one committed change. Consumers do not get the document
// itself; they reload the full collection, matching the replace-the-world
// snapshot semantics of the upstream store.
type Event struct {
	Collection Collection
	Action     Action
	ID         string
}

const subscriberBuffer = 16

// Feed fans change events out to subscribers. Every committed write is
// published exactly once, in commit order.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of future events and a cancel func. Cancel is
// idempotent; after it returns the channel is closed and no further events
// arrive.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan Event, subscriberBuffer)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers ev to all subscribers without blocking. A subscriber
// whose buffer is full already has reloads pending, so dropping the event
// loses nothing: the pending events trigger the same full reload.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
