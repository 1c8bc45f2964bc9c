// Package bus fans realtime events out to connected listeners, grouped
// by tenant. Delivery is at-most-once and best effort: durable state
// lives in the messaging stores, never here.
package bus

import (
	"sync"
	"time"
)

// Event is one realtime payload addressed at a tenant room.
type Event struct {
	Kind     string    `json:"kind"`
	TenantID string    `json:"tenant_id"`
	Payload  any       `json:"payload"`
	At       time.Time `json:"at"`
}

// subscriberBuffer bounds each listener's queue. A listener that falls
// this far behind is dropped instead of blocking publishers.
const subscriberBuffer = 16

// Subscription is one listener's handle on a tenant room.
type Subscription struct {
	ID     string
	Tenant string
	C      <-chan Event
}

type subscriber struct {
	tenant string
	ch     chan Event
}

// Bus is an in-process event fan-out keyed by tenant.
type Bus struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*subscriber

	onDrop func(tenantID, connID string)
}

func New() *Bus {
	return &Bus{rooms: make(map[string]map[string]*subscriber)}
}

// OnDrop registers a callback invoked when a slow subscriber is evicted.
// Used for metrics; must be set before any Join.
func (b *Bus) OnDrop(fn func(tenantID, connID string)) {
	b.onDrop = fn
}

// Join adds a listener to tenantID's room.
func (b *Bus) Join(connID, tenantID string) Subscription {
	sub := &subscriber{tenant: tenantID, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[tenantID]
	if !ok {
		room = make(map[string]*subscriber)
		b.rooms[tenantID] = room
	}
	room[connID] = sub
	return Subscription{ID: connID, Tenant: tenantID, C: sub.ch}
}

// Leave removes a listener and closes its channel. Safe to call twice.
func (b *Bus) Leave(connID, tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(connID, tenantID)
}

func (b *Bus) removeLocked(connID, tenantID string) {
	room, ok := b.rooms[tenantID]
	if !ok {
		return
	}
	sub, ok := room[connID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(b.rooms, tenantID)
	}
	close(sub.ch)
}

// Publish delivers the event to every current listener in the tenant's
// room. An empty room is a no-op. A listener with a full buffer is
// evicted, not waited on.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	// Sends happen under the read lock so no channel can be closed
	// mid-send; they never block thanks to the default branch.
	b.mu.RLock()
	var dropped []string
	for connID, sub := range b.rooms[event.TenantID] {
		select {
		case sub.ch <- event:
		default:
			dropped = append(dropped, connID)
		}
	}
	b.mu.RUnlock()

	if len(dropped) == 0 {
		return
	}
	b.mu.Lock()
	for _, connID := range dropped {
		b.removeLocked(connID, event.TenantID)
	}
	b.mu.Unlock()
	if b.onDrop != nil {
		for _, connID := range dropped {
			b.onDrop(event.TenantID, connID)
		}
	}
}

// Listeners reports the current room size. Used by tests and the health
// endpoint.
func (b *Bus) Listeners(tenantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[tenantID])
}
