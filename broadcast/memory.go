package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Hub defines a public type used by authkit APIs.
//
// Hub instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// A Hub is the in-process equivalent of a named channel: every [Memory]
// broadcaster joined to the same Hub is a sibling context.
type Hub struct {
	mu      sync.Mutex
	members map[string]*Memory
}

// NewHub describes the newhub operation and its observable behavior.
//
// NewHub does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHub() *Hub {
	return &Hub{members: make(map[string]*Memory)}
}

// Join describes the join operation and its observable behavior.
//
// Join does not mutate shared global state beyond the hub and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hub) Join(maxAge time.Duration) *Memory {
	if maxAge <= 0 {
		maxAge = DefaultMaxMessageAge
	}
	m := &Memory{
		hub:    h,
		origin: uuid.NewString(),
		maxAge: maxAge,
		now:    time.Now,
	}

	h.mu.Lock()
	h.members[m.origin] = m
	h.mu.Unlock()

	return m
}

func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	targets := make([]*Memory, 0, len(h.members))
	for _, m := range h.members {
		targets = append(targets, m)
	}
	h.mu.Unlock()

	for _, m := range targets {
		go m.deliver(msg)
	}
}

func (h *Hub) leave(origin string) {
	h.mu.Lock()
	delete(h.members, origin)
	h.mu.Unlock()
}

// Memory defines a public type used by authkit APIs.
//
// Memory instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Memory struct {
	hub    *Hub
	origin string
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	handlers []Handler
	closed   atomic.Bool
	dropped  atomic.Uint64
}

// Origin describes the origin operation and its observable behavior.
//
// Origin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Origin() string {
	return m.origin
}

// Dropped reports how many messages this subscriber discarded as stale.
func (m *Memory) Dropped() uint64 {
	return m.dropped.Load()
}

// Publish describes the publish operation and its observable behavior.
//
// Publish does not mutate shared global state beyond the hub and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Publish(_ context.Context, kind Kind, payload json.RawMessage) error {
	if m.closed.Load() {
		return nil
	}
	m.hub.fanOut(Message{
		Kind:     kind,
		Origin:   m.origin,
		IssuedAt: m.now(),
		Payload:  payload,
	})
	return nil
}

// Subscribe describes the subscribe operation and its observable behavior.
//
// Subscribe does not mutate shared global state beyond the receiver and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	m.handlers = append(m.handlers, handler)
	m.mu.Unlock()
}

func (m *Memory) deliver(msg Message) {
	if m.closed.Load() {
		return
	}
	if msg.Origin == m.origin {
		return
	}
	if m.now().Sub(msg.IssuedAt) > m.maxAge {
		m.dropped.Add(1)
		return
	}

	m.mu.Lock()
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state beyond the hub and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.hub.leave(m.origin)
	return nil
}
