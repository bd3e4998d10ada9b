// Package idempotency tracks which event IDs have already been acted upon,
// making at-least-once redelivery safe to consume.
package idempotency

import "sync"

// Tracker is owned by a consumer runtime and shared by all workers on one
// queue. It is defined as an interface so a durable store (Redis, a database)
// can replace the in-memory baseline without touching the runtime.
//
// Claim/Release give the atomic check-and-set that concurrent workers need:
// Claim reserves an event ID for the caller and fails if the event is already
// processed or mid-flight on another worker. MarkProcessed is called only
// after the event's side effects and derived publishes have succeeded.
type Tracker interface {
	IsProcessed(eventID string) bool
	MarkProcessed(eventID string)
	Claim(eventID string) bool
	Release(eventID string)
	Count() int
}

// Memory is the baseline in-memory Tracker. State lives for the process
// lifetime only; a restart forgets everything and relies on downstream
// tolerance of duplicates.
type Memory struct {
	mu        sync.Mutex
	processed map[string]struct{}
	inflight  map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		processed: make(map[string]struct{}),
		inflight:  make(map[string]struct{}),
	}
}

func (m *Memory) IsProcessed(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[eventID]
	return ok
}

func (m *Memory) MarkProcessed(eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, eventID)
	m.processed[eventID] = struct{}{}
}

func (m *Memory) Claim(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[eventID]; ok {
		return false
	}
	if _, ok := m.inflight[eventID]; ok {
		return false
	}
	m.inflight[eventID] = struct{}{}
	return true
}

func (m *Memory) Release(eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, eventID)
}

func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processed)
}
