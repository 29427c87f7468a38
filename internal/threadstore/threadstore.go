// Package threadstore holds thread-scoped key/value state for tool modules.
//
// Two store instances back a running server: a Global store shared by every
// tool module of a thread (the authenticated customer id lives here) and one
// Local store per tool module (staged pending transactions live there). Both
// are ephemeral and in-process only: no entry survives a restart, which is a
// deliberate property of the system, not a gap.
//
// The TakeIf primitive is the store's concurrency contract. Resolving a
// staged transaction must check existence, verify ownership, and delete as a
// single atomic step so that concurrent confirm/cancel calls for the same
// transaction resolve at most once, and a failed ownership check leaves the
// entry intact for the legitimate owner.
package threadstore

import "sync"

// Store is thread-scoped key/value state keyed by (thread id, key).
type Store interface {
	// Get returns the value stored under (thread, key).
	Get(thread, key string) (any, bool)
	// Set stores value under (thread, key), replacing any prior value.
	Set(thread, key string, value any)
	// Delete removes (thread, key) if present.
	Delete(thread, key string)
	// TakeIf atomically removes and returns the value under (thread, key)
	// when accept approves it. A rejected value stays in the store. The
	// second return reports whether the entry was removed, the third whether
	// it existed at all.
	TakeIf(thread, key string, accept func(value any) bool) (any, bool, bool)
}

// Memory is the in-process Store implementation.
type Memory struct {
	mu      sync.Mutex
	threads map[string]map[string]any
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{threads: make(map[string]map[string]any)}
}

// Get implements Store.
func (m *Memory) Get(thread, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.threads[thread]
	if !ok {
		return nil, false
	}
	v, ok := entries[key]
	return v, ok
}

// Set implements Store.
func (m *Memory) Set(thread, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.threads[thread]
	if !ok {
		entries = make(map[string]any)
		m.threads[thread] = entries
	}
	entries[key] = value
}

// Delete implements Store.
func (m *Memory) Delete(thread, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.threads[thread]
	if !ok {
		return
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(m.threads, thread)
	}
}

// TakeIf implements Store.
func (m *Memory) TakeIf(thread, key string, accept func(value any) bool) (any, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.threads[thread]
	if !ok {
		return nil, false, false
	}
	v, ok := entries[key]
	if !ok {
		return nil, false, false
	}
	if accept != nil && !accept(v) {
		return v, false, true
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(m.threads, thread)
	}
	return v, true, true
}
