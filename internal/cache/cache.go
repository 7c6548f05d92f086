// Package cache provides the TTL key-value store backing PKCE handshake
// state and auth-start rate counters. The interface matches what a
// networked cache would offer so the in-process implementation can be
// swapped without touching callers.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a key-value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Observe records one event against key and returns how many events
	// fall inside the trailing window, the event just recorded included.
	// The window slides: events age out individually rather than in
	// whole-window steps.
	Observe(ctx context.Context, key string, window time.Duration) (int64, error)
}

type entry struct {
	value     string
	events    []time.Time
	expiresAt time.Time
}

// Memory is an in-process Store with a background sweeper.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemory starts a Memory store sweeping expired entries once a minute.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the sweeper.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) live(key string) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Observe(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e := m.live(key)
	if e == nil {
		e = &entry{}
		m.entries[key] = e
	}
	cutoff := now.Add(-window)
	kept := e.events[:0]
	for _, at := range e.events {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	e.events = append(kept, now)
	// the entry lives as long as its newest event is inside some window
	e.expiresAt = now.Add(window)
	return int64(len(e.events)), nil
}
