package cache

import (
	"sync"
	"time"
)

// MemoryStore is a simple in-memory key-value store with expiration.
// When maxLen is reached the entry closest to expiry is evicted.
type MemoryStore[V any] struct {
	mu     sync.RWMutex
	items  map[string]*memoryItem[V]
	maxLen int
	stop   chan struct{}
	once   sync.Once
}

type memoryItem[V any] struct {
	value      V
	expireTime time.Time
}

// NewMemoryStore creates a new in-memory store. maxLen <= 0 means unbounded.
func NewMemoryStore[V any](maxLen int) *MemoryStore[V] {
	store := &MemoryStore[V]{
		items:  make(map[string]*memoryItem[V]),
		maxLen: maxLen,
		stop:   make(chan struct{}),
	}

	go store.cleanupExpired(time.Minute)

	return store
}

// Set stores a key-value pair with expiration
func (ms *MemoryStore[V]) Set(key string, value V, expiration time.Duration) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.items[key]; !exists && ms.maxLen > 0 && len(ms.items) >= ms.maxLen {
		ms.evictOne()
	}
	ms.items[key] = &memoryItem[V]{
		value:      value,
		expireTime: time.Now().Add(expiration),
	}
}

// Get retrieves a value by key
func (ms *MemoryStore[V]) Get(key string) (V, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var zero V
	item, exists := ms.items[key]
	if !exists {
		return zero, false
	}
	if time.Now().After(item.expireTime) {
		return zero, false
	}
	return item.value, true
}

// Delete removes a key
func (ms *MemoryStore[V]) Delete(key string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.items, key)
}

// Len returns the number of stored entries, expired ones included
func (ms *MemoryStore[V]) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}

// Close stops the cleanup goroutine
func (ms *MemoryStore[V]) Close() {
	ms.once.Do(func() { close(ms.stop) })
}

// evictOne drops the entry that expires first. Caller holds the lock.
func (ms *MemoryStore[V]) evictOne() {
	var (
		victim string
		oldest time.Time
	)
	for key, item := range ms.items {
		if victim == "" || item.expireTime.Before(oldest) {
			victim, oldest = key, item.expireTime
		}
	}
	delete(ms.items, victim)
}

// cleanupExpired periodically removes expired items
func (ms *MemoryStore[V]) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stop:
			return
		case <-ticker.C:
		}
		ms.mu.Lock()
		now := time.Now()
		for key, item := range ms.items {
			if now.After(item.expireTime) {
				delete(ms.items, key)
			}
		}
		ms.mu.Unlock()
	}
}
