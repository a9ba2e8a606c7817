package cache

import (
	"context"
	"sync"
)

// MemoryTier is the in-process tier: a mutex-guarded map bounded by a
// FIFO queue. When the tier is full the oldest-inserted key is evicted
// first; re-setting an existing key keeps its queue position, so
// eviction order stays strictly insertion order.
type MemoryTier struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]Entry
	queue    []string
	queued   map[string]struct{}

	// OnEvict, when set, observes capacity evictions. Called with the
	// tier lock held; keep it cheap.
	OnEvict func(key string)
}

// NewMemoryTier creates a memory tier bounded to capacity entries.
// A non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemoryTier(capacity int) *MemoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryTier{
		capacity: capacity,
		entries:  make(map[string]Entry),
		queued:   make(map[string]struct{}),
	}
}

// Name returns "memory".
func (m *MemoryTier) Name() string { return TierMemory }

// Get returns the entry for key. The returned value is a copy;
// mutating it cannot poison the tier.
func (m *MemoryTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	e.Value = cloneValue(e.Value)
	return e, true, nil
}

// Set stores the entry, evicting the oldest-inserted key when full.
func (m *MemoryTier) Set(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Value = cloneValue(entry.Value)

	if _, exists := m.queued[entry.Key]; !exists {
		for len(m.queue) >= m.capacity {
			m.evictOldest()
		}
		m.queue = append(m.queue, entry.Key)
		m.queued[entry.Key] = struct{}{}
	}
	m.entries[entry.Key] = entry
	return nil
}

// Delete removes the key and its queue slot.
func (m *MemoryTier) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queued[key]; !ok {
		return nil
	}
	delete(m.entries, key)
	delete(m.queued, key)
	for i, k := range m.queue {
		if k == key {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op for the memory tier.
func (m *MemoryTier) Close() error { return nil }

// Len returns the number of stored entries.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictOldest removes the front of the queue. Must be called with
// m.mu held and a non-empty queue.
func (m *MemoryTier) evictOldest() {
	oldest := m.queue[0]
	m.queue = m.queue[1:]
	delete(m.queued, oldest)
	delete(m.entries, oldest)
	if m.OnEvict != nil {
		m.OnEvict(oldest)
	}
}
