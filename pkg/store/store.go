package store

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
)

// Callback receives the new and previous value after a slice changes.
type Callback func(newValue, oldValue any)

// subscription pairs a callback with the id used to cancel it.
type subscription struct {
	id uint64
	fn Callback
}

// slice holds one key's current value and its subscribers. One slice
// exists per key for the lifetime of the store; cancelling the last
// subscriber does not discard the value.
type slice struct {
	value  any
	exists bool
	subs   []subscription
}

// Store is a key-addressed reactive state container. Writers call Set,
// readers call Get or Subscribe; every accepted write notifies the
// key's subscribers synchronously, in subscription order.
type Store struct {
	mu     sync.Mutex
	slices map[string]*slice
	nextID uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		slices: make(map[string]*slice),
	}
}

// Get returns the current value for key. Unknown keys return
// (nil, false) and cause no side effects.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slices[key]
	if !ok || !sl.exists {
		return nil, false
	}
	return sl.value, true
}

// Set replaces the value for key. When the new value equals the old
// one (bytewise for raw JSON and byte slices, reflect.DeepEqual
// otherwise) the call is a no-op and no subscriber runs. Otherwise
// every subscriber for the key is invoked with (new, old) in
// subscription order, synchronously, after the store lock is released;
// callbacks may therefore re-enter the store.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()

	sl := s.ensureSlice(key)
	old := sl.value
	if sl.exists && equal(value, old) {
		s.mu.Unlock()
		return
	}
	sl.value = value
	sl.exists = true

	notify := make([]subscription, len(sl.subs))
	copy(notify, sl.subs)
	s.mu.Unlock()

	for _, sub := range notify {
		sub.fn(value, old)
	}
}

// Subscribe registers fn for key and returns a cancel function. The
// cancel is idempotent; calling it after the store or the subscribing
// owner has moved on is safe. Subscribing to a key that has no value
// yet is allowed; the first Set delivers (value, nil).
func (s *Store) Subscribe(key string, fn Callback) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.ensureSlice(key)
	s.nextID++
	id := s.nextID
	sl.subs = append(sl.subs, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range sl.subs {
			if sub.id == id {
				sl.subs = append(sl.subs[:i], sl.subs[i+1:]...)
				return
			}
		}
	}
}

// Keys returns the keys holding a value, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.slices))
	for key, sl := range s.slices {
		if sl.exists {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// ensureSlice returns the slice for key, creating it on first use.
// Must be called with s.mu held.
func (s *Store) ensureSlice(key string) *slice {
	sl, ok := s.slices[key]
	if !ok {
		sl = &slice{}
		s.slices[key] = sl
	}
	return sl
}

// equal reports whether two slice values are interchangeable for
// notification purposes. Raw JSON documents compare bytewise so a
// re-fetch of unchanged data does not re-render subscribers.
func equal(a, b any) bool {
	ab, aRaw := rawBytes(a)
	bb, bRaw := rawBytes(b)
	if aRaw || bRaw {
		return aRaw && bRaw && bytes.Equal(ab, bb)
	}
	return reflect.DeepEqual(a, b)
}

func rawBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case json.RawMessage:
		return b, true
	case []byte:
		return b, true
	}
	return nil, false
}
