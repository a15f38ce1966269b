package continuity

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"framealign/internal/overlay"
)

// memo is a compute-if-absent map of transforms. Concurrent callers for the
// same key share one computation; failed computations are not stored.
type memo[K comparable] struct {
	mu      sync.RWMutex
	entries map[K]overlay.Transform
	flight  singleflight.Group
	name    func(K) string
}

func newMemo[K comparable](name func(K) string) *memo[K] {
	return &memo[K]{entries: make(map[K]overlay.Transform), name: name}
}

func (m *memo[K]) lookup(key K) (overlay.Transform, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.entries[key]
	return t, ok
}

// get returns the cached value for key or computes it with fn. The second
// result reports whether the value came from the cache or a shared flight.
func (m *memo[K]) get(key K, fn func() (overlay.Transform, error)) (overlay.Transform, bool, error) {
	if t, ok := m.lookup(key); ok {
		return t, true, nil
	}
	v, err, shared := m.flight.Do(m.name(key), func() (any, error) {
		if t, ok := m.lookup(key); ok {
			return t, nil
		}
		t, err := fn()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = t
		m.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return overlay.Transform{}, false, err
	}
	return v.(overlay.Transform), shared, nil
}

func (m *memo[K]) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// frameLocks serializes work on the same frame number.
type frameLocks struct {
	mu    sync.Mutex
	locks map[int]*frameLock
}

type frameLock struct {
	mu   sync.Mutex
	refs int
}

func newFrameLocks() *frameLocks {
	return &frameLocks{locks: make(map[int]*frameLock)}
}

// lock blocks until frame is free and returns the matching unlock.
func (f *frameLocks) lock(frame int) func() {
	f.mu.Lock()
	l, ok := f.locks[frame]
	if !ok {
		l = &frameLock{}
		f.locks[frame] = l
	}
	l.refs++
	f.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		f.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, frame)
		}
		f.mu.Unlock()
	}
}
