package overlay

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
)

// BestSet keeps the lowest-Diff transforms seen by concurrent evaluators,
// bounded to a fixed capacity and deduplicated by geometry.
//
// Admits is lock free: it reads the current worst kept Diff from an atomic so
// workers can drop hopeless candidates early. A candidate that ties the
// threshold is still admitted and resolved under the lock by Compare, which
// keeps the final contents independent of scheduling.
type BestSet struct {
	capacity  int
	threshold atomic.Uint64 // float64 bits

	mu    sync.Mutex
	items []Transform
}

// NewBestSet returns an empty set holding at most capacity entries.
func NewBestSet(capacity int) *BestSet {
	if capacity < 1 {
		capacity = 1
	}
	s := &BestSet{capacity: capacity, items: make([]Transform, 0, capacity+1)}
	s.threshold.Store(math.Float64bits(math.Inf(1)))
	return s
}

// Threshold returns the Diff a candidate must not exceed to be admitted.
func (s *BestSet) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// Admits reports whether a candidate with the given diff could enter the set.
func (s *BestSet) Admits(diff float64) bool {
	return diff <= s.Threshold()
}

// Insert adds t when it ranks among the best entries. An entry with the same
// geometry is replaced only by a better-ranked one.
func (s *BestSet) Insert(t Transform) bool {
	if !s.Admits(t.Diff) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := t.Key()
	for i, cur := range s.items {
		if cur.Key() != key {
			continue
		}
		if !Less(t, cur) {
			return false
		}
		s.items = slices.Delete(s.items, i, i+1)
		break
	}
	pos, _ := slices.BinarySearchFunc(s.items, t, Compare)
	if pos >= s.capacity {
		return false
	}
	s.items = slices.Insert(s.items, pos, t)
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	if len(s.items) == s.capacity {
		s.threshold.Store(math.Float64bits(s.items[len(s.items)-1].Diff))
	}
	return true
}

// Min returns the best entry, or false when the set is empty.
func (s *BestSet) Min() (Transform, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return Transform{}, false
	}
	return s.items[0], true
}

// Items returns the kept entries, best first.
func (s *BestSet) Items() []Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}
