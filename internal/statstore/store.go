package statstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"framealign/internal/overlay"
)

var (
	// ErrLocked reports that another process holds the store file.
	ErrLocked = errors.New("stat store is locked by another process")
	// ErrMalformed reports an unparseable line in a text export.
	ErrMalformed = errors.New("malformed stat line")
)

// Store maps frame numbers to solved transforms.
type Store interface {
	// Get returns the stored transform for frame, or nil when absent.
	Get(ctx context.Context, frame int) (*overlay.Transform, error)
	// Put inserts or replaces the entry for t.Frame.
	Put(ctx context.Context, t overlay.Transform) error
	// Erase removes the entry for frame. Erasing an absent frame is not an error.
	Erase(ctx context.Context, frame int) error
	// List returns every stored transform ordered by frame.
	List(ctx context.Context) ([]overlay.Transform, error)
}

// Frames returns the stored frame numbers in ascending order.
func Frames(ctx context.Context, s Store) ([]int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(items))
	for i, t := range items {
		out[i] = t.Frame
	}
	return out, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[int]overlay.Transform
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[int]overlay.Transform)}
}

func (m *Memory) Get(_ context.Context, frame int) (*overlay.Transform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.entries[frame]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) Put(_ context.Context, t overlay.Transform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[t.Frame] = t
	return nil
}

func (m *Memory) Erase(_ context.Context, frame int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, frame)
	return nil
}

func (m *Memory) List(_ context.Context) ([]overlay.Transform, error) {
	m.mu.RLock()
	out := make([]overlay.Transform, 0, len(m.entries))
	for _, t := range m.entries {
		out = append(out, t)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out, nil
}
