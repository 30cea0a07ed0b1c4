package resolver

import (
	"context"
	"sync"
)

// Entry is one indexed display name.
type Entry struct {
	Name   string
	ID     string
	Vector []float32
}

// Hit is the nearest entry to a query and its cosine similarity.
type Hit struct {
	Name       string
	ID         string
	Similarity float64
}

// Index is a k=1 vector index over display names.
type Index interface {
	// Reset drops all entries and prepares for vectors of dims dimensions.
	Reset(ctx context.Context, dims int) error
	Add(ctx context.Context, entries []Entry) error
	// Nearest returns false when the index is empty.
	Nearest(ctx context.Context, vector []float32) (Hit, bool, error)
	Len() int
}

// MemoryIndex is a brute-force cosine index. Ties resolve to the earliest entry.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Reset(_ context.Context, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

func (m *MemoryIndex) Add(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MemoryIndex) Nearest(_ context.Context, vector []float32) (Hit, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := -1
	bestSim := 0.0
	for i, e := range m.entries {
		sim, err := CosineSimilarity(vector, e.Vector)
		if err != nil {
			return Hit{}, false, err
		}
		if best == -1 || sim > bestSim {
			best, bestSim = i, sim
		}
	}
	if best == -1 {
		return Hit{}, false, nil
	}
	e := m.entries[best]
	return Hit{Name: e.Name, ID: e.ID, Similarity: bestSim}, true, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
