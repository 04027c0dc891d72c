package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and local development.
// It mirrors the Client contract, including L2-distance ordering.
type Memory struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

func NewMemory() *Memory {
	return &Memory{chunks: make(map[string]Chunk)}
}

func (m *Memory) Add(ctx context.Context, chunks []Chunk) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		id := uuid.NewString()
		ch.ID = id
		m.chunks[id] = ch
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) Get(ctx context.Context, ids []string) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		ch, ok := m.chunks[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = append(out, ch)
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, ids []string, chunks []Chunk) error {
	if len(ids) != len(chunks) {
		return ErrLengthMismatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if _, ok := m.chunks[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	for i, id := range ids {
		ch := chunks[i]
		ch.ID = id
		m.chunks[id] = ch
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.chunks, id)
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, vec []float32, k int, restrict []string) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var allowed map[string]bool
	if len(restrict) > 0 {
		allowed = make(map[string]bool, len(restrict))
		for _, id := range restrict {
			allowed[id] = true
		}
	}

	type scored struct {
		chunk Chunk
		dist  float64
	}
	var candidates []scored
	for id, ch := range m.chunks {
		if allowed != nil && !allowed[id] {
			continue
		}
		candidates = append(candidates, scored{chunk: ch, dist: l2(vec, ch.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.chunk
	}
	return out, nil
}

func l2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Dimension mismatches count as maximally distant remainder.
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return math.Sqrt(sum)
}

var _ Store = (*Memory)(nil)
