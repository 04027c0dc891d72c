package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChunks(t *testing.T, m *Memory, chunks []Chunk) []string {
	t.Helper()
	ids, err := m.Add(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, ids, len(chunks))
	return ids
}

func TestMemoryAddAssignsUniqueIDs(t *testing.T) {
	m := NewMemory()
	ids := seedChunks(t, m, []Chunk{
		{Text: "a", Embedding: []float32{0, 0}},
		{Text: "b", Embedding: []float32{1, 0}},
		{Text: "c", Embedding: []float32{0, 1}},
	})

	seen := map[string]bool{}
	for _, id := range ids {
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate chunk id %s", id)
		seen[id] = true
	}
}

func TestMemoryGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ids := seedChunks(t, m, []Chunk{
		{Text: "first", Embedding: []float32{0, 0}, Source: "doc.pdf", Position: 0},
		{Text: "second", Embedding: []float32{1, 1}, Source: "doc.pdf", Position: 1},
	})

	// Requested order, not insertion order.
	got, err := m.Get(context.Background(), []string{ids[1], ids[0]})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Text)
	assert.Equal(t, "first", got[1].Text)
	assert.Equal(t, 1, got[0].Position)
}

func TestMemoryGetUnknownID(t *testing.T) {
	m := NewMemory()
	seedChunks(t, m, []Chunk{{Text: "a", Embedding: []float32{0}}})

	_, err := m.Get(context.Background(), []string{"no-such-id"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdate(t *testing.T) {
	m := NewMemory()
	ids := seedChunks(t, m, []Chunk{{Text: "old", Embedding: []float32{0, 0}}})

	err := m.Update(context.Background(), ids, []Chunk{{Text: "new", Embedding: []float32{9, 9}}})
	require.NoError(t, err)

	got, err := m.Get(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].Text)
	assert.Equal(t, ids[0], got[0].ID)
}

func TestMemoryUpdateLengthMismatch(t *testing.T) {
	m := NewMemory()
	ids := seedChunks(t, m, []Chunk{{Text: "a", Embedding: []float32{0}}})

	err := m.Update(context.Background(), ids, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ids := seedChunks(t, m, []Chunk{
		{Text: "a", Embedding: []float32{0}},
		{Text: "b", Embedding: []float32{1}},
	})

	require.NoError(t, m.Delete(context.Background(), ids[:1]))

	_, err := m.Get(context.Background(), ids[:1])
	assert.ErrorIs(t, err, ErrNotFound)

	// The untouched chunk is still there.
	got, err := m.Get(context.Background(), ids[1:])
	require.NoError(t, err)
	assert.Equal(t, "b", got[0].Text)
}

func TestMemorySearchOrdersByDistance(t *testing.T) {
	m := NewMemory()
	seedChunks(t, m, []Chunk{
		{Text: "far", Embedding: []float32{10, 10}},
		{Text: "near", Embedding: []float32{1, 0}},
		{Text: "nearest", Embedding: []float32{0, 0}},
	})

	got, err := m.Search(context.Background(), []float32{0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "nearest", got[0].Text)
	assert.Equal(t, "near", got[1].Text)
}

func TestMemorySearchRestrict(t *testing.T) {
	m := NewMemory()
	ids := seedChunks(t, m, []Chunk{
		{Text: "mine", Embedding: []float32{5, 5}},
		{Text: "foreign", Embedding: []float32{0, 0}},
	})

	// The foreign chunk is closer but outside the restriction set.
	got, err := m.Search(context.Background(), []float32{0, 0}, 5, ids[:1])
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mine", got[0].Text)
}
