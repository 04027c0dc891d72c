package vectorstore

import (
	"context"
	"errors"
)

// Chunk is a unit of source text plus its embedding, stored and retrieved
// by an opaque identifier generated at add-time.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Source    string    `json:"source"`   // originating filename
	Position  int       `json:"position"` // zero-based position within the source
}

var (
	// ErrNotFound indicates one or more requested identifiers do not exist.
	ErrNotFound = errors.New("chunk not found")
	// ErrUnavailable indicates the underlying store could not be reached.
	ErrUnavailable = errors.New("vector store unavailable")
	// ErrLengthMismatch indicates ids and chunks of different lengths.
	ErrLengthMismatch = errors.New("ids and chunks length mismatch")
)

// Store abstracts the vector database. Identifiers are opaque strings
// generated by Add, exactly one per input chunk, preserving input order.
type Store interface {
	Add(ctx context.Context, chunks []Chunk) ([]string, error)
	Get(ctx context.Context, ids []string) ([]Chunk, error)
	Update(ctx context.Context, ids []string, chunks []Chunk) error
	Delete(ctx context.Context, ids []string) error

	// Search returns up to k chunks nearest to vec, most similar first.
	// A non-empty restrict set limits candidates to those identifiers.
	Search(ctx context.Context, vec []float32, k int, restrict []string) ([]Chunk, error)
}
