package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Client is the pgvector-backed Store. It holds its own connection handle:
// the vector database is a separate external resource even when it shares
// a Postgres instance with the relational store.
type Client struct {
	db *sql.DB
}

const bootstrapSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vs_chunks (
    id         UUID PRIMARY KEY,
    content    TEXT NOT NULL,
    embedding  VECTOR,
    source     TEXT NOT NULL DEFAULT '',
    position   INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func NewClient(ctx context.Context, databaseURL string) (*Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("vector database URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := db.ExecContext(pingCtx, bootstrapSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap vector store: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Add inserts chunks in one transaction and returns one freshly generated
// identifier per chunk, in input order.
func (c *Client) Add(ctx context.Context, chunks []Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	const q = `
		INSERT INTO vs_chunks (id, content, embedding, source, position)
		VALUES ($1, $2, $3, $4, $5)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(chunks))
	for i := range chunks {
		ch := &chunks[i]
		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			id, ch.Text, pgvector.NewVector(ch.Embedding), ch.Source, ch.Position,
		); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

func (c *Client) Get(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`
		SELECT id, content, embedding, source, position
		FROM vs_chunks
		WHERE id IN (%s)
	`, placeholders(1, len(ids)))

	rows, err := c.db.QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]Chunk, len(ids))
	for rows.Next() {
		var (
			ch  Chunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.Text, &emb, &ch.Source, &ch.Position); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		byID[ch.ID] = ch
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		ch, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = append(out, ch)
	}
	return out, nil
}

// Update replaces the stored chunks for the given identifiers. Chunks are
// never mutated in place by callers; a replacement carries full content.
func (c *Client) Update(ctx context.Context, ids []string, chunks []Chunk) error {
	if len(ids) != len(chunks) {
		return ErrLengthMismatch
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	const q = `
		UPDATE vs_chunks
		SET content = $2, embedding = $3, source = $4, position = $5
		WHERE id = $1
	`
	for i, id := range ids {
		ch := &chunks[i]
		res, err := tx.ExecContext(ctx, q, id, ch.Text, pgvector.NewVector(ch.Embedding), ch.Source, ch.Position)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return tx.Commit()
}

func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := fmt.Sprintf(`DELETE FROM vs_chunks WHERE id IN (%s)`, placeholders(1, len(ids)))
	if _, err := c.db.ExecContext(ctx, q, idArgs(ids)...); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Search finds the k nearest chunks to vec by L2 distance, optionally
// restricted to a set of identifiers.
func (c *Client) Search(ctx context.Context, vec []float32, k int, restrict []string) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	var (
		q    string
		args []interface{}
	)
	if len(restrict) > 0 {
		q = fmt.Sprintf(`
			SELECT id, content, embedding, source, position
			FROM vs_chunks
			WHERE id IN (%s)
			ORDER BY embedding <-> $1
			LIMIT $2
		`, placeholders(3, len(restrict)))
		args = append([]interface{}{pgvector.NewVector(vec), k}, idArgs(restrict)...)
	} else {
		q = `
			SELECT id, content, embedding, source, position
			FROM vs_chunks
			ORDER BY embedding <-> $1
			LIMIT $2
		`
		args = []interface{}{pgvector.NewVector(vec), k}
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			ch  Chunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.Text, &emb, &ch.Source, &ch.Position); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// placeholders renders "$n, $n+1, ..." for building IN clauses.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func idArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

var _ Store = (*Client)(nil)
