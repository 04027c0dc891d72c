package approval

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PgStore persists pending decisions in the agent_approvals table. It
// rides on the relational database handle so suspensions survive
// restarts.
type PgStore struct {
	db *sql.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, p *PendingDecision) error {
	const q = `
		INSERT INTO agent_approvals (token, user_id, tool, args, snapshot, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	args := p.Args
	if args == nil {
		args = []byte("{}")
	}
	snapshot := p.Snapshot
	if snapshot == nil {
		snapshot = []byte("[]")
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, q, p.Token, p.UserID, p.Tool, []byte(args), []byte(snapshot), string(p.Status), createdAt)
	if err != nil {
		return fmt.Errorf("create pending decision: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, token string) (*PendingDecision, error) {
	const q = `
		SELECT token, user_id, tool, args, snapshot, status, created_at, decided_at
		FROM agent_approvals
		WHERE token = $1
	`
	var (
		p         PendingDecision
		status    string
		decidedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q, token).Scan(
		&p.Token, &p.UserID, &p.Tool, (*[]byte)(&p.Args), (*[]byte)(&p.Snapshot), &status, &p.CreatedAt, &decidedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	if decidedAt.Valid {
		p.DecidedAt = decidedAt.Time
	}
	return &p, nil
}

func (s *PgStore) Decide(ctx context.Context, token string, d Decision) (*PendingDecision, error) {
	status, err := statusFor(d)
	if err != nil {
		return nil, err
	}

	// The status guard in the WHERE clause makes the transition atomic:
	// a second decide matches zero rows.
	const q = `
		UPDATE agent_approvals
		SET status = $2, decided_at = now()
		WHERE token = $1 AND status = $3
	`
	res, err := s.db.ExecContext(ctx, q, token, string(status), string(StatusPending))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := s.Get(ctx, token); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlreadyDecided
	}
	return s.Get(ctx, token)
}

var _ Store = (*PgStore)(nil)
