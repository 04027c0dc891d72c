package approval

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development.
// Pending approvals held here do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]*PendingDecision
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]*PendingDecision)}
}

func (s *MemoryStore) Create(ctx context.Context, p *PendingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.pending[cp.Token] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*PendingDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Decide(ctx context.Context, token string, d Decision) (*PendingDecision, error) {
	status, err := statusFor(d)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != StatusPending {
		return nil, ErrAlreadyDecided
	}
	p.Status = status
	p.DecidedAt = time.Now()
	cp := *p
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
