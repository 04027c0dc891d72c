// Package approval implements the human-in-the-loop gate: a pending
// decision record keyed by a resumption token. Tool execution suspends
// until an explicit approve or reject decision arrives; the stored
// conversation snapshot lets the agent resume exactly where it paused.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound        = errors.New("pending decision not found")
	ErrAlreadyDecided  = errors.New("decision already made")
	ErrInvalidDecision = errors.New("decision must be approve or reject")
)

// PendingDecision is one suspended tool invocation awaiting a human
// decision. Snapshot holds the agent's conversation state at suspension.
type PendingDecision struct {
	Token     string          `json:"token"`
	UserID    string          `json:"user_id"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Snapshot  json.RawMessage `json:"-"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	DecidedAt time.Time       `json:"decided_at,omitempty"`
}

// Store persists pending decisions durably so suspension survives a
// process restart.
type Store interface {
	Create(ctx context.Context, p *PendingDecision) error
	Get(ctx context.Context, token string) (*PendingDecision, error)

	// Decide transitions a pending record to approved or rejected and
	// returns the updated record. Deciding twice fails with
	// ErrAlreadyDecided.
	Decide(ctx context.Context, token string, d Decision) (*PendingDecision, error)
}

func statusFor(d Decision) (Status, error) {
	switch d {
	case DecisionApprove:
		return StatusApproved, nil
	case DecisionReject:
		return StatusRejected, nil
	default:
		return "", ErrInvalidDecision
	}
}
