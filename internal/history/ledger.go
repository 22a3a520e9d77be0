package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for call history.
//
// It MUST be append-only: no Update/Delete methods are provided.
// List returns entries newest-first, and an Append must be visible to a List
// issued after it returns (read-after-write within the process).
type Repository interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

var ErrInvalidEntry = errors.New("history: invalid entry")

// Ledger accepts terminal-state write requests from the call session state
// machine and exposes a read-only, newest-first view for call-log screens.
type Ledger struct {
	repo  Repository
	clock func() time.Time
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, clock: time.Now}
}

func (l *Ledger) Append(ctx context.Context, e Entry) error {
	if l.repo == nil {
		return errors.New("history: repository not configured")
	}
	if e.PeerID == "" {
		return ErrInvalidEntry
	}
	if !e.Status.Valid() {
		return ErrInvalidEntry
	}
	if e.Status != StatusAnswered && e.DurationSeconds != 0 {
		return ErrInvalidEntry
	}
	if e.DurationSeconds < 0 {
		return ErrInvalidEntry
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock().UTC()
	}
	return l.repo.Append(ctx, e)
}

// List returns the call log, newest first.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	if l.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	return l.repo.List(ctx)
}
