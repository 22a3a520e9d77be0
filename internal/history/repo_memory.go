package history

import (
	"context"
	"sync"
)

// MemoryRepo is the default in-process call history store.
//
// Entries are prepended so List is naturally newest-first without sorting.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]Entry{e}, r.entries...)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}
