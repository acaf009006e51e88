// Package dedup remembers which events already produced a submission so that
// overlapping windows never act twice.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/storage"
)

// ErrAlreadyRecorded is returned by Record when the event already has a
// pending or confirmed submission.
var ErrAlreadyRecorded = storage.ErrAlreadyRecorded

// Guard is consulted before any signing work and written after submit.
type Guard interface {
	AlreadyHandled(ctx context.Context, id bridge.EventID) (bool, error)
	Record(ctx context.Context, rec bridge.SubmissionRecord) error
}

// SQLGuard persists submissions in the warden database.
type SQLGuard struct {
	store *storage.Store
}

var _ Guard = (*SQLGuard)(nil)

// NewSQLGuard returns a guard over store.
func NewSQLGuard(store *storage.Store) *SQLGuard {
	return &SQLGuard{store: store}
}

func (g *SQLGuard) AlreadyHandled(ctx context.Context, id bridge.EventID) (bool, error) {
	rec, ok, err := g.store.GetSubmission(ctx, id)
	if err != nil {
		return false, err
	}
	return ok && rec.Status.Handled(), nil
}

func (g *SQLGuard) Record(ctx context.Context, rec bridge.SubmissionRecord) error {
	return g.store.InsertSubmission(ctx, rec)
}

// MemoryGuard keeps submissions in process memory only.
//
// Not for production: a restart forgets every submission and the next pass
// will relay the same window again.
type MemoryGuard struct {
	mu      sync.Mutex
	records map[bridge.EventID]bridge.SubmissionRecord
}

var _ Guard = (*MemoryGuard)(nil)

// NewMemoryGuard returns an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{records: map[bridge.EventID]bridge.SubmissionRecord{}}
}

func (g *MemoryGuard) AlreadyHandled(_ context.Context, id bridge.EventID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[id]
	return ok && rec.Status.Handled(), nil
}

func (g *MemoryGuard) Record(_ context.Context, rec bridge.SubmissionRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.records[rec.Key]; ok && cur.Status.Handled() {
		return fmt.Errorf("%s: %w", rec.Key, ErrAlreadyRecorded)
	}
	if rec.Status == "" {
		rec.Status = bridge.StatusPending
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	g.records[rec.Key] = rec
	return nil
}

// IsAlreadyRecorded reports whether err came from a duplicate Record.
func IsAlreadyRecorded(err error) bool {
	return errors.Is(err, ErrAlreadyRecorded)
}
