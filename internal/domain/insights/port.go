package insights

import (
	"context"
	"time"

	"github.com/bryanwahyu/career-insight/internal/domain/profiles"
)

// Generator port, produces a fresh payload for a category
type Generator interface {
	Produce(ctx context.Context, category string) (Generation, error)
}

// Repository port (interface untuk persistence)
type Repository interface {
	// Find returns nil, nil when the category has no row.
	Find(ctx context.Context, category string) (*Report, error)
	// RunInTx commits only when fn returns nil and ctx is still live.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	ListStale(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Tx is the unit of work handed to Repository.RunInTx.
type Tx interface {
	Find(ctx context.Context, category string) (*Report, error)
	// UpsertIfAbsent inserts the payload or returns the existing row untouched.
	UpsertIfAbsent(ctx context.Context, category string, p Payload, now time.Time, refreshAfter time.Duration) (*Report, error)
	// Refresh overwrites the row only if last_updated still equals prev; otherwise it
	// returns the row written by whoever refreshed first.
	Refresh(ctx context.Context, category string, p Payload, prev, now time.Time, refreshAfter time.Duration) (*Report, error)
	AttachUserCategory(ctx context.Context, userID string, f profiles.Fields, now time.Time) (*profiles.Profile, error)
}

// ArchiveStore port (interface untuk penyimpanan raw output AI)
type ArchiveStore interface {
	PutGeneration(ctx context.Context, r *Report, raw string) (string, error)
}
