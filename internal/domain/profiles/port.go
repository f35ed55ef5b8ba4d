package profiles

import "context"

// Repository port for reading and creating profiles. Updates go through
// insights.Tx so they share a transaction with the report upsert.
type Repository interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Create(ctx context.Context, userID string) (*Profile, error)
}
