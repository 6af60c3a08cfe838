package history

import (
	"context"
	"time"
)

// Store owns the persisted history table, its rollback copy and the update
// log. Only a single writer is expected.
type Store interface {
	// Load reads the whole history table, a store that was never committed to
	// has an empty history.
	Load(ctx context.Context) ([]CountRecord, error)
	// LoadPrevious reads the rollback copy written by the last Commit.
	LoadPrevious(ctx context.Context) ([]CountRecord, error)
	// Commit writes `previous` to the rollback copy and only then overwrites
	// the history table with `merged`. If writing the rollback copy fails the
	// history table is left untouched.
	Commit(ctx context.Context, previous, merged []CountRecord) error

	// LastUpdate returns the newest timestamp of the update log, or an empty
	// string if nothing was logged yet.
	LastUpdate(ctx context.Context) (string, error)
	// RecordUpdate adds a timestamp to the top of the update log.
	RecordUpdate(ctx context.Context, at time.Time) error
}
