package index

import (
	"context"

	"github.com/starford/habitflow/internal/models"
)

// HabitIndex is what the rest of the app needs from the SQLite mirror.
type HabitIndex interface {
	SyncState(ctx context.Context, state models.HabitState, sum string) error
	SyncedChecksum(ctx context.Context) (string, error)
	History(ctx context.Context, from, to string) ([]DayHistory, error)
	HabitTotals(ctx context.Context, from, to string) ([]HabitTotal, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Close() error
}

var _ HabitIndex = (*DB)(nil)
