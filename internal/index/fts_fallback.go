//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/habitflow/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the habits table.
	return nil
}

func ftsReset(_ context.Context, _ *sql.Tx) error { return nil }

func ftsUpsert(_ context.Context, _ *sql.Tx, _ models.Habit) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, category, substr(description, 1, 200)
		FROM habits
		WHERE name LIKE ? OR description LIKE ? OR id LIKE ?
		ORDER BY position
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var cat string
		if err := rows.Scan(&r.HabitID, &r.Name, &cat, &r.Snippet); err != nil {
			return nil, err
		}
		r.Category = models.Category(cat)
		out = append(out, r)
	}
	return out, rows.Err()
}
