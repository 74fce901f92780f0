//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/habitflow/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS habits_fts USING fts5(
			id UNINDEXED,
			name,
			description,
			category UNINDEXED,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReset(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM habits_fts`); err != nil {
		return fmt.Errorf("index: reset fts: %w", err)
	}
	return nil
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, h models.Habit) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO habits_fts (id, name, description, category) VALUES (?, ?, ?, ?)`,
		h.ID, h.Name, h.Description, string(h.Category))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over habit names and
// descriptions and returns matches with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id,
		       name,
		       category,
		       snippet(habits_fts, 2, '<b>', '</b>', '...', 16)
		FROM habits_fts
		WHERE habits_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
