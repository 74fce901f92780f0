package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/habitflow/internal/models"
)

// DayHistory is one day of completions, ids in the order they were checked.
type DayHistory struct {
	Date      string   `json:"date"`
	Completed int      `json:"completed"`
	HabitIDs  []string `json:"habitIds"`
}

// HabitTotal counts the days a habit was completed within a range.
type HabitTotal struct {
	HabitID  string          `json:"habitId"`
	Name     string          `json:"name"`
	Category models.Category `json:"category"`
	Days     int             `json:"days"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	HabitID  string          `json:"habitId"`
	Name     string          `json:"name"`
	Category models.Category `json:"category"`
	Snippet  string          `json:"snippet"`
}

// SyncState replaces the mirror with state. When sum is non-empty and
// matches the checksum of the last sync, nothing is written.
func (db *DB) SyncState(ctx context.Context, state models.HabitState, sum string) error {
	if sum != "" {
		prev, err := db.SyncedChecksum(ctx)
		if err != nil {
			return err
		}
		if prev == sum {
			return nil
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM completions`); err != nil {
		return fmt.Errorf("index: clear completions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM habits`); err != nil {
		return fmt.Errorf("index: clear habits: %w", err)
	}
	if err := ftsReset(ctx, tx); err != nil {
		return err
	}

	hstmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO habits (id, name, description, icon, category, is_default, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare habit insert: %w", err)
	}
	defer hstmt.Close()
	for i, h := range state.Habits {
		if _, err := hstmt.ExecContext(ctx, h.ID, h.Name, h.Description, h.Icon, string(h.Category), h.IsDefault, i); err != nil {
			return fmt.Errorf("index: insert habit %s: %w", h.ID, err)
		}
		if err := ftsUpsert(ctx, tx, h); err != nil {
			return err
		}
	}

	cstmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO completions (date, habit_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare completion insert: %w", err)
	}
	defer cstmt.Close()
	for _, l := range state.Logs {
		for i, id := range l.CompletedHabits {
			if _, err := cstmt.ExecContext(ctx, l.Date, id, i); err != nil {
				return fmt.Errorf("index: insert completion: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_meta (id, checksum, synced_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET checksum = excluded.checksum, synced_at = excluded.synced_at
	`, sum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: record sync: %w", err)
	}

	return tx.Commit()
}

// SyncedChecksum returns the checksum recorded by the last SyncState, or
// an empty string if the mirror was never synced.
func (db *DB) SyncedChecksum(ctx context.Context) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM sync_meta WHERE id = 1`).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: synced checksum: %w", err)
	}
	return cs, nil
}

// History returns the days in [from, to] that have at least one
// completion, oldest first. Dates are YYYY-MM-DD; an empty bound is open.
func (db *DB) History(ctx context.Context, from, to string) ([]DayHistory, error) {
	from, to = openBounds(from, to)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT date, habit_id
		FROM completions
		WHERE date >= ? AND date <= ?
		ORDER BY date, position
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("index: history: %w", err)
	}
	defer rows.Close()

	var out []DayHistory
	for rows.Next() {
		var date, id string
		if err := rows.Scan(&date, &id); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].Date != date {
			out = append(out, DayHistory{Date: date})
		}
		last := &out[len(out)-1]
		last.HabitIDs = append(last.HabitIDs, id)
		last.Completed++
	}
	return out, rows.Err()
}

// HabitTotals counts completion days per catalog habit within [from, to],
// most completed first. Habits never completed are included with zero.
func (db *DB) HabitTotals(ctx context.Context, from, to string) ([]HabitTotal, error) {
	from, to = openBounds(from, to)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT h.id, h.name, h.category, count(c.habit_id) AS days
		FROM habits h
		LEFT JOIN completions c ON c.habit_id = h.id AND c.date >= ? AND c.date <= ?
		GROUP BY h.id
		ORDER BY days DESC, h.position
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("index: habit totals: %w", err)
	}
	defer rows.Close()

	var out []HabitTotal
	for rows.Next() {
		var t HabitTotal
		var cat string
		if err := rows.Scan(&t.HabitID, &t.Name, &cat, &t.Days); err != nil {
			return nil, err
		}
		t.Category = models.Category(cat)
		out = append(out, t)
	}
	return out, rows.Err()
}

func openBounds(from, to string) (string, string) {
	if from == "" {
		from = "0000-00-00"
	}
	if to == "" {
		to = "9999-99-99"
	}
	return from, to
}
