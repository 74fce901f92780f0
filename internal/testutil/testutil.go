// Package testutil provides shared test helpers for building stores,
// databases and a ready-to-use habit service.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/habitstore"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/storage"
)

// Now is the fixed instant used by TestService: 2026-01-07 10:00 UTC.
var Now = time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "habitflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a habit store backed by a temporary directory.
func TestStore(t *testing.T) (string, *habitstore.Store) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, habitstore.New(fs, habitstore.WithLogger(QuietLogger()))
}

// TestService wires a fresh store, an index and the given options into a
// service whose clock is frozen at Now.
func TestService(t *testing.T, opts ...habitservice.Option) (*habitservice.Service, *index.DB) {
	t.Helper()
	_, store := TestStore(t)
	db := TestDB(t)
	base := []habitservice.Option{
		habitservice.WithClock(ledger.FixedClock(Now)),
		habitservice.WithLogger(QuietLogger()),
		habitservice.WithMirror(db),
	}
	return habitservice.New(context.Background(), store, append(base, opts...)...), db
}
