package database_test

import (
	"path/filepath"
	"testing"

	"github.com/quantfolio/portfolio-ledger/internal/database"
)

// TestOpen tests database opening and connection pool configuration.
//
// WHY: The batch orchestrator runs portfolios concurrently up to its worker
// limit, and each worker needs a connection. If the pool is smaller than the
// worker limit, workers stall on pool acquisition; if the busy timeout is
// missing, a held write lock surfaces as an immediate SQLITE_BUSY instead of
// a bounded wait.
func TestOpen(t *testing.T) {
	t.Run("sizes pool to the worker budget", func(t *testing.T) {
		db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), 4)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 4 {
			t.Errorf("Expected pool of 4 connections, got %d", got)
		}
	})

	t.Run("clamps non-positive budget to one connection", func(t *testing.T) {
		db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), 0)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("Expected pool clamped to 1 connection, got %d", got)
		}
	})

	t.Run("applies pragmas on every connection", func(t *testing.T) {
		db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), 2)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close()

		var foreignKeys int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
			t.Fatalf("Failed to read foreign_keys pragma: %v", err)
		}
		if foreignKeys != 1 {
			t.Errorf("Expected foreign_keys enabled, got %d", foreignKeys)
		}

		var timeoutMillis int
		if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeoutMillis); err != nil {
			t.Fatalf("Failed to read busy_timeout pragma: %v", err)
		}
		if timeoutMillis != 5000 {
			t.Errorf("Expected busy_timeout of 5000ms, got %d", timeoutMillis)
		}
	})
}
