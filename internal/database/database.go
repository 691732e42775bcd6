package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// busyTimeout bounds how long a connection waits on SQLite's write lock
// before failing with SQLITE_BUSY. Batch workers queue on the lock during
// concurrent snapshot writes; without a timeout a stuck writer would hang
// the whole run.
const busyTimeout = 5 * time.Second

// Open opens the SQLite database with the connection pool sized to
// maxConns. The batch orchestrator runs up to maxConns portfolios
// concurrently, so the pool must hold at least that many connections or
// workers would serialize on pool acquisition instead of on SQLite's
// write lock. Pragmas go in the DSN so every pooled connection gets them.
func Open(dbPath string, maxConns int) (*sql.DB, error) {
	if maxConns <= 0 {
		maxConns = 1
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
		dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// HealthCheck performs a simple health check on the database
func HealthCheck(db *sql.DB) error {
	return db.Ping()
}
