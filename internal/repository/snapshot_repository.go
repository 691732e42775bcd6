package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// SnapshotRepository provides data access methods for the portfolio_snapshot
// table. Snapshot rows are append-only: they are created once per
// (portfolio, date) and never updated. Recomputing a date goes through
// DeleteForDate followed by Create, inside one transaction.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new repository instance.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = `
	id, portfolio_id, date, equity_balance, daily_pnl, cumulative_pnl,
	daily_return, long_value, short_value, is_partial, created_at
`

// Create inserts a new snapshot row. Returns apperrors.ErrDuplicateSnapshot
// if a snapshot already exists for the same portfolio and date.
func (r *SnapshotRepository) Create(ctx context.Context, s model.PortfolioSnapshot) error {
	return r.create(ctx, r.db, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SnapshotRepository) create(ctx context.Context, db execer, s model.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio_snapshot (id, portfolio_id, date, equity_balance,
			daily_pnl, cumulative_pnl, daily_return, long_value, short_value,
			is_partial, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		s.ID, s.PortfolioID, s.Date.Format(DateFormat),
		s.EquityBalance.String(), s.DailyPnL.String(), s.CumulativePnL.String(),
		s.DailyReturn.String(), s.LongValue.String(), s.ShortValue.String(),
		s.IsPartial, s.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: portfolio %s date %s",
				apperrors.ErrDuplicateSnapshot, s.PortfolioID, s.Date.Format(DateFormat))
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// Replace deletes any existing snapshot for the same portfolio and date and
// inserts the given one, inside a single transaction. This is the only
// supported way to recompute an already-snapshotted date: delete-then-create,
// never patch in place, so a partially-updated ledger row cannot exist.
func (r *SnapshotRepository) Replace(ctx context.Context, s model.PortfolioSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	deleteQuery := `DELETE FROM portfolio_snapshot WHERE portfolio_id = ? AND date = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, s.PortfolioID, s.Date.Format(DateFormat)); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	if err := r.create(ctx, tx, s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByDate retrieves the snapshot for an exact (portfolio, date) pair.
// Returns apperrors.ErrSnapshotNotFound if none exists.
func (r *SnapshotRepository) GetByDate(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE portfolio_id = ? AND date = ?
	`

	row := r.db.QueryRowContext(ctx, query, portfolioID, date.Format(DateFormat))
	s, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PortfolioSnapshot{}, apperrors.ErrSnapshotNotFound
	}
	return s, err
}

// LatestBefore retrieves the most recent snapshot with a date strictly before
// the given date. Returns apperrors.ErrSnapshotNotFound if the portfolio has
// no snapshot history before that date.
func (r *SnapshotRepository) LatestBefore(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE portfolio_id = ? AND date < ?
		ORDER BY date DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, portfolioID, date.Format(DateFormat))
	s, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PortfolioSnapshot{}, apperrors.ErrSnapshotNotFound
	}
	return s, err
}

// Latest retrieves the portfolio's most recent snapshot.
// Returns apperrors.ErrSnapshotNotFound if the portfolio has none.
func (r *SnapshotRepository) Latest(ctx context.Context, portfolioID string) (model.PortfolioSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE portfolio_id = ?
		ORDER BY date DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, portfolioID)
	s, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PortfolioSnapshot{}, apperrors.ErrSnapshotNotFound
	}
	return s, err
}

// First retrieves the portfolio's earliest snapshot, whose equity balance
// anchors cumulative P&L for the portfolio's entire history.
// Returns apperrors.ErrSnapshotNotFound if the portfolio has none.
func (r *SnapshotRepository) First(ctx context.Context, portfolioID string) (model.PortfolioSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE portfolio_id = ?
		ORDER BY date ASC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, portfolioID)
	s, err := scanSnapshot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PortfolioSnapshot{}, apperrors.ErrSnapshotNotFound
	}
	return s, err
}

// Exists reports whether a snapshot exists for the exact (portfolio, date).
func (r *SnapshotRepository) Exists(ctx context.Context, portfolioID string, date time.Time) (bool, error) {
	query := `SELECT 1 FROM portfolio_snapshot WHERE portfolio_id = ? AND date = ?`

	var one int
	err := r.db.QueryRowContext(ctx, query, portfolioID, date.Format(DateFormat)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query snapshot existence: %w", err)
	}
	return true, nil
}

// GetRange streams snapshots for a portfolio between startDate and endDate
// (inclusive), ordered by date ascending. The callback pattern lets the
// caller process rows one at a time without loading large ranges into memory.
func (r *SnapshotRepository) GetRange(
	ctx context.Context,
	portfolioID string,
	startDate, endDate time.Time,
	callback func(s model.PortfolioSnapshot) error,
) error {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshot
		WHERE portfolio_id = ?
		AND date >= ?
		AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query,
		portfolioID, startDate.Format(DateFormat), endDate.Format(DateFormat))
	if err != nil {
		return fmt.Errorf("failed to query portfolio_snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSnapshot(rows.Scan)
		if err != nil {
			return err
		}
		if err := callback(s); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	return nil
}

// scanSnapshot scans one snapshot row using the snapshotColumns order.
func scanSnapshot(scan func(dest ...any) error) (model.PortfolioSnapshot, error) {
	var s model.PortfolioSnapshot
	var dateStr, equity, dailyPnL, cumulativePnL, dailyReturn, longValue, shortValue, createdAt string

	err := scan(
		&s.ID, &s.PortfolioID, &dateStr, &equity, &dailyPnL, &cumulativePnL,
		&dailyReturn, &longValue, &shortValue, &s.IsPartial, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PortfolioSnapshot{}, err
		}
		return model.PortfolioSnapshot{}, fmt.Errorf("failed to scan row: %w", err)
	}

	if s.Date, err = ParseTime(dateStr); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.EquityBalance, err = ParseDecimal(equity); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.DailyPnL, err = ParseDecimal(dailyPnL); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.CumulativePnL, err = ParseDecimal(cumulativePnL); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.DailyReturn, err = ParseDecimal(dailyReturn); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.LongValue, err = ParseDecimal(longValue); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.ShortValue, err = ParseDecimal(shortValue); err != nil {
		return model.PortfolioSnapshot{}, err
	}
	if s.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return s, nil
}
