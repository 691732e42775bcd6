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

// PriceRepository provides data access methods for the price table.
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository creates a new repository instance.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// GetOnOrBefore retrieves the most recent price for a symbol at or before the
// given date. Returns apperrors.ErrPriceNotFound if the symbol has no price
// history up to that date.
func (r *PriceRepository) GetOnOrBefore(ctx context.Context, symbol string, date time.Time) (model.Price, error) {
	query := `
		SELECT symbol, date, close
		FROM price
		WHERE symbol = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`

	var p model.Price
	var dateStr, closeStr string

	err := r.db.QueryRowContext(ctx, query, symbol, date.Format(DateFormat)).
		Scan(&p.Symbol, &dateStr, &closeStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Price{}, fmt.Errorf("%w: %s as of %s",
			apperrors.ErrPriceNotFound, symbol, date.Format(DateFormat))
	}
	if err != nil {
		return model.Price{}, fmt.Errorf("failed to query price: %w", err)
	}

	if p.Date, err = ParseTime(dateStr); err != nil {
		return model.Price{}, err
	}
	if p.Close, err = ParseDecimal(closeStr); err != nil {
		return model.Price{}, err
	}

	return p, nil
}

// GetBulkOnOrBefore resolves the most recent price at or before the given
// date for every symbol, in a single query. Symbols with no price history are
// simply absent from the returned map; callers decide how to treat gaps.
//
// A minutes-scale batch must not issue one round trip per symbol per date, so
// this is the lookup the P&L and valuation phases use.
func (r *PriceRepository) GetBulkOnOrBefore(ctx context.Context, symbols []string, date time.Time) (map[string]model.Price, error) {
	if len(symbols) == 0 {
		return map[string]model.Price{}, nil
	}

	placeholders := make([]string, len(symbols))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	// Latest row per symbol via a correlated subquery on the (symbol, date) PK.
	query := `
		SELECT p.symbol, p.date, p.close
		FROM price p
		WHERE p.symbol IN (` + strings.Join(placeholders, ",") + `)
		AND p.date = (
			SELECT MAX(p2.date) FROM price p2
			WHERE p2.symbol = p.symbol AND p2.date <= ?
		)
	`

	args := make([]any, 0, len(symbols)+1)
	for _, s := range symbols {
		args = append(args, s)
	}
	args = append(args, date.Format(DateFormat))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]model.Price, len(symbols))
	for rows.Next() {
		var p model.Price
		var dateStr, closeStr string

		if err := rows.Scan(&p.Symbol, &dateStr, &closeStr); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if p.Date, err = ParseTime(dateStr); err != nil {
			return nil, err
		}
		if p.Close, err = ParseDecimal(closeStr); err != nil {
			return nil, err
		}

		prices[p.Symbol] = p
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return prices, nil
}

// Exists reports whether a price row exists for the exact (symbol, date).
func (r *PriceRepository) Exists(ctx context.Context, symbol string, date time.Time) (bool, error) {
	query := `SELECT 1 FROM price WHERE symbol = ? AND date = ?`

	var one int
	err := r.db.QueryRowContext(ctx, query, symbol, date.Format(DateFormat)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query price existence: %w", err)
	}
	return true, nil
}

// Upsert inserts or replaces the closing price for a (symbol, date).
func (r *PriceRepository) Upsert(ctx context.Context, p model.Price) error {
	query := `
		INSERT INTO price (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close
	`

	_, err := r.db.ExecContext(ctx, query,
		p.Symbol, p.Date.Format(DateFormat), p.Close.String())
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}

	return nil
}
