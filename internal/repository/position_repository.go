package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// PositionRepository provides data access methods for the position table.
//
// The cached valuation fields (last_price, market_value, unrealized_pnl,
// price_as_of) are owned by the daily valuation pass and are only ever
// written through Revalue, which updates them together in one statement.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository creates a new repository instance.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

const positionColumns = `
	id, portfolio_id, symbol, quantity, entry_price, entry_date, multiplier,
	sector, last_price, market_value, unrealized_pnl, price_as_of, exit_date,
	is_deleted
`

// GetByID retrieves a single position by its ID.
// Returns apperrors.ErrPositionNotFound if no position exists with the given ID.
func (r *PositionRepository) GetByID(ctx context.Context, id string) (model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM position WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanPosition(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Position{}, apperrors.ErrPositionNotFound
	}
	return p, err
}

// ListOpenAsOf retrieves every position in the portfolio that is open as of
// the given date: entered on or before it, not exit-dated before it, and not
// soft-deleted. Results are ordered by symbol for deterministic processing.
func (r *PositionRepository) ListOpenAsOf(ctx context.Context, portfolioID string, date time.Time) ([]model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position
		WHERE portfolio_id = ?
		AND is_deleted = FALSE
		AND entry_date <= ?
		AND (exit_date IS NULL OR exit_date >= ?)
		ORDER BY symbol ASC, id ASC
	`

	day := date.Format(DateFormat)
	rows, err := r.db.QueryContext(ctx, query, portfolioID, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return positions, nil
}

// ListByPortfolio retrieves all non-deleted positions for a portfolio,
// including closed ones.
func (r *PositionRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]model.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM position
		WHERE portfolio_id = ? AND is_deleted = FALSE
		ORDER BY symbol ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return positions, nil
}

// OpenSymbols returns the distinct symbols referenced by open positions
// across all active portfolios as of the given date.
func (r *PositionRepository) OpenSymbols(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT p.symbol
		FROM position p
		JOIN portfolio pf ON pf.id = p.portfolio_id
		WHERE pf.is_archived = FALSE
		AND p.is_deleted = FALSE
		AND p.entry_date <= ?
		AND (p.exit_date IS NULL OR p.exit_date >= ?)
		ORDER BY p.symbol ASC
	`

	day := date.Format(DateFormat)
	rows, err := r.db.QueryContext(ctx, query, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query open symbols: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return symbols, nil
}

// Create inserts a new position.
func (r *PositionRepository) Create(ctx context.Context, p model.Position) error {
	query := `
		INSERT INTO position (id, portfolio_id, symbol, quantity, entry_price,
			entry_date, multiplier, sector, exit_date, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var exitDate any
	if p.ExitDate != nil {
		exitDate = p.ExitDate.Format(DateFormat)
	}

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.PortfolioID, p.Symbol, p.Quantity.String(), p.EntryPrice.String(),
		p.EntryDate.Format(DateFormat), p.Multiplier, p.Sector, exitDate, p.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}

	return nil
}

// Revalue writes the cached valuation fields for a position. Last price,
// market value and unrealized P&L are set together in a single statement so
// the entity invariant (market_value and unrealized_pnl mutually consistent)
// cannot be violated by a partial update. There are no independent setters.
func (r *PositionRepository) Revalue(ctx context.Context, id string, lastPrice, marketValue, unrealizedPnL decimal.Decimal, priceAsOf time.Time) error {
	query := `
		UPDATE position
		SET last_price = ?, market_value = ?, unrealized_pnl = ?, price_as_of = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		lastPrice.String(), marketValue.String(), unrealizedPnL.String(),
		priceAsOf.Format(DateFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to revalue position: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrPositionNotFound
	}

	return nil
}

// SetSector updates the cosmetic sector tag on a position.
func (r *PositionRepository) SetSector(ctx context.Context, id, sector string) error {
	query := `UPDATE position SET sector = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, sector, id); err != nil {
		return fmt.Errorf("failed to set position sector: %w", err)
	}

	return nil
}

// scanPosition scans one position row using the positionColumns order.
func scanPosition(scan func(dest ...any) error) (model.Position, error) {
	var p model.Position
	var quantity, entryPrice, entryDate string
	var sector, lastPrice, marketValue, unrealizedPnL, priceAsOf, exitDate sql.NullString

	err := scan(
		&p.ID, &p.PortfolioID, &p.Symbol, &quantity, &entryPrice, &entryDate,
		&p.Multiplier, &sector, &lastPrice, &marketValue, &unrealizedPnL,
		&priceAsOf, &exitDate, &p.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Position{}, err
		}
		return model.Position{}, fmt.Errorf("failed to scan row: %w", err)
	}

	if p.Quantity, err = ParseDecimal(quantity); err != nil {
		return model.Position{}, err
	}
	if p.EntryPrice, err = ParseDecimal(entryPrice); err != nil {
		return model.Position{}, err
	}
	if p.EntryDate, err = ParseTime(entryDate); err != nil {
		return model.Position{}, err
	}
	p.Sector = sector.String
	if p.LastPrice, err = parseNullDecimal(lastPrice); err != nil {
		return model.Position{}, err
	}
	if p.MarketValue, err = parseNullDecimal(marketValue); err != nil {
		return model.Position{}, err
	}
	if p.UnrealizedPnL, err = parseNullDecimal(unrealizedPnL); err != nil {
		return model.Position{}, err
	}
	if p.PriceAsOf, err = parseNullDate(priceAsOf); err != nil {
		return model.Position{}, err
	}
	if p.ExitDate, err = parseNullDate(exitDate); err != nil {
		return model.Position{}, err
	}

	return p, nil
}
