package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// CompanyRepository provides data access methods for the company,
// symbol_registry and fundamentals tables.
type CompanyRepository struct {
	db *sql.DB
}

// NewCompanyRepository creates a new repository instance.
func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// GetBySymbol retrieves a company profile.
// Returns apperrors.ErrCompanyNotFound if the symbol has no profile.
func (r *CompanyRepository) GetBySymbol(ctx context.Context, symbol string) (model.Company, error) {
	query := `
		SELECT symbol, name, sector, industry, exchange, currency, updated_at
		FROM company
		WHERE symbol = ?
	`

	var c model.Company
	var name, sector, industry, exchange, currency sql.NullString
	var updatedAt string

	err := r.db.QueryRowContext(ctx, query, symbol).Scan(
		&c.Symbol, &name, &sector, &industry, &exchange, &currency, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Company{}, apperrors.ErrCompanyNotFound
	}
	if err != nil {
		return model.Company{}, fmt.Errorf("failed to query company: %w", err)
	}

	c.Name = name.String
	c.Sector = sector.String
	c.Industry = industry.String
	c.Exchange = exchange.String
	c.Currency = currency.String
	if c.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.Company{}, err
	}

	return c, nil
}

// SectorsBySymbol returns a symbol-to-sector map for the given symbols.
// Symbols without a company profile are absent from the map.
func (r *CompanyRepository) SectorsBySymbol(ctx context.Context, symbols []string) (map[string]string, error) {
	sectors := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		c, err := r.GetBySymbol(ctx, symbol)
		if errors.Is(err, apperrors.ErrCompanyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.Sector != "" {
			sectors[symbol] = c.Sector
		}
	}
	return sectors, nil
}

// Upsert inserts or refreshes a company profile.
func (r *CompanyRepository) Upsert(ctx context.Context, c model.Company) error {
	query := `
		INSERT INTO company (symbol, name, sector, industry, exchange, currency, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			industry = excluded.industry,
			exchange = excluded.exchange,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		c.Symbol, c.Name, c.Sector, c.Industry, c.Exchange, c.Currency,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}

	return nil
}

// RegisterSymbol ensures a symbol is present in the symbol registry. The
// insert is idempotent.
func (r *CompanyRepository) RegisterSymbol(ctx context.Context, symbol string) error {
	query := `
		INSERT INTO symbol_registry (symbol, registered_at)
		VALUES (?, ?)
		ON CONFLICT(symbol) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, symbol, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to register symbol: %w", err)
	}

	return nil
}

// IsRegistered reports whether a symbol is present in the symbol registry.
func (r *CompanyRepository) IsRegistered(ctx context.Context, symbol string) (bool, error) {
	query := `SELECT 1 FROM symbol_registry WHERE symbol = ?`

	var one int
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query symbol registry: %w", err)
	}
	return true, nil
}

// UpsertFundamentals inserts or refreshes the fundamentals row for a symbol.
func (r *CompanyRepository) UpsertFundamentals(ctx context.Context, f model.Fundamentals) error {
	query := `
		INSERT INTO fundamentals (symbol, eps, pe_ratio, market_cap, as_of, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			eps = excluded.eps,
			pe_ratio = excluded.pe_ratio,
			market_cap = excluded.market_cap,
			as_of = excluded.as_of,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		f.Symbol, f.EPS.String(), f.PERatio.String(), f.MarketCap.String(),
		f.AsOf.Format(DateFormat), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fundamentals: %w", err)
	}

	return nil
}
