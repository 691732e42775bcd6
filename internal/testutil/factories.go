package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// PortfolioBuilder provides a fluent interface for creating test portfolios.
//
// Example usage:
//
//	// Simple creation with defaults
//	portfolio := testutil.NewPortfolio().Build(t, db)
//
//	// Customized portfolio
//	portfolio := testutil.NewPortfolio().
//	    WithName("Growth Book").
//	    WithDeclaredCapital("500000").
//	    Archived().
//	    Build(t, db)
type PortfolioBuilder struct {
	ID              string
	Name            string
	Description     string
	DeclaredCapital decimal.Decimal
	IsArchived      bool
}

// NewPortfolio creates a PortfolioBuilder with sensible defaults.
func NewPortfolio() *PortfolioBuilder {
	return &PortfolioBuilder{
		ID:              MakeID(),
		Name:            MakePortfolioName("Test Portfolio"),
		Description:     "Test description",
		DeclaredCapital: decimal.Zero,
		IsArchived:      false,
	}
}

// WithID sets a custom ID.
func (b *PortfolioBuilder) WithID(id string) *PortfolioBuilder {
	b.ID = id
	return b
}

// WithName sets a custom name.
func (b *PortfolioBuilder) WithName(name string) *PortfolioBuilder {
	b.Name = name
	return b
}

// WithDeclaredCapital sets the user-declared starting capital.
func (b *PortfolioBuilder) WithDeclaredCapital(amount string) *PortfolioBuilder {
	b.DeclaredCapital = decimal.RequireFromString(amount)
	return b
}

// Archived marks the portfolio as archived.
func (b *PortfolioBuilder) Archived() *PortfolioBuilder {
	b.IsArchived = true
	return b
}

// Build creates the portfolio in the database and returns it.
func (b *PortfolioBuilder) Build(t *testing.T, db *sql.DB) model.Portfolio {
	t.Helper()

	query := `
		INSERT INTO portfolio (id, name, description, declared_capital, is_archived)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.Name, b.Description, b.DeclaredCapital.String(), b.IsArchived)
	if err != nil {
		t.Fatalf("Failed to create test portfolio: %v", err)
	}

	return model.Portfolio{
		ID:              b.ID,
		Name:            b.Name,
		Description:     b.Description,
		DeclaredCapital: b.DeclaredCapital,
		IsArchived:      b.IsArchived,
	}
}

// PositionBuilder provides a fluent interface for creating test positions.
//
// Quantity is signed: use a negative quantity for a short.
//
// Example usage:
//
//	pos := testutil.NewPosition(portfolio.ID).
//	    WithSymbol("AAPL").
//	    WithQuantity("100").
//	    WithEntryPrice("140").
//	    WithEntryDate(Date(2024, 1, 2)).
//	    Build(t, db)
type PositionBuilder struct {
	ID          string
	PortfolioID string
	Symbol      string
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	EntryDate   time.Time
	Multiplier  int64
	Sector      string
	ExitDate    *time.Time
	IsDeleted   bool
}

// NewPosition creates a PositionBuilder with sensible defaults.
func NewPosition(portfolioID string) *PositionBuilder {
	return &PositionBuilder{
		ID:          MakeID(),
		PortfolioID: portfolioID,
		Symbol:      "AAPL",
		Quantity:    decimal.NewFromInt(100),
		EntryPrice:  decimal.NewFromInt(100),
		EntryDate:   Date(2024, 1, 2),
		Multiplier:  1,
	}
}

// WithID sets a custom ID.
func (b *PositionBuilder) WithID(id string) *PositionBuilder {
	b.ID = id
	return b
}

// WithSymbol sets the instrument symbol.
func (b *PositionBuilder) WithSymbol(symbol string) *PositionBuilder {
	b.Symbol = symbol
	return b
}

// WithQuantity sets the signed quantity.
func (b *PositionBuilder) WithQuantity(quantity string) *PositionBuilder {
	b.Quantity = decimal.RequireFromString(quantity)
	return b
}

// WithEntryPrice sets the entry price.
func (b *PositionBuilder) WithEntryPrice(price string) *PositionBuilder {
	b.EntryPrice = decimal.RequireFromString(price)
	return b
}

// WithEntryDate sets the entry date.
func (b *PositionBuilder) WithEntryDate(date time.Time) *PositionBuilder {
	b.EntryDate = date
	return b
}

// WithMultiplier sets the contract multiplier.
func (b *PositionBuilder) WithMultiplier(multiplier int64) *PositionBuilder {
	b.Multiplier = multiplier
	return b
}

// WithSector sets the sector tag.
func (b *PositionBuilder) WithSector(sector string) *PositionBuilder {
	b.Sector = sector
	return b
}

// WithExitDate closes the position on the given date.
func (b *PositionBuilder) WithExitDate(date time.Time) *PositionBuilder {
	b.ExitDate = &date
	return b
}

// Deleted marks the position as soft-deleted.
func (b *PositionBuilder) Deleted() *PositionBuilder {
	b.IsDeleted = true
	return b
}

// Build creates the position in the database and returns it.
func (b *PositionBuilder) Build(t *testing.T, db *sql.DB) model.Position {
	t.Helper()

	query := `
		INSERT INTO position (id, portfolio_id, symbol, quantity, entry_price,
			entry_date, multiplier, sector, exit_date, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var exitDate any
	if b.ExitDate != nil {
		exitDate = b.ExitDate.Format(repository.DateFormat)
	}

	_, err := db.Exec(query,
		b.ID, b.PortfolioID, b.Symbol, b.Quantity.String(), b.EntryPrice.String(),
		b.EntryDate.Format(repository.DateFormat), b.Multiplier, b.Sector,
		exitDate, b.IsDeleted,
	)
	if err != nil {
		t.Fatalf("Failed to create test position: %v", err)
	}

	return model.Position{
		ID:          b.ID,
		PortfolioID: b.PortfolioID,
		Symbol:      b.Symbol,
		Quantity:    b.Quantity,
		EntryPrice:  b.EntryPrice,
		EntryDate:   b.EntryDate,
		Multiplier:  b.Multiplier,
		Sector:      b.Sector,
		ExitDate:    b.ExitDate,
		IsDeleted:   b.IsDeleted,
	}
}

// Convenience functions

// CreatePrice inserts a closing price for a symbol on a date.
func CreatePrice(t *testing.T, db *sql.DB, symbol string, date time.Time, close string) {
	t.Helper()

	query := `INSERT INTO price (symbol, date, close) VALUES (?, ?, ?)`
	_, err := db.Exec(query, symbol, date.Format(repository.DateFormat), close)
	if err != nil {
		t.Fatalf("Failed to create test price: %v", err)
	}
}

// CreateHoliday inserts a market holiday.
func CreateHoliday(t *testing.T, db *sql.DB, date time.Time, name string) {
	t.Helper()

	query := `INSERT INTO market_holiday (date, name) VALUES (?, ?)`
	_, err := db.Exec(query, date.Format(repository.DateFormat), name)
	if err != nil {
		t.Fatalf("Failed to create test holiday: %v", err)
	}
}

// CreateCompany inserts a company profile row for a symbol.
func CreateCompany(t *testing.T, db *sql.DB, symbol, name, sector string) {
	t.Helper()

	query := `INSERT INTO company (symbol, name, sector) VALUES (?, ?, ?)`
	_, err := db.Exec(query, symbol, name, sector)
	if err != nil {
		t.Fatalf("Failed to create test company: %v", err)
	}
}
