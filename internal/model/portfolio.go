package model

import "github.com/shopspring/decimal"

// Portfolio represents a portfolio from the database.
//
// DeclaredCapital is the user-supplied nominal starting capital. It is
// advisory metadata only: the equity rollforward seeds from the sum of
// position entry costs, never from this field, because the declared figure
// may not equal actual capital deployed (the difference is uninvested cash).
type Portfolio struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DeclaredCapital decimal.Decimal `json:"declaredCapital"`
	IsArchived      bool            `json:"isArchived"`
}

// PortfolioFilter for querying portfolios
type PortfolioFilter struct {
	IncludeArchived bool
}
