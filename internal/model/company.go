package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company holds profile metadata for a symbol, refreshed by the metadata-sync
// phase on the final date of each batch run.
type Company struct {
	Symbol    string
	Name      string
	Sector    string
	Industry  string
	Exchange  string
	Currency  string
	UpdatedAt time.Time
}

// Fundamentals holds the best-effort fundamental metrics for a symbol. Rows
// are upserted by the fundamentals phase and may lag earnings events.
type Fundamentals struct {
	Symbol    string
	EPS       decimal.Decimal
	PERatio   decimal.Decimal
	MarketCap decimal.Decimal
	AsOf      time.Time
	UpdatedAt time.Time
}
