package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a holding in a portfolio.
//
// Quantity is signed: negative means short. Multiplier is the contract size
// scalar fixed at position-open time (1 for equities, 100 for standard option
// contracts) and never changes.
//
// LastPrice, MarketValue and UnrealizedPnL are cached valuation fields owned
// by the daily valuation pass. They are always written together: a position
// carrying a stale MarketValue but fresh UnrealizedPnL (or vice versa) is a
// defect. PriceAsOf records the date of the price the cached fields were
// computed from.
type Position struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolioId"`
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	EntryPrice  decimal.Decimal `json:"entryPrice"`
	EntryDate   time.Time       `json:"entryDate"`
	Multiplier  int64           `json:"multiplier"`
	Sector      string          `json:"sector,omitempty"`

	LastPrice     decimal.Decimal `json:"lastPrice"`
	MarketValue   decimal.Decimal `json:"marketValue"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	PriceAsOf     *time.Time      `json:"priceAsOf,omitempty"`

	ExitDate  *time.Time `json:"exitDate,omitempty"`
	IsDeleted bool       `json:"-"`
}

// CostBasis returns quantity * entry price * multiplier.
func (p Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice).Mul(decimal.NewFromInt(p.Multiplier))
}

// OpenAsOf reports whether the position is open on the given date: entered on
// or before it, not exit-dated before it, and not soft-deleted.
func (p Position) OpenAsOf(date time.Time) bool {
	if p.IsDeleted {
		return false
	}
	if p.EntryDate.After(date) {
		return false
	}
	if p.ExitDate != nil && p.ExitDate.Before(date) {
		return false
	}
	return true
}
