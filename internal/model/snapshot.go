package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is one immutable ledger record per (portfolio, trading
// date). Snapshots are append-only: a date may be recomputed only by deleting
// and regenerating the same row, never by patching it in place.
type PortfolioSnapshot struct {
	ID            string          // Primary key
	PortfolioID   string          // Portfolio identifier
	Date          time.Time       // Trading date of this snapshot
	EquityBalance decimal.Decimal // Capital account, cumulative
	DailyPnL      decimal.Decimal // Change vs. prior snapshot
	CumulativePnL decimal.Decimal // Since the portfolio's first snapshot
	DailyReturn   decimal.Decimal // DailyPnL / prior equity
	LongValue     decimal.Decimal // Aggregate market value of long positions
	ShortValue    decimal.Decimal // Aggregate market value of shorts (negative)
	IsPartial     bool            // Some prices were stale on this date
	CreatedAt     time.Time       // When this record was calculated
}

// TotalMarketValue returns LongValue + ShortValue.
func (s PortfolioSnapshot) TotalMarketValue() decimal.Decimal {
	return s.LongValue.Add(s.ShortValue)
}

// CashOrMargin returns the derived cash/margin figure for the snapshot date:
// equity balance minus total market value. Positive means cash (buying
// power), negative means margin (leverage), near zero means fully invested.
func (s PortfolioSnapshot) CashOrMargin() decimal.Decimal {
	return s.EquityBalance.Sub(s.TotalMarketValue())
}
