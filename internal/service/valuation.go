package service

import (
	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// Valuation holds the result of valuing one position against a price.
// MarketValue and UnrealizedPnL are computed together and must be written
// together; callers never update one without the other.
type Valuation struct {
	CostBasis     decimal.Decimal // quantity * entry price * multiplier
	MarketValue   decimal.Decimal // quantity * price * multiplier
	UnrealizedPnL decimal.Decimal // market value - cost basis
}

// ValuePosition computes market value, cost basis and unrealized P&L for a
// position at the given price.
//
// Quantity is signed, so shorts need no special-casing: a short that has
// fallen in price yields a market value closer to zero than its cost basis,
// producing positive unrealized P&L, and the reverse for a short that has
// risen. Branching on position direction is exactly the defect class that
// gets the short-side formula backwards.
func ValuePosition(p model.Position, price decimal.Decimal) Valuation {
	multiplier := decimal.NewFromInt(p.Multiplier)
	costBasis := p.Quantity.Mul(p.EntryPrice).Mul(multiplier)
	marketValue := p.Quantity.Mul(price).Mul(multiplier)

	return Valuation{
		CostBasis:     costBasis,
		MarketValue:   marketValue,
		UnrealizedPnL: marketValue.Sub(costBasis),
	}
}

// PositionDailyPnL computes one position's P&L for a single trading day:
// (current price - previous price) * quantity * multiplier.
func PositionDailyPnL(p model.Position, currentPrice, previousPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Sub(previousPrice).
		Mul(p.Quantity).
		Mul(decimal.NewFromInt(p.Multiplier))
}
