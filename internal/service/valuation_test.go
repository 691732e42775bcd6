package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/service"
)

func position(quantity, entryPrice string, multiplier int64) model.Position {
	return model.Position{
		ID:         "pos-1",
		Symbol:     "AAPL",
		Quantity:   decimal.RequireFromString(quantity),
		EntryPrice: decimal.RequireFromString(entryPrice),
		EntryDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Multiplier: multiplier,
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

// TestValuePosition tests market value and unrealized P&L for long and short
// positions.
//
// WHY: Signed quantity is the load-bearing convention of the whole valuation
// layer: shorts must fall out of the same arithmetic as longs with no special
// cases. A long and a short of equal size must produce exactly mirrored
// values.
func TestValuePosition(t *testing.T) {
	tests := []struct {
		name              string
		position          model.Position
		price             string
		wantMarketValue   string
		wantUnrealizedPnL string
	}{
		{
			name:              "long equity gains",
			position:          position("100", "140", 1),
			price:             "150",
			wantMarketValue:   "15000",
			wantUnrealizedPnL: "1000",
		},
		{
			name:              "short equity mirrors the long exactly",
			position:          position("-100", "140", 1),
			price:             "150",
			wantMarketValue:   "-15000",
			wantUnrealizedPnL: "-1000",
		},
		{
			name:              "short profits when price falls",
			position:          position("-100", "140", 1),
			price:             "130",
			wantMarketValue:   "-13000",
			wantUnrealizedPnL: "1000",
		},
		{
			name:              "option multiplier scales both values",
			position:          position("2", "5.50", 100),
			price:             "7.25",
			wantMarketValue:   "1450",
			wantUnrealizedPnL: "350",
		},
		{
			name:              "fractional quantity",
			position:          position("10.5", "100", 1),
			price:             "102",
			wantMarketValue:   "1071",
			wantUnrealizedPnL: "21",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := service.ValuePosition(tt.position, decimal.RequireFromString(tt.price))

			assertDecimal(t, "MarketValue", v.MarketValue, tt.wantMarketValue)
			assertDecimal(t, "UnrealizedPnL", v.UnrealizedPnL, tt.wantUnrealizedPnL)
		})
	}
}

// TestPositionDailyPnL tests the single-day P&L calculation.
//
// WHY: Daily P&L drives the equity rollforward. It must measure only the
// day's price move, never the move since entry, or the ledger double-counts
// gains on every date after the first.
func TestPositionDailyPnL(t *testing.T) {
	tests := []struct {
		name     string
		position model.Position
		current  string
		previous string
		want     string
	}{
		{
			name:     "long gains on a rise",
			position: position("100", "140", 1),
			current:  "150",
			previous: "148",
			want:     "200",
		},
		{
			name:     "short gains on a fall",
			position: position("-100", "140", 1),
			current:  "148",
			previous: "150",
			want:     "200",
		},
		{
			name:     "flat price is zero regardless of entry",
			position: position("100", "50", 1),
			current:  "150",
			previous: "150",
			want:     "0",
		},
		{
			name:     "multiplier scales the day move",
			position: position("3", "5", 100),
			current:  "6.40",
			previous: "6.10",
			want:     "90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.PositionDailyPnL(tt.position,
				decimal.RequireFromString(tt.current),
				decimal.RequireFromString(tt.previous))

			assertDecimal(t, "PositionDailyPnL", got, tt.want)
		})
	}
}

// TestPositionCostBasis tests the entry-cost calculation used to seed equity.
//
// WHY: The first snapshot of a portfolio's history seeds from the sum of
// these values. Getting the multiplier or sign wrong here corrupts every
// subsequent snapshot through the rollforward.
func TestPositionCostBasis(t *testing.T) {
	t.Run("long equity", func(t *testing.T) {
		assertDecimal(t, "CostBasis", position("100", "140", 1).CostBasis(), "14000")
	})

	t.Run("short carries a negative cost basis", func(t *testing.T) {
		assertDecimal(t, "CostBasis", position("-100", "140", 1).CostBasis(), "-14000")
	})

	t.Run("option contract includes the multiplier", func(t *testing.T) {
		assertDecimal(t, "CostBasis", position("2", "5.50", 100).CostBasis(), "1100")
	})
}
