package service_test

import (
	"context"
	"testing"

	"github.com/quantfolio/portfolio-ledger/internal/testutil"
)

// TestPositionService_RevaluePortfolio tests the daily valuation pass.
//
// WHY: Cached valuation fields are written by exactly one code path. The pass
// must write last price, market value and unrealized P&L together, skip
// symbols with no resolvable price without fabricating values, and report
// those symbols so the run can be flagged partial.
func TestPositionService_RevaluePortfolio(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes cached fields from the day's close", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestPositionService(t, db)

		portfolio := testutil.NewPortfolio().Build(t, db)
		long := testutil.NewPosition(portfolio.ID).
			WithSymbol("AAPL").WithQuantity("100").WithEntryPrice("140").
			WithEntryDate(testutil.Date(2024, 1, 8)).
			Build(t, db)
		short := testutil.NewPosition(portfolio.ID).
			WithSymbol("TSLA").WithQuantity("-50").WithEntryPrice("200").
			WithEntryDate(testutil.Date(2024, 1, 8)).
			Build(t, db)

		day := testutil.Date(2024, 1, 9)
		testutil.CreatePrice(t, db, "AAPL", day, "150")
		testutil.CreatePrice(t, db, "TSLA", day, "190")

		result, err := svc.RevaluePortfolio(ctx, portfolio.ID, day)
		if err != nil {
			t.Fatalf("RevaluePortfolio() returned unexpected error: %v", err)
		}

		if result.Revalued != 2 {
			t.Errorf("Expected 2 revalued positions, got %d", result.Revalued)
		}
		if len(result.Stale) != 0 {
			t.Errorf("Expected no stale symbols, got %v", result.Stale)
		}

		positions, err := svc.GetPortfolioPositions(ctx, portfolio.ID)
		if err != nil {
			t.Fatalf("GetPortfolioPositions() returned unexpected error: %v", err)
		}

		for _, p := range positions {
			switch p.ID {
			case long.ID:
				assertDecimal(t, "long LastPrice", p.LastPrice, "150")
				assertDecimal(t, "long MarketValue", p.MarketValue, "15000")
				assertDecimal(t, "long UnrealizedPnL", p.UnrealizedPnL, "1000")
			case short.ID:
				assertDecimal(t, "short LastPrice", p.LastPrice, "190")
				assertDecimal(t, "short MarketValue", p.MarketValue, "-9500")
				assertDecimal(t, "short UnrealizedPnL", p.UnrealizedPnL, "500")
			}
			if p.PriceAsOf == nil || !p.PriceAsOf.Equal(day) {
				t.Errorf("Position %s: PriceAsOf = %v, want %s", p.Symbol, p.PriceAsOf, day.Format("2006-01-02"))
			}
		}
	})

	t.Run("unresolvable symbol is reported stale, not fabricated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestPositionService(t, db)

		portfolio := testutil.NewPortfolio().Build(t, db)
		testutil.NewPosition(portfolio.ID).
			WithSymbol("AAPL").WithQuantity("100").WithEntryPrice("140").
			WithEntryDate(testutil.Date(2024, 1, 8)).
			Build(t, db)
		ghost := testutil.NewPosition(portfolio.ID).
			WithSymbol("GHOST").WithQuantity("10").WithEntryPrice("5").
			WithEntryDate(testutil.Date(2024, 1, 8)).
			Build(t, db)

		day := testutil.Date(2024, 1, 9)
		testutil.CreatePrice(t, db, "AAPL", day, "150")

		result, err := svc.RevaluePortfolio(ctx, portfolio.ID, day)
		if err != nil {
			t.Fatalf("RevaluePortfolio() returned unexpected error: %v", err)
		}

		if result.Revalued != 1 {
			t.Errorf("Expected 1 revalued position, got %d", result.Revalued)
		}
		if len(result.Stale) != 1 || result.Stale[0] != "GHOST" {
			t.Errorf("Expected stale = [GHOST], got %v", result.Stale)
		}

		// The stale position's cached fields must be untouched.
		positions, err := svc.GetPortfolioPositions(ctx, portfolio.ID)
		if err != nil {
			t.Fatalf("GetPortfolioPositions() returned unexpected error: %v", err)
		}
		for _, p := range positions {
			if p.ID == ghost.ID && p.PriceAsOf != nil {
				t.Errorf("Stale position was written: PriceAsOf = %v", p.PriceAsOf)
			}
		}
	})

	t.Run("stale price from an earlier date is still usable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestPositionService(t, db)

		portfolio := testutil.NewPortfolio().Build(t, db)
		testutil.NewPosition(portfolio.ID).
			WithSymbol("AAPL").WithQuantity("100").WithEntryPrice("140").
			WithEntryDate(testutil.Date(2024, 1, 8)).
			Build(t, db)

		priceDay := testutil.Date(2024, 1, 8)
		testutil.CreatePrice(t, db, "AAPL", priceDay, "145")

		result, err := svc.RevaluePortfolio(ctx, portfolio.ID, testutil.Date(2024, 1, 9))
		if err != nil {
			t.Fatalf("RevaluePortfolio() returned unexpected error: %v", err)
		}

		if result.Revalued != 1 {
			t.Errorf("Expected 1 revalued position, got %d", result.Revalued)
		}

		// PriceAsOf records the price's date, not the valuation date.
		positions, err := svc.GetPortfolioPositions(ctx, portfolio.ID)
		if err != nil {
			t.Fatalf("GetPortfolioPositions() returned unexpected error: %v", err)
		}
		if positions[0].PriceAsOf == nil || !positions[0].PriceAsOf.Equal(priceDay) {
			t.Errorf("PriceAsOf = %v, want %s", positions[0].PriceAsOf, priceDay.Format("2006-01-02"))
		}
	})

	t.Run("empty portfolio is a no-op", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestPositionService(t, db)

		portfolio := testutil.NewPortfolio().Build(t, db)

		result, err := svc.RevaluePortfolio(ctx, portfolio.ID, testutil.Date(2024, 1, 9))
		if err != nil {
			t.Fatalf("RevaluePortfolio() returned unexpected error: %v", err)
		}
		if result.Revalued != 0 || len(result.Stale) != 0 {
			t.Errorf("Expected empty result, got %+v", result)
		}
	})
}
