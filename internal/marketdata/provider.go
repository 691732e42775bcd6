// Package marketdata is the batch pipeline's client side of the market-data
// layer. The pipeline core treats the provider as a single call that either
// returns data or signals unavailability; multi-provider fallback lives
// upstream and is not this package's concern.
package marketdata

import (
	"context"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// Provider supplies closing prices, company profiles and fundamental data.
// The batch phases depend on this interface so tests can substitute fakes.
type Provider interface {
	// GetDailyClose returns the closing price for a symbol on a trading date.
	// It returns apperrors.ErrPriceNotFound when the provider has no data for
	// that symbol/date.
	GetDailyClose(ctx context.Context, symbol string, date time.Time) (model.Price, error)

	// GetCompanyProfile returns profile metadata for a symbol. It returns
	// apperrors.ErrCompanyNotFound when the symbol is unknown.
	GetCompanyProfile(ctx context.Context, symbol string) (model.Company, error)

	// GetFundamentals returns fundamental metrics for a symbol. It returns
	// apperrors.ErrFundamentalsNotReady when data is not yet published (e.g.
	// too soon after an earnings event); callers skip gracefully.
	GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error)
}

// AnalyticsNotifier is the hook for downstream analytics (factor exposures,
// correlations, stress tests). The pipeline is those consumers' sole trusted
// data source for the day, so it notifies them only after position values and
// snapshots are current and reconciled.
type AnalyticsNotifier interface {
	SnapshotReady(ctx context.Context, portfolioID string, date time.Time) error
}

// NoopAnalytics is the default AnalyticsNotifier when no downstream consumer
// is wired in.
type NoopAnalytics struct{}

// SnapshotReady implements AnalyticsNotifier.
func (NoopAnalytics) SnapshotReady(context.Context, string, time.Time) error { return nil }
