package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// MockProvider is a mock implementation of marketdata.Provider for testing.
// It serves predefined data instead of making API calls. Safe for concurrent
// use, since the orchestrator processes portfolios concurrently.
//
// Prices are keyed by symbol then date string ("2006-01-02"). A lookup miss
// returns the same sentinel the real client does, so callers exercise their
// error paths against realistic behavior.
type MockProvider struct {
	mu sync.Mutex

	// Prices holds closing prices by symbol and date
	Prices map[string]map[string]decimal.Decimal
	// Profiles holds company metadata by symbol
	Profiles map[string]model.Company
	// Fundamentals holds fundamental data by symbol
	Fundamentals map[string]model.Fundamentals
	// Err, when set, is returned from every call
	Err error
	// CallCount tracks the total number of provider calls
	CallCount int
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Prices:       make(map[string]map[string]decimal.Decimal),
		Profiles:     make(map[string]model.Company),
		Fundamentals: make(map[string]model.Fundamentals),
	}
}

// AppleProfile returns a realistic company profile for use as mock data.
func AppleProfile() model.Company {
	return model.Company{
		Symbol:   "AAPL",
		Name:     "Apple Inc.",
		Sector:   "Technology",
		Industry: "Consumer Electronics",
		Exchange: "NASDAQ",
		Currency: "USD",
	}
}

// SetPrice registers a closing price for a symbol on a date.
func (m *MockProvider) SetPrice(symbol string, date time.Time, close string) {
	if m.Prices[symbol] == nil {
		m.Prices[symbol] = make(map[string]decimal.Decimal)
	}
	m.Prices[symbol][date.Format(repository.DateFormat)] = decimal.RequireFromString(close)
}

// GetDailyClose returns the registered price or apperrors.ErrPriceNotFound.
func (m *MockProvider) GetDailyClose(_ context.Context, symbol string, date time.Time) (model.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.Err != nil {
		return model.Price{}, m.Err
	}

	close, ok := m.Prices[symbol][date.Format(repository.DateFormat)]
	if !ok {
		return model.Price{}, apperrors.ErrPriceNotFound
	}

	return model.Price{Symbol: symbol, Date: date, Close: close}, nil
}

// GetCompanyProfile returns the registered profile or apperrors.ErrCompanyNotFound.
func (m *MockProvider) GetCompanyProfile(_ context.Context, symbol string) (model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.Err != nil {
		return model.Company{}, m.Err
	}

	profile, ok := m.Profiles[symbol]
	if !ok {
		return model.Company{}, apperrors.ErrCompanyNotFound
	}

	return profile, nil
}

// GetFundamentals returns the registered data or apperrors.ErrFundamentalsNotReady.
func (m *MockProvider) GetFundamentals(_ context.Context, symbol string) (model.Fundamentals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.Err != nil {
		return model.Fundamentals{}, m.Err
	}

	f, ok := m.Fundamentals[symbol]
	if !ok {
		return model.Fundamentals{}, apperrors.ErrFundamentalsNotReady
	}

	return f, nil
}

// RecordingNotifier captures analytics notifications for assertions. Safe
// for concurrent use.
type RecordingNotifier struct {
	mu sync.Mutex

	// Notified holds one entry per SnapshotReady call
	Notified []NotifiedSnapshot
	// Err, when set, is returned from SnapshotReady
	Err error
}

// NotifiedSnapshot is one captured SnapshotReady call.
type NotifiedSnapshot struct {
	PortfolioID string
	Date        time.Time
}

// SnapshotReady implements marketdata.AnalyticsNotifier.
func (n *RecordingNotifier) SnapshotReady(_ context.Context, portfolioID string, date time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Notified = append(n.Notified, NotifiedSnapshot{PortfolioID: portfolioID, Date: date})
	return nil
}
