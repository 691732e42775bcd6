package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/calendar"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
	"github.com/quantfolio/portfolio-ledger/internal/service"
)

// Date returns a UTC-midnight date, the normalized form used throughout the
// calendar and repositories.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewTestCalendar builds a trading calendar with no holidays, New York hours
// and a 30 minute settle buffer, matching the production defaults.
func NewTestCalendar(t *testing.T, holidays ...time.Time) *calendar.Calendar {
	t.Helper()

	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load test timezone: %v", err)
	}

	return calendar.New(holidays, location, 16*time.Hour, 30*time.Minute)
}

func NewTestPriceService(t *testing.T, db *sql.DB) *service.PriceService {
	t.Helper()

	return service.NewPriceService(repository.NewPriceRepository(db))
}

func NewTestPnLService(t *testing.T, db *sql.DB) *service.PnLService {
	t.Helper()

	positionRepo := repository.NewPositionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	return service.NewPnLService(
		positionRepo,
		snapshotRepo,
		NewTestPriceService(t, db),
		NewTestCalendar(t),
	)
}

func NewTestPositionService(t *testing.T, db *sql.DB) *service.PositionService {
	t.Helper()

	positionRepo := repository.NewPositionRepository(db)

	return service.NewPositionService(
		positionRepo,
		NewTestPriceService(t, db),
		zap.NewNop(),
	)
}

func NewTestPortfolioService(t *testing.T, db *sql.DB) *service.PortfolioService {
	t.Helper()

	portfolioRepo := repository.NewPortfolioRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	return service.NewPortfolioService(
		portfolioRepo,
		snapshotRepo,
	)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeSymbol generates a stock ticker symbol for testing.
//
// Example usage:
//
//	symbol := testutil.MakeSymbol("AAPL")
//	// Returns: "AAPL1A2B"
func MakeSymbol(base string) string {
	if base == "" {
		base = "TEST"
	}
	return base + randomAlphanumeric(4)
}

// MakePortfolioName generates a unique portfolio name for testing.
//
// Example usage:
//
//	name := testutil.MakePortfolioName("MyPortfolio")
//	// Returns: "MyPortfolio ABC123"
func MakePortfolioName(base string) string {
	if base == "" {
		base = "Portfolio"
	}
	return base + " " + randomAlphanumeric(6)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
