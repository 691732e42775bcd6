package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrPortfolioNotFound indicates that a portfolio with the given ID does not exist.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrPositionNotFound indicates that a position with the given ID does not exist.
	ErrPositionNotFound = errors.New("position not found")

	// ErrSnapshotNotFound indicates no snapshot exists for the requested portfolio and date.
	ErrSnapshotNotFound = errors.New("portfolio snapshot not found")

	// ErrPriceNotFound indicates no price is resolvable for a symbol at or before a date.
	ErrPriceNotFound = errors.New("price not found")

	// ErrCompanyNotFound indicates that a company profile lookup returned no results.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrSymbolNotFound indicates that a symbol lookup returned no results.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrNotTradingDay indicates that the requested date is not a trading day.
	ErrNotTradingDay = errors.New("not a trading day")

	// ErrNoOpenPositions indicates that a portfolio has no open positions as of
	// the calculation date, so no ledger can be bootstrapped for it.
	ErrNoOpenPositions = errors.New("no open positions")
)

// Ledger-integrity errors are fatal for the affected (portfolio, date) unit of
// work. The batch pipeline must never write a partial or incorrect snapshot
// when one of these occurs; they surface in the run summary as hard failures.
var (
	// ErrDuplicateSnapshot indicates a snapshot already exists for the same
	// portfolio and date. Recomputation must delete-then-recreate instead.
	ErrDuplicateSnapshot = errors.New("duplicate snapshot for date")

	// ErrNoEquitySeed indicates the equity rollforward could not establish a
	// seed value for the calculation date.
	ErrNoEquitySeed = errors.New("cannot establish equity seed")

	// ErrCurrentPriceMissing indicates no current price could be resolved for
	// an open position. A snapshot with unknown market value is worse than no
	// snapshot, so the P&L phase fails rather than fabricating a value.
	ErrCurrentPriceMissing = errors.New("current price missing for open position")
)

// Provider and infrastructure errors.
var (
	// ErrFundamentalsNotReady indicates the provider has no fundamental data
	// yet (e.g., too soon after an earnings event). Callers skip gracefully.
	ErrFundamentalsNotReady = errors.New("fundamental data not yet available")

	// ErrProviderUnavailable indicates the market-data provider could not be
	// reached after the configured retry budget was exhausted.
	ErrProviderUnavailable = errors.New("market data provider unavailable")
)
