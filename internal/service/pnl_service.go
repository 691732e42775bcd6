package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/calendar"
	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// returnPrecision is the decimal precision kept for the daily return ratio.
const returnPrecision = 8

// PnLService is the P&L / equity rollforward engine. For a portfolio and a
// target trading date it computes each open position's daily P&L against the
// prior trading day, the portfolio aggregate, and the new equity snapshot by
// rolling forward from the previous snapshot.
//
// Equity seeding follows the entry-cost contract: the first snapshot of a
// portfolio's history seeds from the sum of open positions' entry costs
// (actual capital deployed), never from the user-declared starting-capital
// figure, which may not equal capital deployed (the difference is uninvested
// cash).
type PnLService struct {
	positionRepo *repository.PositionRepository
	snapshotRepo *repository.SnapshotRepository
	priceService *PriceService
	calendar     *calendar.Calendar
}

// NewPnLService creates a new PnLService with the provided dependencies.
func NewPnLService(
	positionRepo *repository.PositionRepository,
	snapshotRepo *repository.SnapshotRepository,
	priceService *PriceService,
	cal *calendar.Calendar,
) *PnLService {
	return &PnLService{
		positionRepo: positionRepo,
		snapshotRepo: snapshotRepo,
		priceService: priceService,
		calendar:     cal,
	}
}

// ComputeSnapshot computes the portfolio's snapshot for the calculation date.
// It does not persist and does not deduplicate; callers own the idempotence
// boundary (check for or delete any existing snapshot for the exact date
// before persisting).
//
// Per-position daily P&L:
//
//  1. previous price = best price at or before the previous trading day;
//  2. if no previous price resolves (new listing, first day of history, data
//     gap), the previous price is set to the current price, forcing that
//     position's daily P&L to zero for the date. Substituting the entry
//     price instead would conflate cumulative with daily P&L and inflate the
//     first day's snapshot by the entire unrealized gain since entry.
//  3. daily P&L = (current - previous) * quantity * multiplier.
//
// A missing current price is a hard failure (apperrors.ErrCurrentPriceMissing):
// a snapshot with unknown market value is worse than no snapshot. A current
// price older than the calculation date is tolerated but marks the snapshot
// as partial.
func (s *PnLService) ComputeSnapshot(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioSnapshot, error) {
	positions, err := s.positionRepo.ListOpenAsOf(ctx, portfolioID, date)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	prior, err := s.snapshotRepo.LatestBefore(ctx, portfolioID, date)
	hasPrior := true
	if errors.Is(err, apperrors.ErrSnapshotNotFound) {
		hasPrior = false
	} else if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	if len(positions) == 0 {
		if !hasPrior {
			return model.PortfolioSnapshot{}, fmt.Errorf("%w: %v",
				apperrors.ErrNoEquitySeed, apperrors.ErrNoOpenPositions)
		}
		return s.carryForward(ctx, portfolioID, date, prior)
	}

	symbols := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; !ok {
			seen[p.Symbol] = struct{}{}
			symbols = append(symbols, p.Symbol)
		}
	}

	currentPrices, err := s.priceService.GetPrices(ctx, symbols, date)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	previousDay := s.calendar.PreviousTradingDay(date)
	previousPrices, err := s.priceService.GetPrices(ctx, symbols, previousDay)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	dailyPnL := decimal.Zero
	longValue := decimal.Zero
	shortValue := decimal.Zero
	partial := false

	for _, p := range positions {
		current, ok := currentPrices[p.Symbol]
		if !ok {
			return model.PortfolioSnapshot{}, fmt.Errorf("%w: %s",
				apperrors.ErrCurrentPriceMissing, p.Symbol)
		}
		if current.Date.Before(date) {
			partial = true
		}

		previousPrice := current.Close
		if prev, ok := previousPrices[p.Symbol]; ok {
			previousPrice = prev.Close
		}

		dailyPnL = dailyPnL.Add(PositionDailyPnL(p, current.Close, previousPrice))

		v := ValuePosition(p, current.Close)
		if p.Quantity.IsNegative() {
			shortValue = shortValue.Add(v.MarketValue)
		} else {
			longValue = longValue.Add(v.MarketValue)
		}
	}

	var previousEquity, firstEquity decimal.Decimal
	if hasPrior {
		previousEquity = prior.EquityBalance
		first, err := s.snapshotRepo.First(ctx, portfolioID)
		if err != nil {
			return model.PortfolioSnapshot{}, err
		}
		firstEquity = first.EquityBalance
	} else {
		// Bootstrap: seed equity from actual capital deployed and report
		// zero daily P&L, since no prior day exists to compare against.
		for _, p := range positions {
			previousEquity = previousEquity.Add(p.CostBasis())
		}
		firstEquity = previousEquity
		dailyPnL = decimal.Zero
	}

	newEquity := previousEquity.Add(dailyPnL)

	dailyReturn := decimal.Zero
	if !previousEquity.IsZero() {
		dailyReturn = dailyPnL.DivRound(previousEquity, returnPrecision)
	}

	return model.PortfolioSnapshot{
		ID:            uuid.NewString(),
		PortfolioID:   portfolioID,
		Date:          date,
		EquityBalance: newEquity,
		DailyPnL:      dailyPnL,
		CumulativePnL: newEquity.Sub(firstEquity),
		DailyReturn:   dailyReturn,
		LongValue:     longValue,
		ShortValue:    shortValue,
		IsPartial:     partial,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// carryForward produces a snapshot for a date on which the portfolio holds no
// open positions but has snapshot history: equity carries over unchanged.
func (s *PnLService) carryForward(ctx context.Context, portfolioID string, date time.Time, prior model.PortfolioSnapshot) (model.PortfolioSnapshot, error) {
	first, err := s.snapshotRepo.First(ctx, portfolioID)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return model.PortfolioSnapshot{
		ID:            uuid.NewString(),
		PortfolioID:   portfolioID,
		Date:          date,
		EquityBalance: prior.EquityBalance,
		DailyPnL:      decimal.Zero,
		CumulativePnL: prior.EquityBalance.Sub(first.EquityBalance),
		DailyReturn:   decimal.Zero,
		LongValue:     decimal.Zero,
		ShortValue:    decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// CreateSnapshot computes and persists the snapshot for the calculation date.
// If a snapshot already exists for the exact date the insert fails with
// apperrors.ErrDuplicateSnapshot and nothing is written.
func (s *PnLService) CreateSnapshot(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioSnapshot, error) {
	snapshot, err := s.ComputeSnapshot(ctx, portfolioID, date)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	if err := s.snapshotRepo.Create(ctx, snapshot); err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return snapshot, nil
}

// RecomputeSnapshot recomputes an already-snapshotted date by deleting and
// regenerating the row in one transaction. Given unchanged inputs the
// regenerated ledger fields are identical to the originals.
func (s *PnLService) RecomputeSnapshot(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioSnapshot, error) {
	if !s.calendar.IsTradingDay(date) {
		return model.PortfolioSnapshot{}, fmt.Errorf("%w: %s",
			apperrors.ErrNotTradingDay, date.Format("2006-01-02"))
	}

	snapshot, err := s.ComputeSnapshot(ctx, portfolioID, date)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	if err := s.snapshotRepo.Replace(ctx, snapshot); err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return snapshot, nil
}
