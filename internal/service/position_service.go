package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// PositionService handles position-related business logic, most importantly
// the daily market-value update pass that refreshes each position's cached
// valuation fields.
type PositionService struct {
	positionRepo *repository.PositionRepository
	priceService *PriceService
	logger       *zap.Logger
}

// NewPositionService creates a new PositionService with the provided dependencies.
func NewPositionService(
	positionRepo *repository.PositionRepository,
	priceService *PriceService,
	logger *zap.Logger,
) *PositionService {
	return &PositionService{
		positionRepo: positionRepo,
		priceService: priceService,
		logger:       logger,
	}
}

// RevalueResult summarizes one valuation pass over a portfolio.
type RevalueResult struct {
	Revalued int      // Positions whose cached fields were refreshed
	Stale    []string // Symbols with no resolvable price, left untouched
}

// RevaluePortfolio runs position valuation for every position open as of the
// given date and writes the cached fields (last price, market value,
// unrealized P&L) onto each position record. Both fields are written in the
// same statement; updating market value without recomputing unrealized P&L
// would silently corrupt every consumer of position P&L until the next pass.
//
// Prices are fetched in one bulk query for the whole portfolio. A position
// whose price cannot be resolved is never fabricated a value: its cached
// fields stay untouched and its symbol is reported as stale, so the caller
// can flag the run as partial.
func (s *PositionService) RevaluePortfolio(ctx context.Context, portfolioID string, date time.Time) (RevalueResult, error) {
	positions, err := s.positionRepo.ListOpenAsOf(ctx, portfolioID, date)
	if err != nil {
		return RevalueResult{}, err
	}
	if len(positions) == 0 {
		return RevalueResult{}, nil
	}

	symbols := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; !ok {
			seen[p.Symbol] = struct{}{}
			symbols = append(symbols, p.Symbol)
		}
	}

	prices, err := s.priceService.GetPrices(ctx, symbols, date)
	if err != nil {
		return RevalueResult{}, err
	}

	var result RevalueResult
	var errs error
	staleSeen := make(map[string]struct{})

	for _, p := range positions {
		price, ok := prices[p.Symbol]
		if !ok {
			if _, dup := staleSeen[p.Symbol]; !dup {
				staleSeen[p.Symbol] = struct{}{}
				result.Stale = append(result.Stale, p.Symbol)
			}
			s.logger.Warn("no price resolvable, leaving position stale",
				zap.String("portfolio_id", portfolioID),
				zap.String("symbol", p.Symbol),
				zap.String("date", date.Format("2006-01-02")))
			continue
		}

		v := ValuePosition(p, price.Close)
		if err := s.positionRepo.Revalue(ctx, p.ID, price.Close, v.MarketValue, v.UnrealizedPnL, price.Date); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("revalue %s: %w", p.Symbol, err))
			continue
		}
		result.Revalued++
	}

	return result, errs
}

// GetPortfolioPositions retrieves all non-deleted positions for a portfolio.
func (s *PositionService) GetPortfolioPositions(ctx context.Context, portfolioID string) ([]model.Position, error) {
	return s.positionRepo.ListByPortfolio(ctx, portfolioID)
}
