package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/marketdata"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// CollectorService runs the market-data collection phase: it ensures closing
// prices for all held symbols are present in the price store for a date.
// Individual symbol failures are logged and do not abort the run; positions
// with unresolved prices fall back to the no-prior-price policy downstream.
type CollectorService struct {
	priceRepo *repository.PriceRepository
	provider  marketdata.Provider
	logger    *zap.Logger
}

// NewCollectorService creates a new CollectorService with the provided dependencies.
func NewCollectorService(
	priceRepo *repository.PriceRepository,
	provider marketdata.Provider,
	logger *zap.Logger,
) *CollectorService {
	return &CollectorService{
		priceRepo: priceRepo,
		provider:  provider,
		logger:    logger,
	}
}

// CollectPrices fetches and stores the closing price for every symbol that
// does not already have a row for the date. Already-present prices are not
// re-fetched, which keeps backfill replays cheap and idempotent.
func (s *CollectorService) CollectPrices(ctx context.Context, symbols []string, date time.Time) error {
	var errs error
	for _, symbol := range symbols {
		exists, err := s.priceRepo.Exists(ctx, symbol, date)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		price, err := s.provider.GetDailyClose(ctx, symbol, date)
		if err != nil {
			s.logger.Warn("price collection failed for symbol",
				zap.String("symbol", symbol),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("collect %s: %w", symbol, err))
			continue
		}

		if err := s.priceRepo.Upsert(ctx, price); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", symbol, err))
		}
	}
	return errs
}
