package service

import (
	"context"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// PriceService resolves best-known closing prices from the price store. It
// never calls external providers; filling gaps from providers is the
// market-data collection phase's job. When no exact match exists for a date,
// the most recent prior price is returned, so callers see either a usable
// price or apperrors.ErrPriceNotFound and can apply their own gap policy.
type PriceService struct {
	priceRepo *repository.PriceRepository
}

// NewPriceService creates a new PriceService with the provided dependencies.
func NewPriceService(priceRepo *repository.PriceRepository) *PriceService {
	return &PriceService{priceRepo: priceRepo}
}

// GetPrice returns the most recent price for a symbol at or before the given
// date. Returns apperrors.ErrPriceNotFound when the symbol has no price
// history up to that date.
func (s *PriceService) GetPrice(ctx context.Context, symbol string, date time.Time) (model.Price, error) {
	return s.priceRepo.GetOnOrBefore(ctx, symbol, date)
}

// GetPrices resolves prices for many symbols at or before the given date in
// a single query. Symbols with no resolvable price are absent from the map;
// no error is raised for them, so callers can apply the no-prior-price
// policy per position.
func (s *PriceService) GetPrices(ctx context.Context, symbols []string, date time.Time) (map[string]model.Price, error) {
	return s.priceRepo.GetBulkOnOrBefore(ctx, symbols, date)
}
