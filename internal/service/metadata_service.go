package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/marketdata"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// MetadataService handles the non-ledger phases of the batch pipeline:
// company-profile sync, symbol-universe registration, fundamental data
// collection and sector tag restoration. All of its operations tolerate
// partial per-symbol failure; none of them may corrupt the ledger.
type MetadataService struct {
	companyRepo  *repository.CompanyRepository
	positionRepo *repository.PositionRepository
	provider     marketdata.Provider
	logger       *zap.Logger
}

// NewMetadataService creates a new MetadataService with the provided dependencies.
func NewMetadataService(
	companyRepo *repository.CompanyRepository,
	positionRepo *repository.PositionRepository,
	provider marketdata.Provider,
	logger *zap.Logger,
) *MetadataService {
	return &MetadataService{
		companyRepo:  companyRepo,
		positionRepo: positionRepo,
		provider:     provider,
		logger:       logger,
	}
}

// SyncCompanies refreshes company profiles for the given symbols. Individual
// symbol failures are collected and returned but do not stop the remaining
// symbols from syncing.
func (s *MetadataService) SyncCompanies(ctx context.Context, symbols []string) error {
	var errs error
	for _, symbol := range symbols {
		company, err := s.provider.GetCompanyProfile(ctx, symbol)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("profile %s: %w", symbol, err))
			continue
		}
		if err := s.companyRepo.Upsert(ctx, company); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("profile %s: %w", symbol, err))
		}
	}
	return errs
}

// RegisterSymbols ensures every symbol referenced by an open position is
// present in the symbol registry before any per-symbol analytics runs. This
// is a required defensive step on every batch entry path: skipping it on one
// path silently starves later phases of data for newly-introduced symbols.
func (s *MetadataService) RegisterSymbols(ctx context.Context, symbols []string) error {
	var errs error
	for _, symbol := range symbols {
		if err := s.companyRepo.RegisterSymbol(ctx, symbol); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("register %s: %w", symbol, err))
		}
	}
	return errs
}

// CollectFundamentals fetches fundamental data for the given symbols,
// best-effort. Data that is not yet available (too soon after an earnings
// event) is skipped without error.
func (s *MetadataService) CollectFundamentals(ctx context.Context, symbols []string) error {
	var errs error
	for _, symbol := range symbols {
		fundamentals, err := s.provider.GetFundamentals(ctx, symbol)
		if errors.Is(err, apperrors.ErrFundamentalsNotReady) {
			s.logger.Debug("fundamentals not yet available",
				zap.String("symbol", symbol))
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fundamentals %s: %w", symbol, err))
			continue
		}
		if err := s.companyRepo.UpsertFundamentals(ctx, fundamentals); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fundamentals %s: %w", symbol, err))
		}
	}
	return errs
}

// RestoreSectorTags re-applies sector tags from company profiles onto a
// portfolio's open positions. Cosmetic metadata only; it depends on the
// company sync phase having run at some point.
func (s *MetadataService) RestoreSectorTags(ctx context.Context, portfolioID string, date time.Time) error {
	positions, err := s.positionRepo.ListOpenAsOf(ctx, portfolioID, date)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; !ok {
			seen[p.Symbol] = struct{}{}
			symbols = append(symbols, p.Symbol)
		}
	}

	sectors, err := s.companyRepo.SectorsBySymbol(ctx, symbols)
	if err != nil {
		return err
	}

	var errs error
	for _, p := range positions {
		sector, ok := sectors[p.Symbol]
		if !ok || sector == p.Sector {
			continue
		}
		if err := s.positionRepo.SetSector(ctx, p.ID, sector); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sector %s: %w", p.Symbol, err))
		}
	}
	return errs
}
