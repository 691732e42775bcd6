package service

import (
	"context"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
	"github.com/quantfolio/portfolio-ledger/internal/repository"
)

// PortfolioService handles portfolio-related read operations for the API
// surface. Position and snapshot mutation belongs to the batch pipeline.
type PortfolioService struct {
	portfolioRepo *repository.PortfolioRepository
	snapshotRepo  *repository.SnapshotRepository
}

// NewPortfolioService creates a new PortfolioService with the provided dependencies.
func NewPortfolioService(
	portfolioRepo *repository.PortfolioRepository,
	snapshotRepo *repository.SnapshotRepository,
) *PortfolioService {
	return &PortfolioService{
		portfolioRepo: portfolioRepo,
		snapshotRepo:  snapshotRepo,
	}
}

// GetAllPortfolios returns all portfolios, including archived ones.
func (s *PortfolioService) GetAllPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	return s.portfolioRepo.List(ctx, model.PortfolioFilter{IncludeArchived: true})
}

// GetPortfolio returns a single portfolio by ID.
func (s *PortfolioService) GetPortfolio(ctx context.Context, id string) (model.Portfolio, error) {
	return s.portfolioRepo.GetByID(ctx, id)
}

// GetSnapshotRange returns the portfolio's snapshots between startDate and
// endDate inclusive, ordered by date.
func (s *PortfolioService) GetSnapshotRange(ctx context.Context, portfolioID string, startDate, endDate time.Time) ([]model.PortfolioSnapshot, error) {
	if endDate.Before(startDate) {
		return nil, apperrors.ErrInvalidDateRange
	}

	snapshots := []model.PortfolioSnapshot{}
	err := s.snapshotRepo.GetRange(ctx, portfolioID, startDate, endDate,
		func(snapshot model.PortfolioSnapshot) error {
			snapshots = append(snapshots, snapshot)
			return nil
		})
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}
