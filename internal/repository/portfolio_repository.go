package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// PortfolioRepository provides data access methods for the portfolio table.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository creates a new repository instance.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// GetByID retrieves a single portfolio by its ID.
// Returns apperrors.ErrPortfolioNotFound if no portfolio exists with the given ID.
func (r *PortfolioRepository) GetByID(ctx context.Context, id string) (model.Portfolio, error) {
	query := `
		SELECT id, name, description, declared_capital, is_archived
		FROM portfolio
		WHERE id = ?
	`

	var p model.Portfolio
	var capital string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &capital, &p.IsArchived,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to query portfolio: %w", err)
	}

	p.DeclaredCapital, err = ParseDecimal(capital)
	if err != nil {
		return model.Portfolio{}, err
	}

	return p, nil
}

// List retrieves portfolios, optionally including archived ones.
func (r *PortfolioRepository) List(ctx context.Context, filter model.PortfolioFilter) ([]model.Portfolio, error) {
	query := `
		SELECT id, name, description, declared_capital, is_archived
		FROM portfolio
	`
	if !filter.IncludeArchived {
		query += ` WHERE is_archived = FALSE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := []model.Portfolio{}
	for rows.Next() {
		var p model.Portfolio
		var capital string

		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &capital, &p.IsArchived); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p.DeclaredCapital, err = ParseDecimal(capital)
		if err != nil {
			return nil, err
		}

		portfolios = append(portfolios, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return portfolios, nil
}

// Create inserts a new portfolio.
func (r *PortfolioRepository) Create(ctx context.Context, p model.Portfolio) error {
	query := `
		INSERT INTO portfolio (id, name, description, declared_capital, is_archived)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.DeclaredCapital.String(), p.IsArchived,
	)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}

	return nil
}
