package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// HolidayRepository provides data access methods for the market_holiday table.
type HolidayRepository struct {
	db *sql.DB
}

// NewHolidayRepository creates a new repository instance.
func NewHolidayRepository(db *sql.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// ListDates returns every holiday date in the table.
func (r *HolidayRepository) ListDates(ctx context.Context) ([]time.Time, error) {
	query := `SELECT date FROM market_holiday ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	dates := []time.Time{}
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		date, err := ParseTime(dateStr)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return dates, nil
}

// Create inserts a holiday.
func (r *HolidayRepository) Create(ctx context.Context, h model.Holiday) error {
	query := `
		INSERT INTO market_holiday (date, name)
		VALUES (?, ?)
		ON CONFLICT(date) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, h.Date.Format(DateFormat), h.Name)
	if err != nil {
		return fmt.Errorf("failed to insert holiday: %w", err)
	}

	return nil
}
