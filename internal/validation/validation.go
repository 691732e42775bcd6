// Package validation provides request-side validation helpers shared by the
// API handlers.
package validation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
)

// ValidateUUID checks that an ID parameter is a non-empty, valid UUID.
func ValidateUUID(id string) error {
	if id == "" {
		return apperrors.ErrEmptyID
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.ErrInvalidUUID
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD query parameter.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t.UTC(), nil
}

// ParseDateRange parses start/end query parameters and checks their order.
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, apperrors.ErrInvalidDateRange
	}
	return startDate, endDate, nil
}
