// Package calendar answers trading-day questions for a single market: whether
// a date is a trading day, what the previous or next trading day is, and how
// to adjust a requested calculation date so the pipeline never computes a
// "final" snapshot against an in-progress trading session.
//
// The calendar is pure computation over a known holiday set; it performs no
// I/O and has no failure modes.
package calendar

import "time"

// Calendar is a trading calendar for one market. Weekends are always
// non-trading days; additional closures come from the holiday set.
type Calendar struct {
	holidays map[string]struct{}
	location *time.Location
	close    time.Duration // market close as an offset from midnight, exchange time
	buffer   time.Duration // settle time after close before data is trusted
}

const dayKeyFormat = "2006-01-02"

// New creates a Calendar for the given exchange location, market close time
// and post-close buffer. Holiday dates are normalized to day granularity.
func New(holidays []time.Time, location *time.Location, closeOffset, buffer time.Duration) *Calendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h.Format(dayKeyFormat)] = struct{}{}
	}
	return &Calendar{
		holidays: set,
		location: location,
		close:    closeOffset,
		buffer:   buffer,
	}
}

// IsTradingDay reports whether the given date is a trading day.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[date.Format(dayKeyFormat)]
	return !holiday
}

// PreviousTradingDay returns the most recent trading day strictly before date.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	d := truncate(date).AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the first trading day strictly after date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	d := truncate(date).AddDate(0, 0, 1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AdjustToValidDate rolls a requested calculation date back to the most
// recent date whose closing data is reliably available as of now:
//
//   - a non-trading date rolls back to the most recent trading day;
//   - today's trading date rolls back to the previous trading day while the
//     market session is still open (before close plus the configured buffer),
//     because that day's closing data is not yet trustworthy;
//   - a future date is first capped at today.
func (c *Calendar) AdjustToValidDate(requested, now time.Time) time.Time {
	nowLocal := now.In(c.location)
	today := truncate(nowLocal)

	d := truncate(requested)
	if d.After(today) {
		d = today
	}
	if !c.IsTradingDay(d) {
		d = c.PreviousTradingDay(d)
	}
	if d.Equal(today) {
		y, m, day := nowLocal.Date()
		cutoff := time.Date(y, m, day, 0, 0, 0, 0, c.location).Add(c.close + c.buffer)
		if nowLocal.Before(cutoff) {
			d = c.PreviousTradingDay(d)
		}
	}
	return d
}

// TradingDaysBetween returns every trading day in the half-open range
// (after, until], oldest first. It returns nil when the range is empty.
func (c *Calendar) TradingDaysBetween(after, until time.Time) []time.Time {
	var days []time.Time
	for d := truncate(after).AddDate(0, 0, 1); !d.After(truncate(until)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// truncate normalizes a time to midnight UTC day granularity.
func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
