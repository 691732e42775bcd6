package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is a closing price for a symbol on a trading date.
type Price struct {
	Symbol string
	Date   time.Time
	Close  decimal.Decimal
}

// Holiday is a non-trading weekday from the market calendar table.
type Holiday struct {
	Date time.Time
	Name string
}
