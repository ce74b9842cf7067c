package models

import (
	"fmt"
	"time"
)

// PricePoint is a market closing price for a (ticker, currency) on a day.
type PricePoint struct {
	TickerID   string    `json:"ticker_id"`
	CurrencyID string    `json:"currency_id"`
	Date       time.Time `json:"date"`
	Close      float64   `json:"close"`
}

// NaturalKey returns the (ticker, currency, date) identity string.
func (p *PricePoint) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", p.TickerID, p.CurrencyID, DayKey(p.Date))
}
