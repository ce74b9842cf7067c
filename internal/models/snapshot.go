package models

import (
	"fmt"
	"time"
)

// FinancialTotals holds the cumulative-to-date money fields shared by
// broker-level and ticker-level snapshots. For a fixed key, each
// snapshot's totals equal the previous snapshot's totals plus that
// day's delta.
type FinancialTotals struct {
	Deposited         float64 `json:"deposited"`
	Withdrawn         float64 `json:"withdrawn"`
	Invested          float64 `json:"invested"`
	RealizedGains     float64 `json:"realized_gains"`
	UnrealizedGains   float64 `json:"unrealized_gains"`
	DividendsReceived float64 `json:"dividends_received"`
	OptionsIncome     float64 `json:"options_income"`
	OtherIncome       float64 `json:"other_income"`
	Commissions       float64 `json:"commissions"`
	Fees              float64 `json:"fees"`
	MovementCounter   int     `json:"movement_counter"`
}

// Add returns the sum of two totals, field by field.
func (f FinancialTotals) Add(delta FinancialTotals) FinancialTotals {
	return FinancialTotals{
		Deposited:         f.Deposited + delta.Deposited,
		Withdrawn:         f.Withdrawn + delta.Withdrawn,
		Invested:          f.Invested + delta.Invested,
		RealizedGains:     f.RealizedGains + delta.RealizedGains,
		UnrealizedGains:   f.UnrealizedGains + delta.UnrealizedGains,
		DividendsReceived: f.DividendsReceived + delta.DividendsReceived,
		OptionsIncome:     f.OptionsIncome + delta.OptionsIncome,
		OtherIncome:       f.OtherIncome + delta.OtherIncome,
		Commissions:       f.Commissions + delta.Commissions,
		Fees:              f.Fees + delta.Fees,
		MovementCounter:   f.MovementCounter + delta.MovementCounter,
	}
}

// BrokerFinancialSnapshot is the cumulative financial state of one
// (broker account, currency) pair as of Date.
type BrokerFinancialSnapshot struct {
	ID              string    `json:"id"`
	BrokerAccountID string    `json:"broker_account_id"`
	CurrencyID      string    `json:"currency_id"`
	Date            time.Time `json:"date"`

	FinancialTotals

	OpenTrades bool      `json:"open_trades"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NaturalKey returns the (account, currency, date) identity string used
// for upsert deduplication.
func (s *BrokerFinancialSnapshot) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", s.BrokerAccountID, s.CurrencyID, DayKey(s.Date))
}

// TickerCurrencySnapshot is the cumulative financial state of one
// (ticker, currency) pair as of Date, including the share position.
type TickerCurrencySnapshot struct {
	ID         string    `json:"id"`
	TickerID   string    `json:"ticker_id"`
	CurrencyID string    `json:"currency_id"`
	Date       time.Time `json:"date"`

	FinancialTotals

	// TotalShares is the net share position as of Date.
	TotalShares float64 `json:"total_shares"`
	// CostBasis is the capital currently committed to the position:
	// buys add cost, sells reduce it by proceeds.
	CostBasis float64 `json:"cost_basis"`
	// RealCost is CostBasis including transaction costs (commissions
	// and fees paid on the ticker's trades).
	RealCost float64 `json:"real_cost"`
	// Performance is unrealized gains over cost basis, as a percentage.
	Performance float64 `json:"performance"`
	// LatestPrice is the market price used for the unrealized
	// valuation, or 0 when no price was available.
	LatestPrice float64 `json:"latest_price"`

	OpenTrades bool      `json:"open_trades"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NaturalKey returns the (ticker, currency, date) identity string used
// for upsert deduplication.
func (s *TickerCurrencySnapshot) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", s.TickerID, s.CurrencyID, DayKey(s.Date))
}
