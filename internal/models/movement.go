// Package models defines the domain types for the Finpoint snapshot engine.
package models

import "time"

// MovementKind identifies the five movement variants.
type MovementKind string

const (
	KindCash        MovementKind = "cash"
	KindEquityTrade MovementKind = "equity_trade"
	KindDividend    MovementKind = "dividend"
	KindDividendTax MovementKind = "dividend_tax"
	KindOptionTrade MovementKind = "option_trade"
)

// CashMovementType categorizes the direction and purpose of a cash movement.
type CashMovementType string

const (
	CashDeposit      CashMovementType = "deposit"
	CashWithdrawal   CashMovementType = "withdrawal"
	CashFee          CashMovementType = "fee"
	CashCommission   CashMovementType = "commission"
	CashInterestPaid CashMovementType = "interest_paid"
	CashOtherIncome  CashMovementType = "other_income"
)

// validCashMovementTypes lists all accepted cash movement types.
var validCashMovementTypes = map[CashMovementType]bool{
	CashDeposit:      true,
	CashWithdrawal:   true,
	CashFee:          true,
	CashCommission:   true,
	CashInterestPaid: true,
	CashOtherIncome:  true,
}

// ValidCashMovementType returns true if t is a valid cash movement type.
func ValidCashMovementType(t CashMovementType) bool {
	return validCashMovementTypes[t]
}

// CashMovement is a cash event on a broker account (deposit, withdrawal,
// fee, commission, interest paid, other income). Amount is always positive;
// the type carries the direction.
type CashMovement struct {
	ID              string           `json:"id" badgerhold:"key"`
	BrokerAccountID string           `json:"broker_account_id"`
	CurrencyID      string           `json:"currency_id"`
	Timestamp       time.Time        `json:"timestamp"`
	Type            CashMovementType `json:"type"`
	Amount          float64          `json:"amount"`
}

// TradeSide is the direction of an equity trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// EquityTrade is a share purchase or sale.
type EquityTrade struct {
	ID              string    `json:"id" badgerhold:"key"`
	BrokerAccountID string    `json:"broker_account_id"`
	TickerID        string    `json:"ticker_id"`
	CurrencyID      string    `json:"currency_id"`
	Timestamp       time.Time `json:"timestamp"`
	Side            TradeSide `json:"side"`
	Quantity        float64   `json:"quantity"`
	Price           float64   `json:"price"`
	Commissions     float64   `json:"commissions"`
	Fees            float64   `json:"fees"`
}

// GrossValue returns quantity × price, before commissions and fees.
func (t *EquityTrade) GrossValue() float64 {
	return t.Quantity * t.Price
}

// Dividend is a gross dividend payment for a ticker position.
type Dividend struct {
	ID              string    `json:"id" badgerhold:"key"`
	BrokerAccountID string    `json:"broker_account_id"`
	TickerID        string    `json:"ticker_id"`
	CurrencyID      string    `json:"currency_id"`
	Timestamp       time.Time `json:"timestamp"`
	Amount          float64   `json:"amount"`
}

// DividendTax is withholding tax on a dividend. Amount is stored positive
// and subtracted from gross dividends during calculation.
type DividendTax struct {
	ID              string    `json:"id" badgerhold:"key"`
	BrokerAccountID string    `json:"broker_account_id"`
	TickerID        string    `json:"ticker_id"`
	CurrencyID      string    `json:"currency_id"`
	Timestamp       time.Time `json:"timestamp"`
	Amount          float64   `json:"amount"`
}

// OptionCode identifies how an option trade opens or closes a position.
type OptionCode string

const (
	BuyToOpen   OptionCode = "buy_to_open"
	SellToOpen  OptionCode = "sell_to_open"
	BuyToClose  OptionCode = "buy_to_close"
	SellToClose OptionCode = "sell_to_close"
)

// IsOpening returns true for codes that open a position.
func (c OptionCode) IsOpening() bool {
	return c == BuyToOpen || c == SellToOpen
}

// IsClosing returns true for codes that close a position.
func (c OptionCode) IsClosing() bool {
	return c == BuyToClose || c == SellToClose
}

// OptionTrade is an option contract trade. NetPremium is the signed cash
// impact of the trade (premium received positive, premium paid negative,
// net of commissions and fees). ClosedWith holds the id of the closing
// trade recorded against an opening trade, or "" while the position is
// open (or for closing trades themselves).
type OptionTrade struct {
	ID              string     `json:"id" badgerhold:"key"`
	BrokerAccountID string     `json:"broker_account_id"`
	TickerID        string     `json:"ticker_id"`
	CurrencyID      string     `json:"currency_id"`
	Timestamp       time.Time  `json:"timestamp"`
	Code            OptionCode `json:"code"`
	Contract        string     `json:"contract"`
	Quantity        float64    `json:"quantity"`
	Premium         float64    `json:"premium"`
	NetPremium      float64    `json:"net_premium"`
	Commissions     float64    `json:"commissions"`
	Fees            float64    `json:"fees"`
	ClosedWith      string     `json:"closed_with,omitempty"`
}

// MovementSet bundles the five movement lists handed to the engine for
// one broker account.
type MovementSet struct {
	Cash          []*CashMovement
	EquityTrades  []*EquityTrade
	Dividends     []*Dividend
	DividendTaxes []*DividendTax
	OptionTrades  []*OptionTrade
}

// Count returns the total number of movements across all variants.
func (m *MovementSet) Count() int {
	return len(m.Cash) + len(m.EquityTrades) + len(m.Dividends) +
		len(m.DividendTaxes) + len(m.OptionTrades)
}

// IsEmpty returns true when the set holds no movements at all.
func (m *MovementSet) IsEmpty() bool {
	return m.Count() == 0
}

// DayOf normalizes a timestamp to the start of its UTC calendar day.
// All snapshot dates and movement grouping keys use this granularity.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a day as its canonical "YYYY-MM-DD" string.
func DayKey(t time.Time) string {
	return DayOf(t).Format("2006-01-02")
}
