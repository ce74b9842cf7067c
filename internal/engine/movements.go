package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/finpoint/finpoint/internal/models"
)

// DayMovements holds the movements of one (currency, day) bucket.
type DayMovements struct {
	Day           time.Time
	Cash          []*models.CashMovement
	EquityTrades  []*models.EquityTrade
	Dividends     []*models.Dividend
	DividendTaxes []*models.DividendTax
	OptionTrades  []*models.OptionTrade
}

// Count returns the number of movements in the bucket.
func (d *DayMovements) Count() int {
	return len(d.Cash) + len(d.EquityTrades) + len(d.Dividends) +
		len(d.DividendTaxes) + len(d.OptionTrades)
}

// FilterTicker returns the subset of the bucket that belongs to one
// ticker. Cash movements are account-level and never included.
func (d *DayMovements) FilterTicker(tickerID string) *DayMovements {
	out := &DayMovements{Day: d.Day}
	for _, t := range d.EquityTrades {
		if t.TickerID == tickerID {
			out.EquityTrades = append(out.EquityTrades, t)
		}
	}
	for _, div := range d.Dividends {
		if div.TickerID == tickerID {
			out.Dividends = append(out.Dividends, div)
		}
	}
	for _, tax := range d.DividendTaxes {
		if tax.TickerID == tickerID {
			out.DividendTaxes = append(out.DividendTaxes, tax)
		}
	}
	for _, o := range d.OptionTrades {
		if o.TickerID == tickerID {
			out.OptionTrades = append(out.OptionTrades, o)
		}
	}
	return out
}

// CurrencyMovementData holds one broker account's movements for a single
// currency, partitioned by calendar day, plus position state derived
// from the full set. Derived, never persisted.
type CurrencyMovementData struct {
	BrokerAccountID string
	CurrencyID      string

	// Days maps canonical day keys ("YYYY-MM-DD") to buckets.
	Days map[string]*DayMovements

	// CurrentPositions maps ticker id to the net share quantity after
	// replaying every equity trade in the set.
	CurrentPositions map[string]float64

	// CostBasisInfo maps ticker id to capital committed: buys add cost,
	// sells reduce it by proceeds.
	CostBasisInfo map[string]float64

	// HasOpenPositions is true when any share position is non-zero or
	// any option trade in the set is still unclosed.
	HasOpenPositions bool

	// Tickers lists every ticker id that appears in the set.
	Tickers []string
}

// SortedDays returns the bucket days in chronological order.
func (c *CurrencyMovementData) SortedDays() []time.Time {
	days := make([]time.Time, 0, len(c.Days))
	for _, bucket := range c.Days {
		days = append(days, bucket.Day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// DayOn returns the bucket for a day, or nil when the day has no
// movements.
func (c *CurrencyMovementData) DayOn(day time.Time) *DayMovements {
	return c.Days[models.DayKey(day)]
}

// GroupMovements partitions a movement set by (currency, day). Grouping
// is pure and total: every input movement lands in exactly one bucket.
// A zero timestamp on any movement is a hard failure.
func GroupMovements(accountID string, set *models.MovementSet) (map[string]*CurrencyMovementData, error) {
	groups := make(map[string]*CurrencyMovementData)

	group := func(currencyID string, ts time.Time) (*CurrencyMovementData, *DayMovements, error) {
		if ts.IsZero() {
			return nil, nil, fmt.Errorf("account %s currency %s: %w", accountID, currencyID, ErrMalformedMovement)
		}
		g, ok := groups[currencyID]
		if !ok {
			g = &CurrencyMovementData{
				BrokerAccountID:  accountID,
				CurrencyID:       currencyID,
				Days:             make(map[string]*DayMovements),
				CurrentPositions: make(map[string]float64),
				CostBasisInfo:    make(map[string]float64),
			}
			groups[currencyID] = g
		}
		key := models.DayKey(ts)
		bucket, ok := g.Days[key]
		if !ok {
			bucket = &DayMovements{Day: models.DayOf(ts)}
			g.Days[key] = bucket
		}
		return g, bucket, nil
	}

	for _, m := range set.Cash {
		_, bucket, err := group(m.CurrencyID, m.Timestamp)
		if err != nil {
			return nil, err
		}
		bucket.Cash = append(bucket.Cash, m)
	}

	for _, t := range set.EquityTrades {
		g, bucket, err := group(t.CurrencyID, t.Timestamp)
		if err != nil {
			return nil, err
		}
		bucket.EquityTrades = append(bucket.EquityTrades, t)

		if _, seen := g.CurrentPositions[t.TickerID]; !seen {
			g.Tickers = append(g.Tickers, t.TickerID)
		}
		switch t.Side {
		case models.SideBuy:
			g.CurrentPositions[t.TickerID] += t.Quantity
			g.CostBasisInfo[t.TickerID] += t.GrossValue()
		case models.SideSell:
			g.CurrentPositions[t.TickerID] -= t.Quantity
			g.CostBasisInfo[t.TickerID] -= t.GrossValue()
		}
	}

	for _, d := range set.Dividends {
		g, bucket, err := group(d.CurrencyID, d.Timestamp)
		if err != nil {
			return nil, err
		}
		bucket.Dividends = append(bucket.Dividends, d)
		g.noteTicker(d.TickerID)
	}

	for _, d := range set.DividendTaxes {
		g, bucket, err := group(d.CurrencyID, d.Timestamp)
		if err != nil {
			return nil, err
		}
		bucket.DividendTaxes = append(bucket.DividendTaxes, d)
		g.noteTicker(d.TickerID)
	}

	for _, o := range set.OptionTrades {
		g, bucket, err := group(o.CurrencyID, o.Timestamp)
		if err != nil {
			return nil, err
		}
		bucket.OptionTrades = append(bucket.OptionTrades, o)
		g.noteTicker(o.TickerID)
	}

	for _, g := range groups {
		g.deriveOpenPositions(set)
	}

	return groups, nil
}

// noteTicker records a ticker id the first time it appears.
func (c *CurrencyMovementData) noteTicker(tickerID string) {
	for _, t := range c.Tickers {
		if t == tickerID {
			return
		}
	}
	c.Tickers = append(c.Tickers, tickerID)
}

// deriveOpenPositions sets HasOpenPositions from net share positions and
// unclosed option trades.
func (c *CurrencyMovementData) deriveOpenPositions(set *models.MovementSet) {
	for _, qty := range c.CurrentPositions {
		if qty != 0 {
			c.HasOpenPositions = true
			return
		}
	}
	for _, o := range set.OptionTrades {
		if o.CurrencyID == c.CurrencyID && o.Code.IsOpening() && o.ClosedWith == "" {
			c.HasOpenPositions = true
			return
		}
	}
}
