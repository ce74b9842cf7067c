package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/finpoint/finpoint/internal/models"
)

// TickerCell is the input for one (ticker, currency, date) calculation.
// Movements must already be filtered to the ticker. Matcher holds the
// full option history for the (ticker, currency) pair and may be nil
// when the ticker has never traded options.
type TickerCell struct {
	TickerID   string
	CurrencyID string
	Date       time.Time

	Movements *DayMovements
	Baseline  *models.TickerCurrencySnapshot
	Existing  *models.TickerCurrencySnapshot

	Matcher *OptionMatcher

	// Price is the market price on or before Date; 0 means no price
	// has ever been recorded, in which case the average cost per share
	// is used for valuation.
	Price float64

	// Force rewrites drift-validated rows even when they already match
	// their baseline.
	Force bool
}

// TickerResult is the outcome of one ticker cell calculation.
type TickerResult struct {
	Snapshot *models.TickerCurrencySnapshot
	Scenario Scenario
	Action   Action
}

// tickerDayDelta computes the day's raw deltas for a ticker-filtered
// movement bucket: cumulative money fields plus the share position and
// cost-basis changes. Cost basis tracks capital currently committed, so
// buys add gross cost and sells reduce it by proceeds. RealCost
// additionally charges transaction costs against the position.
func tickerDayDelta(day *DayMovements) (totals models.FinancialTotals, shares, cost, realCost float64) {
	if day == nil {
		return
	}

	for _, t := range day.EquityTrades {
		switch t.Side {
		case models.SideBuy:
			shares += t.Quantity
			cost += t.GrossValue()
			realCost += t.GrossValue() + t.Commissions + t.Fees
			totals.Invested += t.GrossValue()
		case models.SideSell:
			shares -= t.Quantity
			cost -= t.GrossValue()
			realCost -= t.GrossValue() - t.Commissions - t.Fees
			totals.Invested -= t.GrossValue()
		}
		totals.Commissions += t.Commissions
		totals.Fees += t.Fees
	}

	for _, div := range day.Dividends {
		totals.DividendsReceived += div.Amount
	}
	for _, tax := range day.DividendTaxes {
		totals.DividendsReceived -= tax.Amount
	}

	for _, o := range day.OptionTrades {
		totals.OptionsIncome += o.NetPremium
		totals.Commissions += o.Commissions
		totals.Fees += o.Fees
	}

	totals.MovementCounter = day.Count()
	return
}

// unrealizedValue values the currently-open share position. Option
// positions never contribute: their P&L only appears once realized.
// With no market price the average cost per share is used, which by
// construction values the position at exactly its cost basis.
func unrealizedValue(shares, costBasis, price float64) float64 {
	if shares == 0 {
		return 0
	}
	effective := price
	if effective == 0 {
		effective = costBasis / shares
	}
	return effective*shares - costBasis
}

// performancePct guards the zero-denominator case.
func performancePct(unrealized, costBasis float64) float64 {
	if costBasis == 0 {
		return 0
	}
	return unrealized / costBasis * 100
}

// checkTickerIdentity fails fast on identity mismatches.
func checkTickerIdentity(cell *TickerCell) error {
	if cell.Existing != nil {
		if cell.Existing.CurrencyID != cell.CurrencyID {
			return &ConsistencyError{Field: "currency", Previous: cell.CurrencyID, Existing: cell.Existing.CurrencyID}
		}
		if cell.Existing.TickerID != cell.TickerID {
			return &ConsistencyError{Field: "ticker", Previous: cell.TickerID, Existing: cell.Existing.TickerID}
		}
		if !models.DayOf(cell.Existing.Date).Equal(models.DayOf(cell.Date)) {
			return &ConsistencyError{Field: "date", Previous: models.DayKey(cell.Date), Existing: models.DayKey(cell.Existing.Date)}
		}
	}
	if cell.Baseline != nil {
		if cell.Baseline.CurrencyID != cell.CurrencyID {
			return &ConsistencyError{Field: "currency", Previous: cell.Baseline.CurrencyID, Existing: cell.CurrencyID}
		}
		if !models.DayOf(cell.Baseline.Date).Before(models.DayOf(cell.Date)) {
			return &ConsistencyError{Field: "baseline_date", Previous: models.DayKey(cell.Baseline.Date), Existing: models.DayKey(cell.Date)}
		}
	}
	return nil
}

// openTradesFlag is the ticker-level open-position test: a non-zero
// share position, or any option open as of the date per the temporal
// open test.
func openTradesFlag(shares float64, matcher *OptionMatcher, date time.Time) bool {
	if shares != 0 {
		return true
	}
	return matcher != nil && matcher.AnyOpenAsOf(date)
}

// CalculateTickerSnapshot runs one (ticker, currency, date) cell through
// the scenario matrix. Pure: no I/O, inputs are not mutated.
func CalculateTickerSnapshot(cell *TickerCell) (*TickerResult, error) {
	if err := checkTickerIdentity(cell); err != nil {
		return nil, err
	}

	scenario := Classify(cell.Movements != nil && cell.Movements.Count() > 0,
		cell.Baseline != nil, cell.Existing != nil)

	result := &TickerResult{Scenario: scenario}

	newSnapshot := func() *models.TickerCurrencySnapshot {
		return &models.TickerCurrencySnapshot{
			ID:         uuid.NewString(),
			TickerID:   cell.TickerID,
			CurrencyID: cell.CurrencyID,
			Date:       models.DayOf(cell.Date),
		}
	}

	// compute applies baseline + today's delta. base may be the prior
	// snapshot or the existing row (extend scenario); zero-valued when
	// this is the first snapshot ever.
	compute := func(base *models.TickerCurrencySnapshot, snap *models.TickerCurrencySnapshot) {
		delta, sharesDelta, costDelta, realCostDelta := tickerDayDelta(cell.Movements)

		var baseTotals models.FinancialTotals
		var baseShares, baseCost, baseRealCost float64
		var prevDate time.Time
		if base != nil {
			baseTotals = base.FinancialTotals
			baseShares = base.TotalShares
			baseCost = base.CostBasis
			baseRealCost = base.RealCost
			prevDate = base.Date
		}

		if cell.Matcher != nil {
			delta.RealizedGains = cell.Matcher.RealizedBetween(prevDate, cell.Date)
		}

		snap.FinancialTotals = baseTotals.Add(delta)
		snap.TotalShares = baseShares + sharesDelta
		snap.CostBasis = baseCost + costDelta
		snap.RealCost = baseRealCost + realCostDelta
		snap.LatestPrice = cell.Price
		snap.UnrealizedGains = unrealizedValue(snap.TotalShares, snap.CostBasis, cell.Price)
		snap.Performance = performancePct(snap.UnrealizedGains, snap.CostBasis)
		snap.OpenTrades = openTradesFlag(snap.TotalShares, cell.Matcher, cell.Date)
	}

	switch scenario {
	case ScenarioComputeFresh:
		snap := newSnapshot()
		compute(cell.Baseline, snap)
		result.Snapshot = snap
		result.Action = ActionCreated

	case ScenarioComputeFirst:
		snap := newSnapshot()
		compute(nil, snap)
		result.Snapshot = snap
		result.Action = ActionCreated

	case ScenarioRecomputeExisting:
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		compute(cell.Baseline, snap)
		result.Snapshot = snap
		result.Action = ActionUpdated

	case ScenarioExtendExisting:
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		// No baseline means the existing row is the earliest snapshot
		// there is, and the bucket holds every movement recorded for the
		// day, including any the row already absorbed. Rebuilding from
		// zero is exact; adding the bucket on top of the row would count
		// the originally applied movements twice.
		compute(nil, snap)
		result.Snapshot = snap
		result.Action = ActionUpdated

	case ScenarioCarryForward:
		// Carry the position forward unchanged except the date and a
		// revalued unrealized P&L at the new date's market price.
		snap := newSnapshot()
		snap.FinancialTotals = cell.Baseline.FinancialTotals
		snap.TotalShares = cell.Baseline.TotalShares
		snap.CostBasis = cell.Baseline.CostBasis
		snap.RealCost = cell.Baseline.RealCost
		snap.LatestPrice = cell.Price
		snap.UnrealizedGains = unrealizedValue(snap.TotalShares, snap.CostBasis, cell.Price)
		snap.Performance = performancePct(snap.UnrealizedGains, snap.CostBasis)
		snap.OpenTrades = openTradesFlag(snap.TotalShares, cell.Matcher, cell.Date)
		result.Snapshot = snap
		result.Action = ActionCreated

	case ScenarioSkip:
		result.Action = ActionSkipped

	case ScenarioRepairDrift:
		if !cell.Force && tickerMatchesBaseline(cell.Existing, cell.Baseline) {
			result.Action = ActionNone
			break
		}
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		snap.FinancialTotals = cell.Baseline.FinancialTotals
		snap.TotalShares = cell.Baseline.TotalShares
		snap.CostBasis = cell.Baseline.CostBasis
		snap.RealCost = cell.Baseline.RealCost
		snap.LatestPrice = cell.Baseline.LatestPrice
		snap.UnrealizedGains = cell.Baseline.UnrealizedGains
		snap.Performance = cell.Baseline.Performance
		snap.OpenTrades = cell.Baseline.OpenTrades
		result.Snapshot = snap
		result.Action = ActionRepaired

	case ScenarioResetExisting:
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		result.Snapshot = snap
		result.Action = ActionRepaired
	}

	return result, nil
}

// tickerMatchesBaseline reports whether an existing no-movement row
// already equals its baseline in every cumulative and position field.
func tickerMatchesBaseline(existing, baseline *models.TickerCurrencySnapshot) bool {
	return existing.FinancialTotals == baseline.FinancialTotals &&
		existing.TotalShares == baseline.TotalShares &&
		existing.CostBasis == baseline.CostBasis &&
		existing.RealCost == baseline.RealCost
}
