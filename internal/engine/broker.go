package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/finpoint/finpoint/internal/models"
)

// BrokerCell is the input for one (account, currency, date) calculation.
// Movements, Baseline, and Existing may each be nil; their presence
// drives the scenario classification.
type BrokerCell struct {
	AccountID  string
	CurrencyID string
	Date       time.Time

	Movements *DayMovements
	Baseline  *models.BrokerFinancialSnapshot
	Existing  *models.BrokerFinancialSnapshot

	// RealizedDelta is the option realized P&L attributable to the
	// window (baseline date, cell date], pre-computed by the caller
	// from the account's option matchers.
	RealizedDelta float64

	// Unrealized is the absolute unrealized value across the account's
	// open positions, summed from the ticker-level calculations.
	// When UnrealizedKnown is false the baseline value is carried.
	Unrealized      float64
	UnrealizedKnown bool

	// OpenTrades is the account-level open-position flag as of Date.
	OpenTrades bool

	// Force rewrites drift-validated rows even when they already match
	// their baseline.
	Force bool
}

// BrokerResult is the outcome of one broker cell calculation. Snapshot
// is nil when the scenario required no write.
type BrokerResult struct {
	Snapshot *models.BrokerFinancialSnapshot
	Scenario Scenario
	Action   Action
}

// brokerDayDelta turns one day's movements into the raw cumulative-field
// delta. Dividends are gross minus withheld tax; other income nets out
// interest paid; invested follows the buy-adds / sell-reduces sign
// convention.
func brokerDayDelta(day *DayMovements) models.FinancialTotals {
	var d models.FinancialTotals
	if day == nil {
		return d
	}

	for _, m := range day.Cash {
		switch m.Type {
		case models.CashDeposit:
			d.Deposited += m.Amount
		case models.CashWithdrawal:
			d.Withdrawn += m.Amount
		case models.CashFee:
			d.Fees += m.Amount
		case models.CashCommission:
			d.Commissions += m.Amount
		case models.CashInterestPaid:
			d.OtherIncome -= m.Amount
		case models.CashOtherIncome:
			d.OtherIncome += m.Amount
		}
	}

	for _, t := range day.EquityTrades {
		switch t.Side {
		case models.SideBuy:
			d.Invested += t.GrossValue()
		case models.SideSell:
			d.Invested -= t.GrossValue()
		}
		d.Commissions += t.Commissions
		d.Fees += t.Fees
	}

	for _, div := range day.Dividends {
		d.DividendsReceived += div.Amount
	}
	for _, tax := range day.DividendTaxes {
		d.DividendsReceived -= tax.Amount
	}

	for _, o := range day.OptionTrades {
		d.OptionsIncome += o.NetPremium
		d.Commissions += o.Commissions
		d.Fees += o.Fees
	}

	d.MovementCounter = day.Count()
	return d
}

// checkBrokerIdentity fails fast on identity mismatches between the
// cell, its baseline, and its existing row.
func checkBrokerIdentity(cell *BrokerCell) error {
	if cell.Existing != nil {
		if cell.Existing.CurrencyID != cell.CurrencyID {
			return &ConsistencyError{Field: "currency", Previous: cell.CurrencyID, Existing: cell.Existing.CurrencyID}
		}
		if cell.Existing.BrokerAccountID != cell.AccountID {
			return &ConsistencyError{Field: "account", Previous: cell.AccountID, Existing: cell.Existing.BrokerAccountID}
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

// CalculateBrokerSnapshot runs one (account, currency, date) cell
// through the scenario matrix. Pure: no I/O, inputs are not mutated.
func CalculateBrokerSnapshot(cell *BrokerCell) (*BrokerResult, error) {
	if err := checkBrokerIdentity(cell); err != nil {
		return nil, err
	}

	scenario := Classify(cell.Movements != nil && cell.Movements.Count() > 0,
		cell.Baseline != nil, cell.Existing != nil)

	result := &BrokerResult{Scenario: scenario}

	newSnapshot := func() *models.BrokerFinancialSnapshot {
		return &models.BrokerFinancialSnapshot{
			ID:              uuid.NewString(),
			BrokerAccountID: cell.AccountID,
			CurrencyID:      cell.CurrencyID,
			Date:            models.DayOf(cell.Date),
		}
	}

	// compute applies baseline + today's delta onto a base set of
	// totals, used by every "compute" branch.
	compute := func(base models.FinancialTotals, baseUnrealized float64, snap *models.BrokerFinancialSnapshot) {
		delta := brokerDayDelta(cell.Movements)
		delta.RealizedGains = cell.RealizedDelta
		snap.FinancialTotals = base.Add(delta)
		if cell.UnrealizedKnown {
			snap.UnrealizedGains = cell.Unrealized
		} else {
			snap.UnrealizedGains = baseUnrealized
		}
		snap.OpenTrades = cell.OpenTrades
	}

	switch scenario {
	case ScenarioComputeFresh:
		snap := newSnapshot()
		compute(cell.Baseline.FinancialTotals, cell.Baseline.UnrealizedGains, snap)
		result.Snapshot = snap
		result.Action = ActionCreated

	case ScenarioComputeFirst:
		snap := newSnapshot()
		compute(models.FinancialTotals{}, 0, snap)
		result.Snapshot = snap
		result.Action = ActionCreated

	case ScenarioRecomputeExisting:
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		compute(cell.Baseline.FinancialTotals, cell.Baseline.UnrealizedGains, snap)
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
		compute(models.FinancialTotals{}, 0, snap)
		result.Snapshot = snap
		result.Action = ActionUpdated

	case ScenarioCarryForward:
		snap := newSnapshot()
		snap.FinancialTotals = cell.Baseline.FinancialTotals
		if cell.UnrealizedKnown {
			snap.UnrealizedGains = cell.Unrealized
		}
		snap.OpenTrades = cell.Baseline.OpenTrades
		result.Snapshot = snap
		result.Action = ActionCreated

	case ScenarioSkip:
		result.Action = ActionSkipped

	case ScenarioRepairDrift:
		if !cell.Force && cell.Existing.FinancialTotals == cell.Baseline.FinancialTotals {
			result.Action = ActionNone
			break
		}
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		snap.FinancialTotals = cell.Baseline.FinancialTotals
		snap.OpenTrades = cell.Baseline.OpenTrades
		result.Snapshot = snap
		result.Action = ActionRepaired

	case ScenarioResetExisting:
		snap := newSnapshot()
		snap.ID = cell.Existing.ID
		snap.CreatedAt = cell.Existing.CreatedAt
		snap.FinancialTotals = models.FinancialTotals{}
		snap.OpenTrades = false
		result.Snapshot = snap
		result.Action = ActionRepaired
	}

	return result, nil
}
