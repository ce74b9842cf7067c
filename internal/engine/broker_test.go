package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/finpoint/finpoint/internal/models"
)

func cashMovement(typ models.CashMovementType, amount float64, ts time.Time) *models.CashMovement {
	return &models.CashMovement{
		ID:              "cm-" + string(typ),
		BrokerAccountID: "acct-1",
		CurrencyID:      "USD",
		Timestamp:       ts,
		Type:            typ,
		Amount:          amount,
	}
}

func equityTrade(side models.TradeSide, qty, price, comm, fees float64, ts time.Time) *models.EquityTrade {
	return &models.EquityTrade{
		ID:              "et-1",
		BrokerAccountID: "acct-1",
		TickerID:        "AAPL",
		CurrencyID:      "USD",
		Timestamp:       ts,
		Side:            side,
		Quantity:        qty,
		Price:           price,
		Commissions:     comm,
		Fees:            fees,
	}
}

func fullDayMovements(ts time.Time) *DayMovements {
	return &DayMovements{
		Day: models.DayOf(ts),
		Cash: []*models.CashMovement{
			cashMovement(models.CashDeposit, 1000, ts),
			cashMovement(models.CashWithdrawal, 200, ts),
			cashMovement(models.CashFee, 5, ts),
			cashMovement(models.CashCommission, 3, ts),
			cashMovement(models.CashInterestPaid, 10, ts),
			cashMovement(models.CashOtherIncome, 25, ts),
		},
		EquityTrades: []*models.EquityTrade{
			equityTrade(models.SideBuy, 10, 50, 2, 1, ts),
		},
		Dividends: []*models.Dividend{
			{ID: "d1", BrokerAccountID: "acct-1", TickerID: "AAPL", CurrencyID: "USD", Timestamp: ts, Amount: 40},
		},
		DividendTaxes: []*models.DividendTax{
			{ID: "dt1", BrokerAccountID: "acct-1", TickerID: "AAPL", CurrencyID: "USD", Timestamp: ts, Amount: 6},
		},
		OptionTrades: []*models.OptionTrade{
			optionTrade("o1", models.SellToOpen, "X", ts, 100),
		},
	}
}

func TestBrokerDayDeltaMapping(t *testing.T) {
	d := brokerDayDelta(fullDayMovements(day(1)))

	assert.Equal(t, 1000.0, d.Deposited)
	assert.Equal(t, 200.0, d.Withdrawn)
	assert.Equal(t, 500.0, d.Invested)
	assert.Equal(t, 25.0-10.0, d.OtherIncome)
	assert.Equal(t, 40.0-6.0, d.DividendsReceived)
	assert.Equal(t, 100.0, d.OptionsIncome)
	assert.Equal(t, 3.0+2.0, d.Commissions)
	assert.Equal(t, 5.0+1.0, d.Fees)
	assert.Equal(t, 10, d.MovementCounter)
}

func TestBrokerCumulativeInvariant(t *testing.T) {
	baseline := &models.BrokerFinancialSnapshot{
		ID:              "prev",
		BrokerAccountID: "acct-1",
		CurrencyID:      "USD",
		Date:            day(1),
		FinancialTotals: models.FinancialTotals{
			Deposited: 5000, Invested: 1200, DividendsReceived: 80, MovementCounter: 12,
		},
	}

	cell := &BrokerCell{
		AccountID:  "acct-1",
		CurrencyID: "USD",
		Date:       day(2),
		Movements:  fullDayMovements(day(2)),
		Baseline:   baseline,
	}
	res, err := CalculateBrokerSnapshot(cell)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)

	// Every cumulative field equals previous day plus the day's delta.
	delta := brokerDayDelta(cell.Movements)
	assert.Equal(t, baseline.Deposited+delta.Deposited, res.Snapshot.Deposited)
	assert.Equal(t, baseline.Invested+delta.Invested, res.Snapshot.Invested)
	assert.Equal(t, baseline.DividendsReceived+delta.DividendsReceived, res.Snapshot.DividendsReceived)
	assert.Equal(t, baseline.MovementCounter+delta.MovementCounter, res.Snapshot.MovementCounter)
	assert.Equal(t, ScenarioComputeFresh, res.Scenario)
	assert.Equal(t, ActionCreated, res.Action)
}

func TestBrokerRealizedDeltaApplied(t *testing.T) {
	baseline := &models.BrokerFinancialSnapshot{
		BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(1),
		FinancialTotals: models.FinancialTotals{RealizedGains: 40},
	}
	cell := &BrokerCell{
		AccountID: "acct-1", CurrencyID: "USD", Date: day(2),
		Movements:     &DayMovements{Day: day(2), Cash: []*models.CashMovement{cashMovement(models.CashDeposit, 1, day(2))}},
		Baseline:      baseline,
		RealizedDelta: 60,
	}
	res, err := CalculateBrokerSnapshot(cell)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Snapshot.RealizedGains)
}

func TestBrokerScenarioActions(t *testing.T) {
	movements := &DayMovements{Day: day(5), Cash: []*models.CashMovement{cashMovement(models.CashDeposit, 10, day(5))}}
	baseline := &models.BrokerFinancialSnapshot{
		BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(1),
		FinancialTotals: models.FinancialTotals{Deposited: 100},
	}
	existing := &models.BrokerFinancialSnapshot{
		ID: "row-1", BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(5),
		FinancialTotals: models.FinancialTotals{Deposited: 999},
	}

	tests := []struct {
		name     string
		cell     BrokerCell
		scenario Scenario
		action   Action
		hasWrite bool
		keepID   string
	}{
		{"compute fresh", BrokerCell{Movements: movements, Baseline: baseline}, ScenarioComputeFresh, ActionCreated, true, ""},
		{"compute first", BrokerCell{Movements: movements}, ScenarioComputeFirst, ActionCreated, true, ""},
		{"recompute existing", BrokerCell{Movements: movements, Baseline: baseline, Existing: existing}, ScenarioRecomputeExisting, ActionUpdated, true, "row-1"},
		{"extend existing", BrokerCell{Movements: movements, Existing: existing}, ScenarioExtendExisting, ActionUpdated, true, "row-1"},
		{"carry forward", BrokerCell{Baseline: baseline}, ScenarioCarryForward, ActionCreated, true, ""},
		{"skip", BrokerCell{}, ScenarioSkip, ActionSkipped, false, ""},
		{"repair drift", BrokerCell{Baseline: baseline, Existing: existing}, ScenarioRepairDrift, ActionRepaired, true, "row-1"},
		{"reset existing", BrokerCell{Existing: existing}, ScenarioResetExisting, ActionRepaired, true, "row-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := tt.cell
			cell.AccountID = "acct-1"
			cell.CurrencyID = "USD"
			cell.Date = day(5)

			res, err := CalculateBrokerSnapshot(&cell)
			require.NoError(t, err)
			assert.Equal(t, tt.scenario, res.Scenario)
			assert.Equal(t, tt.action, res.Action)
			if tt.hasWrite {
				require.NotNil(t, res.Snapshot)
				if tt.keepID != "" {
					assert.Equal(t, tt.keepID, res.Snapshot.ID)
				} else {
					assert.NotEmpty(t, res.Snapshot.ID)
				}
			} else {
				assert.Nil(t, res.Snapshot)
			}
		})
	}
}

func TestBrokerExtendRebuildsFromZero(t *testing.T) {
	// First-day row from an earlier run holds one imported deposit; a
	// later partial import adds a second deposit to the same day, so
	// the bucket now carries both. The row must be rebuilt from the
	// full bucket, not extended by it.
	existing := &models.BrokerFinancialSnapshot{
		ID: "row-1", BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(1),
		FinancialTotals: models.FinancialTotals{Deposited: 100, MovementCounter: 1},
	}
	cell := &BrokerCell{
		AccountID: "acct-1", CurrencyID: "USD", Date: day(1),
		Movements: &DayMovements{Day: day(1), Cash: []*models.CashMovement{
			cashMovement(models.CashDeposit, 100, day(1)),
			cashMovement(models.CashDeposit, 50, day(1)),
		}},
		Existing: existing,
	}

	res, err := CalculateBrokerSnapshot(cell)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, ScenarioExtendExisting, res.Scenario)
	assert.Equal(t, "row-1", res.Snapshot.ID)
	assert.Equal(t, 150.0, res.Snapshot.Deposited)
	assert.Equal(t, 2, res.Snapshot.MovementCounter)
}

func TestBrokerRepairDriftShortCircuit(t *testing.T) {
	totals := models.FinancialTotals{Deposited: 100, Invested: 50}
	baseline := &models.BrokerFinancialSnapshot{
		BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(1), FinancialTotals: totals,
	}
	existing := &models.BrokerFinancialSnapshot{
		ID: "row-1", BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(2), FinancialTotals: totals,
	}

	cell := &BrokerCell{AccountID: "acct-1", CurrencyID: "USD", Date: day(2), Baseline: baseline, Existing: existing}
	res, err := CalculateBrokerSnapshot(cell)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Nil(t, res.Snapshot)

	cell.Force = true
	res, err = CalculateBrokerSnapshot(cell)
	require.NoError(t, err)
	assert.Equal(t, ActionRepaired, res.Action)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "row-1", res.Snapshot.ID)
}

func TestBrokerResetZerosTotals(t *testing.T) {
	existing := &models.BrokerFinancialSnapshot{
		ID: "row-1", BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(2),
		FinancialTotals: models.FinancialTotals{Deposited: 999, Invested: 55},
		OpenTrades:      true,
	}
	res, err := CalculateBrokerSnapshot(&BrokerCell{AccountID: "acct-1", CurrencyID: "USD", Date: day(2), Existing: existing})
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "row-1", res.Snapshot.ID)
	assert.Equal(t, models.FinancialTotals{}, res.Snapshot.FinancialTotals)
	assert.False(t, res.Snapshot.OpenTrades)
}

func TestBrokerIdentityChecks(t *testing.T) {
	existing := &models.BrokerFinancialSnapshot{BrokerAccountID: "acct-1", CurrencyID: "EUR", Date: day(2)}
	_, err := CalculateBrokerSnapshot(&BrokerCell{AccountID: "acct-1", CurrencyID: "USD", Date: day(2), Existing: existing})
	var consistency *ConsistencyError
	require.Error(t, err)
	assert.True(t, errors.As(err, &consistency))

	// A baseline dated on or after the cell date is a chain violation.
	baseline := &models.BrokerFinancialSnapshot{BrokerAccountID: "acct-1", CurrencyID: "USD", Date: day(2)}
	_, err = CalculateBrokerSnapshot(&BrokerCell{AccountID: "acct-1", CurrencyID: "USD", Date: day(2), Baseline: baseline})
	assert.Error(t, err)
}
