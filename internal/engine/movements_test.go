package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/finpoint/finpoint/internal/models"
)

func TestGroupMovementsPartitionsByCurrencyAndDay(t *testing.T) {
	set := &models.MovementSet{
		Cash: []*models.CashMovement{
			cashMovement(models.CashDeposit, 100, day(1)),
			{ID: "cm-eur", BrokerAccountID: "acct-1", CurrencyID: "EUR", Timestamp: day(1), Type: models.CashDeposit, Amount: 50},
		},
		EquityTrades: []*models.EquityTrade{
			equityTrade(models.SideBuy, 10, 100, 0, 0, day(1)),
			equityTrade(models.SideSell, 4, 110, 0, 0, day(2)),
		},
	}

	groups, err := GroupMovements("acct-1", set)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	usd := groups["USD"]
	require.NotNil(t, usd)
	assert.Len(t, usd.Days, 2)
	assert.Equal(t, 2, usd.DayOn(day(1)).Count())
	assert.Equal(t, 1, usd.DayOn(day(2)).Count())
	assert.Nil(t, usd.DayOn(day(3)))
	assert.Equal(t, []string{"AAPL"}, usd.Tickers)
	assert.Equal(t, 6.0, usd.CurrentPositions["AAPL"])
	assert.True(t, usd.HasOpenPositions)

	eur := groups["EUR"]
	require.NotNil(t, eur)
	assert.Len(t, eur.Days, 1)
	assert.False(t, eur.HasOpenPositions)
}

func TestGroupMovementsSortedDays(t *testing.T) {
	set := &models.MovementSet{
		Cash: []*models.CashMovement{
			cashMovement(models.CashDeposit, 1, day(5)),
			cashMovement(models.CashDeposit, 1, day(1)),
			cashMovement(models.CashDeposit, 1, day(3)),
		},
	}
	groups, err := GroupMovements("acct-1", set)
	require.NoError(t, err)

	days := groups["USD"].SortedDays()
	require.Len(t, days, 3)
	assert.True(t, days[0].Before(days[1]) && days[1].Before(days[2]))
}

func TestGroupMovementsRejectsZeroTimestamp(t *testing.T) {
	set := &models.MovementSet{
		Cash: []*models.CashMovement{
			{ID: "bad", BrokerAccountID: "acct-1", CurrencyID: "USD", Type: models.CashDeposit, Amount: 1},
		},
	}
	_, err := GroupMovements("acct-1", set)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMovement)
}

func TestFilterTickerExcludesCash(t *testing.T) {
	bucket := fullDayMovements(day(1))
	filtered := bucket.FilterTicker("AAPL")

	assert.Empty(t, filtered.Cash)
	assert.Len(t, filtered.EquityTrades, 1)
	assert.Len(t, filtered.Dividends, 1)
	assert.Len(t, filtered.DividendTaxes, 1)
	assert.Len(t, filtered.OptionTrades, 1)

	other := bucket.FilterTicker("MSFT")
	assert.Zero(t, other.Count())
}

func TestDayNormalization(t *testing.T) {
	ts := time.Date(2024, 3, 7, 15, 42, 9, 12, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), models.DayOf(ts))
	assert.Equal(t, "2024-03-07", models.DayKey(ts))
}
