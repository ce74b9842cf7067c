package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/finpoint/finpoint/internal/models"
)

func day(n int) time.Time {
	return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC)
}

func optionTrade(id string, code models.OptionCode, contract string, ts time.Time, netPremium float64) *models.OptionTrade {
	return &models.OptionTrade{
		ID:              id,
		BrokerAccountID: "acct-1",
		TickerID:        "AAPL",
		CurrencyID:      "USD",
		Timestamp:       ts,
		Code:            code,
		Contract:        contract,
		Quantity:        1,
		NetPremium:      netPremium,
	}
}

func TestOptionMatcherTemporalOpen(t *testing.T) {
	m := NewOptionMatcher([]*models.OptionTrade{
		optionTrade("o1", models.SellToOpen, "AAPL240621C00100000", day(1), 100),
		optionTrade("c1", models.BuyToClose, "AAPL240621C00100000", day(10), -40),
	})

	assert.False(t, m.AnyOpenAsOf(day(1).AddDate(0, 0, -1)))
	for n := 1; n <= 9; n++ {
		assert.True(t, m.AnyOpenAsOf(day(n)), "day %d should be open", n)
	}
	assert.False(t, m.AnyOpenAsOf(day(10)))
	assert.False(t, m.AnyOpenAsOf(day(11)))
}

func TestOptionMatcherRealizedDelta(t *testing.T) {
	m := NewOptionMatcher([]*models.OptionTrade{
		optionTrade("o1", models.SellToOpen, "AAPL240621C00100000", day(2), 100),
		optionTrade("c1", models.BuyToClose, "AAPL240621C00100000", day(4), -40),
	})

	assert.Equal(t, 0.0, m.RealizedUpTo(day(3)))
	assert.Equal(t, 60.0, m.RealizedUpTo(day(4)))
	assert.Equal(t, 60.0, m.RealizedUpTo(day(9)))

	// The delta form never double counts a closed pair.
	assert.Equal(t, 60.0, m.RealizedBetween(day(3), day(4)))
	assert.Equal(t, 0.0, m.RealizedBetween(day(4), day(5)))
	assert.Equal(t, 60.0, m.RealizedBetween(time.Time{}, day(30)))
}

func TestOptionMatcherTwoRoundTripsSameCloseDay(t *testing.T) {
	// Two round-trips close on the same day: +100 on X (150 - 50) and
	// -40 on Y (60 - 100). The day-5 delta is their sum, 60, not 100
	// from one pair alone and not 160 from ignoring the loss.
	m := NewOptionMatcher([]*models.OptionTrade{
		optionTrade("o1", models.SellToOpen, "X", day(1), 150),
		optionTrade("o2", models.SellToOpen, "Y", day(3), 60),
		optionTrade("c1", models.BuyToClose, "X", day(5), -50),
		optionTrade("c2", models.BuyToClose, "Y", day(5), -100),
	})

	assert.Equal(t, 0.0, m.RealizedUpTo(day(4)))
	assert.Equal(t, 60.0, m.RealizedUpTo(day(5)))
	assert.Equal(t, 60.0, m.RealizedBetween(day(4), day(5)))
}

func TestOptionMatcherClosedWithPrecedence(t *testing.T) {
	openA := optionTrade("a", models.SellToOpen, "X", day(1), 50)
	openB := optionTrade("b", models.SellToOpen, "X", day(2), 70)
	closeC := optionTrade("c", models.BuyToClose, "X", day(3), -10)
	openA.ClosedWith = ""
	openB.ClosedWith = "c"

	m := NewOptionMatcher([]*models.OptionTrade{openA, openB, closeC})

	// The back-reference claims B even though FIFO would pick A.
	open := m.OpenAsOf(day(5))
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0].ID)
	assert.Equal(t, 60.0, m.RealizedUpTo(day(3)))
}

func TestOptionMatcherFIFO(t *testing.T) {
	m := NewOptionMatcher([]*models.OptionTrade{
		optionTrade("o1", models.SellToOpen, "X", day(1), 100),
		optionTrade("o2", models.SellToOpen, "X", day(2), 200),
		optionTrade("c1", models.BuyToClose, "X", day(3), -30),
	})

	// The earliest open is consumed first.
	open := m.OpenAsOf(day(5))
	require.Len(t, open, 1)
	assert.Equal(t, "o2", open[0].ID)
	assert.Equal(t, 70.0, m.RealizedUpTo(day(3)))
}

func TestOptionMatcherOrphanClose(t *testing.T) {
	m := NewOptionMatcher([]*models.OptionTrade{
		optionTrade("c1", models.BuyToClose, "X", day(3), -30),
	})

	assert.False(t, m.AnyOpenAsOf(day(5)))
	assert.Equal(t, 0.0, m.RealizedUpTo(day(5)))
}

func TestOptionMatcherOpeningsOn(t *testing.T) {
	m := NewOptionMatcher([]*models.OptionTrade{
		optionTrade("o1", models.SellToOpen, "X", day(1), 100),
		optionTrade("o2", models.BuyToOpen, "Y", day(1), -80),
		optionTrade("o3", models.SellToOpen, "X", day(2), 50),
	})

	assert.Len(t, m.OpeningsOn(day(1)), 2)
	assert.Len(t, m.OpeningsOn(day(2)), 1)
	assert.Empty(t, m.OpeningsOn(day(3)))
}
