package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/interfaces"
	"github.com/finpoint/finpoint/internal/models"
	"github.com/finpoint/finpoint/internal/services/lifecycle"
	"github.com/finpoint/finpoint/internal/storage/badger"
)

func day(n int) time.Time {
	return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T) (*Service, interfaces.StorageManager) {
	t.Helper()
	logger := common.NewSilentLogger()
	mgr, err := badger.NewManager(logger, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	tracker := lifecycle.NewTracker(mgr, logger)
	return NewService(mgr, tracker, logger, 4, ""), mgr
}

// seedBasic loads a small three-day history: a deposit, an equity buy,
// and a dividend, with one market price.
func seedBasic(t *testing.T, mgr interfaces.StorageManager) {
	t.Helper()
	ctx := context.Background()
	movements := mgr.MovementStore()

	require.NoError(t, movements.SaveCash(ctx, &models.CashMovement{
		ID: "c1", BrokerAccountID: "acct-1", CurrencyID: "USD",
		Timestamp: day(1), Type: models.CashDeposit, Amount: 1000,
	}))
	require.NoError(t, movements.SaveEquityTrade(ctx, &models.EquityTrade{
		ID: "t1", BrokerAccountID: "acct-1", TickerID: "AAPL", CurrencyID: "USD",
		Timestamp: day(2), Side: models.SideBuy, Quantity: 10, Price: 50, Commissions: 1,
	}))
	require.NoError(t, movements.SaveDividend(ctx, &models.Dividend{
		ID: "d1", BrokerAccountID: "acct-1", TickerID: "AAPL", CurrencyID: "USD",
		Timestamp: day(3), Amount: 20,
	}))
	require.NoError(t, mgr.PriceStore().SavePrice(ctx, &models.PricePoint{
		TickerID: "AAPL", CurrencyID: "USD", Date: day(2), Close: 55,
	}))
}

func TestCascadeComputesCumulativeSnapshots(t *testing.T) {
	svc, mgr := newTestEngine(t)
	seedBasic(t, mgr)
	ctx := context.Background()

	metrics, err := svc.ProcessBatch(ctx, models.BatchRequest{
		BrokerAccountIDs: []string{"acct-1"},
		From:             day(1),
		To:               day(3),
		Mode:             models.ModeCascade,
	})
	require.NoError(t, err)
	require.False(t, metrics.HasErrors())
	assert.Positive(t, metrics.SnapshotsCreated)

	snaps := mgr.SnapshotStore()

	d1, err := snaps.GetByNaturalKey(ctx, "acct-1", "USD", day(1))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d1.Deposited)
	assert.Equal(t, 0.0, d1.Invested)
	assert.Equal(t, 1, d1.MovementCounter)

	d2, err := snaps.GetByNaturalKey(ctx, "acct-1", "USD", day(2))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d2.Deposited)
	assert.Equal(t, 500.0, d2.Invested)
	assert.Equal(t, 1.0, d2.Commissions)
	assert.Equal(t, 50.0, d2.UnrealizedGains)
	assert.True(t, d2.OpenTrades)

	d3, err := snaps.GetByNaturalKey(ctx, "acct-1", "USD", day(3))
	require.NoError(t, err)
	assert.Equal(t, 20.0, d3.DividendsReceived)
	assert.Equal(t, 500.0, d3.Invested)

	ticker, err := mgr.TickerSnapshotStore().GetByNaturalKey(ctx, "AAPL", "USD", day(2))
	require.NoError(t, err)
	assert.Equal(t, 10.0, ticker.TotalShares)
	assert.Equal(t, 500.0, ticker.CostBasis)
	assert.Equal(t, 501.0, ticker.RealCost)
	assert.Equal(t, 55.0, ticker.LatestPrice)
	assert.Equal(t, 50.0, ticker.UnrealizedGains)
}

func TestRerunIsIdempotent(t *testing.T) {
	svc, mgr := newTestEngine(t)
	seedBasic(t, mgr)
	ctx := context.Background()

	req := models.BatchRequest{
		BrokerAccountIDs: []string{"acct-1"},
		From:             day(1),
		To:               day(3),
		Mode:             models.ModeCascade,
	}

	_, err := svc.ProcessBatch(ctx, req)
	require.NoError(t, err)

	first, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(2))
	require.NoError(t, err)

	metrics, err := svc.ProcessBatch(ctx, req)
	require.NoError(t, err)
	require.False(t, metrics.HasErrors())
	assert.Zero(t, metrics.SnapshotsCreated)

	second, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(2))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FinancialTotals, second.FinancialTotals)
}

func TestPartialSameDayImportRebuildsFirstRow(t *testing.T) {
	svc, mgr := newTestEngine(t)
	ctx := context.Background()
	movements := mgr.MovementStore()

	require.NoError(t, movements.SaveCash(ctx, &models.CashMovement{
		ID: "c1", BrokerAccountID: "acct-1", CurrencyID: "USD",
		Timestamp: day(1), Type: models.CashDeposit, Amount: 100,
	}))

	req := models.BatchRequest{
		BrokerAccountIDs: []string{"acct-1"},
		From:             day(1),
		To:               day(1),
		Mode:             models.ModeCascade,
	}
	_, err := svc.ProcessBatch(ctx, req)
	require.NoError(t, err)

	// A second import lands another deposit on the already-snapshotted
	// first day. The rerun must absorb it exactly once.
	require.NoError(t, movements.SaveCash(ctx, &models.CashMovement{
		ID: "c2", BrokerAccountID: "acct-1", CurrencyID: "USD",
		Timestamp: day(1), Type: models.CashDeposit, Amount: 50,
	}))

	metrics, err := svc.ProcessBatch(ctx, req)
	require.NoError(t, err)
	require.False(t, metrics.HasErrors())

	snap, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(1))
	require.NoError(t, err)
	assert.Equal(t, 150.0, snap.Deposited)
	assert.Equal(t, 2, snap.MovementCounter)
}

func TestCarryForwardMaterializesQuietCurrencyDays(t *testing.T) {
	svc, mgr := newTestEngine(t)
	ctx := context.Background()
	movements := mgr.MovementStore()

	require.NoError(t, movements.SaveCash(ctx, &models.CashMovement{
		ID: "c1", BrokerAccountID: "acct-1", CurrencyID: "USD",
		Timestamp: day(1), Type: models.CashDeposit, Amount: 1000,
	}))
	require.NoError(t, movements.SaveCash(ctx, &models.CashMovement{
		ID: "c2", BrokerAccountID: "acct-1", CurrencyID: "EUR",
		Timestamp: day(2), Type: models.CashDeposit, Amount: 500,
	}))

	metrics, err := svc.ProcessBatch(ctx, models.BatchRequest{
		BrokerAccountIDs: []string{"acct-1"},
		From:             day(1),
		To:               day(2),
		Mode:             models.ModeCascade,
	})
	require.NoError(t, err)
	require.False(t, metrics.HasErrors())

	// Only EUR moved on day 2, but "what was the USD state as of day 2"
	// still has a stored answer: the day-1 row carried forward.
	usd, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(2))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, usd.Deposited)

	eur, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "EUR", day(2))
	require.NoError(t, err)
	assert.Equal(t, 500.0, eur.Deposited)

	// EUR has no state before its first movement; day 1 stays empty.
	_, err = mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "EUR", day(1))
	assert.True(t, engine.IsNotFound(err))
}

func TestBatchMatchesCascade(t *testing.T) {
	ctx := context.Background()

	run := func(mode models.ProcessingMode) (interfaces.StorageManager, *models.ProcessingMetrics) {
		svc, mgr := newTestEngine(t)
		seedBasic(t, mgr)
		metrics, err := svc.ProcessBatch(ctx, models.BatchRequest{
			BrokerAccountIDs: []string{"acct-1"},
			From:             day(1),
			To:               day(3),
			Mode:             mode,
		})
		require.NoError(t, err)
		require.False(t, metrics.HasErrors())
		return mgr, metrics
	}

	cascadeMgr, cascadeMetrics := run(models.ModeCascade)
	batchMgr, batchMetrics := run(models.ModeBatch)

	assert.Equal(t, cascadeMetrics.SnapshotsCreated, batchMetrics.SnapshotsCreated)

	for n := 1; n <= 3; n++ {
		want, err := cascadeMgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(n))
		require.NoError(t, err)
		got, err := batchMgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(n))
		require.NoError(t, err)
		assert.Equal(t, want.FinancialTotals, got.FinancialTotals, "day %d", n)
		assert.Equal(t, want.OpenTrades, got.OpenTrades, "day %d", n)
	}

	wantTicker, err := cascadeMgr.TickerSnapshotStore().GetByNaturalKey(ctx, "AAPL", "USD", day(2))
	require.NoError(t, err)
	gotTicker, err := batchMgr.TickerSnapshotStore().GetByNaturalKey(ctx, "AAPL", "USD", day(2))
	require.NoError(t, err)
	assert.Equal(t, wantTicker.FinancialTotals, gotTicker.FinancialTotals)
	assert.Equal(t, wantTicker.TotalShares, gotTicker.TotalShares)
	assert.Equal(t, wantTicker.CostBasis, gotTicker.CostBasis)
}

func TestCoordinatorDrivesOperationLifecycle(t *testing.T) {
	svc, mgr := newTestEngine(t)
	ctx := context.Background()
	movements := mgr.MovementStore()

	require.NoError(t, movements.SaveOptionTrade(ctx, &models.OptionTrade{
		ID: "o1", BrokerAccountID: "acct-1", TickerID: "AAPL", CurrencyID: "USD",
		Timestamp: day(2), Code: models.SellToOpen, Contract: "AAPL240621C00100000",
		Quantity: 1, NetPremium: 100,
	}))
	require.NoError(t, movements.SaveOptionTrade(ctx, &models.OptionTrade{
		ID: "c1", BrokerAccountID: "acct-1", TickerID: "AAPL", CurrencyID: "USD",
		Timestamp: day(4), Code: models.BuyToClose, Contract: "AAPL240621C00100000",
		Quantity: 1, NetPremium: -40,
	}))

	metrics, err := svc.ProcessBatch(ctx, models.BatchRequest{
		BrokerAccountIDs: []string{"acct-1"},
		From:             day(1),
		To:               day(5),
		Mode:             models.ModeCascade,
	})
	require.NoError(t, err)
	require.False(t, metrics.HasErrors())

	// The open-close cycle left exactly one closed operation behind.
	_, err = mgr.OperationStore().GetOpen(ctx, "acct-1", "AAPL", "USD")
	assert.True(t, engine.IsNotFound(err))

	d4, err := mgr.TickerSnapshotStore().GetByNaturalKey(ctx, "AAPL", "USD", day(4))
	require.NoError(t, err)
	assert.Equal(t, 60.0, d4.RealizedGains)
	assert.False(t, d4.OpenTrades)

	b4, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(4))
	require.NoError(t, err)
	assert.Equal(t, 60.0, b4.RealizedGains)
	assert.Equal(t, 60.0, b4.OptionsIncome)
}

func TestHandleNewEntityRequiresDefaultCurrency(t *testing.T) {
	svc, mgr := newTestEngine(t)
	ctx := context.Background()

	err := svc.HandleNewEntity(ctx, "acct-new")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))

	require.NoError(t, mgr.PreferenceStore().SetDefaultCurrency(ctx, "USD"))
	require.NoError(t, svc.HandleNewEntity(ctx, "acct-new"))

	today := models.DayOf(time.Now().UTC())
	snap, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-new", "USD", today)
	require.NoError(t, err)
	assert.Equal(t, models.FinancialTotals{}, snap.FinancialTotals)
	assert.False(t, snap.OpenTrades)
}

func TestHandleNewEntityFallsBackToConfiguredCurrency(t *testing.T) {
	logger := common.NewSilentLogger()
	mgr, err := badger.NewManager(logger, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	svc := NewService(mgr, lifecycle.NewTracker(mgr, logger), logger, 4, "AUD")
	ctx := context.Background()

	// No stored preference: the configured default carries the seed.
	require.NoError(t, svc.HandleNewEntity(ctx, "acct-new"))

	today := models.DayOf(time.Now().UTC())
	snap, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-new", "AUD", today)
	require.NoError(t, err)
	assert.Equal(t, models.FinancialTotals{}, snap.FinancialTotals)

	// A stored preference wins over the configured default.
	require.NoError(t, mgr.PreferenceStore().SetDefaultCurrency(ctx, "USD"))
	require.NoError(t, svc.HandleNewEntity(ctx, "acct-other"))
	_, err = mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-other", "USD", today)
	require.NoError(t, err)
}

func TestHandleEntityChangedRecomputesForward(t *testing.T) {
	svc, mgr := newTestEngine(t)
	seedBasic(t, mgr)
	ctx := context.Background()

	require.NoError(t, svc.HandleEntityChanged(ctx, "acct-1", day(1)))

	snap, err := mgr.SnapshotStore().GetByNaturalKey(ctx, "acct-1", "USD", day(3))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, snap.Deposited)
	assert.Equal(t, 20.0, snap.DividendsReceived)
}
