package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/interfaces"
	"github.com/finpoint/finpoint/internal/models"
)

// PriceSeries resolves "price on or before date" questions against a
// pre-loaded ascending price history.
type PriceSeries struct {
	points []*models.PricePoint
}

// NewPriceSeries builds a series from unordered price points.
func NewPriceSeries(points []*models.PricePoint) *PriceSeries {
	ordered := make([]*models.PricePoint, len(points))
	copy(ordered, points)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	return &PriceSeries{points: ordered}
}

// OnOrBefore returns the closing price on the given day, or the most
// recent close before it. Returns 0 when no price exists at or before
// the day.
func (s *PriceSeries) OnOrBefore(day time.Time) float64 {
	target := models.DayOf(day)
	// First index with date after target; the answer sits just before it.
	idx := sort.Search(len(s.points), func(i int) bool {
		return models.DayOf(s.points[i].Date).After(target)
	})
	if idx == 0 {
		return 0
	}
	return s.points[idx-1].Close
}

// AccountBatch is everything pre-loaded for one broker account.
type AccountBatch struct {
	AccountID  string
	Currencies map[string]*CurrencyMovementData
	// Baselines holds, per currency, the latest snapshot strictly
	// before the window start. Missing entry = first-ever snapshot.
	Baselines map[string]*models.BrokerFinancialSnapshot
	// Existing holds per currency the already-persisted rows keyed by
	// day, from the window start onward.
	Existing map[string]map[string]*models.BrokerFinancialSnapshot
}

// TickerBatch is everything pre-loaded for one ticker.
type TickerBatch struct {
	TickerID   string
	Currencies map[string]*CurrencyMovementData
	Baselines  map[string]*models.TickerCurrencySnapshot
	Existing   map[string]map[string]*models.TickerCurrencySnapshot
	// Matchers holds the temporal option matcher per currency, built
	// from the full (unfiltered) trade history so the open-as-of test
	// works for any date in the window.
	Matchers map[string]*OptionMatcher
	// History holds the raw full option history per currency, for
	// callers that need account-scoped re-matching.
	History map[string][]*models.OptionTrade
	// Prices holds the price series per currency.
	Prices map[string]*PriceSeries
}

// BatchData is the result of one bulk load: a bounded number of store
// queries instead of one query per (date, entity) pair.
type BatchData struct {
	From     time.Time
	To       time.Time
	Accounts map[string]*AccountBatch
	Tickers  map[string]*TickerBatch
}

// Loader bulk-fetches movements, baseline snapshots, option history,
// and market prices for a batch request. Read-only; failures propagate
// to the caller untouched.
type Loader struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewLoader creates a batch loader over the given storage.
func NewLoader(storage interfaces.StorageManager, logger *common.Logger) *Loader {
	return &Loader{storage: storage, logger: logger}
}

// Load gathers everything the calculators need for the request window.
func (l *Loader) Load(ctx context.Context, req models.BatchRequest) (*BatchData, error) {
	data := &BatchData{
		From:     models.DayOf(req.From),
		To:       models.DayOf(req.To),
		Accounts: make(map[string]*AccountBatch),
		Tickers:  make(map[string]*TickerBatch),
	}

	tickerIDs := make(map[string]bool)
	for _, id := range req.TickerIDs {
		tickerIDs[id] = true
	}

	for _, accountID := range req.BrokerAccountIDs {
		batch, err := l.loadAccount(ctx, accountID, data.From)
		if err != nil {
			return nil, err
		}
		data.Accounts[accountID] = batch

		// Tickers touched by the account's movements join the batch.
		for _, currency := range batch.Currencies {
			for _, tickerID := range currency.Tickers {
				tickerIDs[tickerID] = true
			}
		}
	}

	for tickerID := range tickerIDs {
		batch, err := l.loadTicker(ctx, tickerID, data.From, data.To)
		if err != nil {
			return nil, err
		}
		data.Tickers[tickerID] = batch
	}

	l.logger.Debug().
		Int("accounts", len(data.Accounts)).
		Int("tickers", len(data.Tickers)).
		Str("from", models.DayKey(data.From)).
		Str("to", models.DayKey(data.To)).
		Msg("Batch data loaded")

	return data, nil
}

// loadAccount bulk-fetches one account's movements, baselines, and
// existing snapshots from the window start onward.
func (l *Loader) loadAccount(ctx context.Context, accountID string, from time.Time) (*AccountBatch, error) {
	movements := l.storage.MovementStore()

	cash, err := movements.GetCashFromDate(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash movements for %s: %w", accountID, err)
	}
	trades, err := movements.GetEquityTradesFromDate(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load equity trades for %s: %w", accountID, err)
	}
	dividends, err := movements.GetDividendsFromDate(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load dividends for %s: %w", accountID, err)
	}
	taxes, err := movements.GetDividendTaxesFromDate(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load dividend taxes for %s: %w", accountID, err)
	}
	options, err := movements.GetOptionTradesFromDate(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load option trades for %s: %w", accountID, err)
	}

	set := &models.MovementSet{
		Cash:          cash,
		EquityTrades:  trades,
		Dividends:     dividends,
		DividendTaxes: taxes,
		OptionTrades:  options,
	}

	currencies, err := GroupMovements(accountID, set)
	if err != nil {
		return nil, err
	}

	batch := &AccountBatch{
		AccountID:  accountID,
		Currencies: currencies,
		Baselines:  make(map[string]*models.BrokerFinancialSnapshot),
		Existing:   make(map[string]map[string]*models.BrokerFinancialSnapshot),
	}

	snapshots := l.storage.SnapshotStore()
	existing, err := snapshots.GetAllAfter(ctx, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing snapshots for %s: %w", accountID, err)
	}
	for _, snap := range existing {
		byDay, ok := batch.Existing[snap.CurrencyID]
		if !ok {
			byDay = make(map[string]*models.BrokerFinancialSnapshot)
			batch.Existing[snap.CurrencyID] = byDay
		}
		byDay[models.DayKey(snap.Date)] = snap
		if _, seen := batch.Currencies[snap.CurrencyID]; !seen {
			// Existing snapshots for currencies with no movements in
			// the window still need drift validation.
			batch.Currencies[snap.CurrencyID] = &CurrencyMovementData{
				BrokerAccountID:  accountID,
				CurrencyID:       snap.CurrencyID,
				Days:             make(map[string]*DayMovements),
				CurrentPositions: make(map[string]float64),
				CostBasisInfo:    make(map[string]float64),
			}
		}
	}

	for currencyID := range batch.Currencies {
		baseline, err := snapshots.GetLatestBefore(ctx, accountID, currencyID, from)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load baseline for %s/%s: %w", accountID, currencyID, err)
		}
		batch.Baselines[currencyID] = baseline
	}

	return batch, nil
}

// loadTicker bulk-fetches one ticker's movements, full option history,
// baselines, existing snapshots, and price series.
func (l *Loader) loadTicker(ctx context.Context, tickerID string, from, to time.Time) (*TickerBatch, error) {
	movements := l.storage.MovementStore()

	trades, err := movements.GetEquityTradesForTicker(ctx, tickerID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load equity trades for ticker %s: %w", tickerID, err)
	}
	dividends, err := movements.GetDividendsForTicker(ctx, tickerID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load dividends for ticker %s: %w", tickerID, err)
	}
	taxes, err := movements.GetDividendTaxesForTicker(ctx, tickerID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load dividend taxes for ticker %s: %w", tickerID, err)
	}

	// Option history is deliberately unfiltered by date: the temporal
	// matcher needs every open and close ever recorded to answer
	// open-as-of questions for arbitrary historical dates.
	history, err := movements.GetOptionHistory(ctx, tickerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load option history for ticker %s: %w", tickerID, err)
	}

	// Only in-window option trades contribute to day deltas.
	var windowOptions []*models.OptionTrade
	for _, o := range history {
		if !models.DayOf(o.Timestamp).Before(from) {
			windowOptions = append(windowOptions, o)
		}
	}

	set := &models.MovementSet{
		EquityTrades:  trades,
		Dividends:     dividends,
		DividendTaxes: taxes,
		OptionTrades:  windowOptions,
	}

	currencies, err := GroupMovements(tickerID, set)
	if err != nil {
		return nil, err
	}

	batch := &TickerBatch{
		TickerID:   tickerID,
		Currencies: currencies,
		Baselines:  make(map[string]*models.TickerCurrencySnapshot),
		Existing:   make(map[string]map[string]*models.TickerCurrencySnapshot),
		Matchers:   make(map[string]*OptionMatcher),
		History:    make(map[string][]*models.OptionTrade),
		Prices:     make(map[string]*PriceSeries),
	}

	for _, o := range history {
		batch.History[o.CurrencyID] = append(batch.History[o.CurrencyID], o)
	}
	for currencyID, trades := range batch.History {
		batch.Matchers[currencyID] = NewOptionMatcher(trades)
	}

	snapshots := l.storage.TickerSnapshotStore()
	existing, err := snapshots.GetAllAfter(ctx, tickerID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing ticker snapshots for %s: %w", tickerID, err)
	}
	for _, snap := range existing {
		byDay, ok := batch.Existing[snap.CurrencyID]
		if !ok {
			byDay = make(map[string]*models.TickerCurrencySnapshot)
			batch.Existing[snap.CurrencyID] = byDay
		}
		byDay[models.DayKey(snap.Date)] = snap
		if _, seen := batch.Currencies[snap.CurrencyID]; !seen {
			batch.Currencies[snap.CurrencyID] = &CurrencyMovementData{
				BrokerAccountID:  tickerID,
				CurrencyID:       snap.CurrencyID,
				Days:             make(map[string]*DayMovements),
				CurrentPositions: make(map[string]float64),
				CostBasisInfo:    make(map[string]float64),
			}
		}
	}

	prices := l.storage.PriceStore()
	for currencyID := range batch.Currencies {
		baseline, err := snapshots.GetLatestBefore(ctx, tickerID, currencyID, from)
		if err != nil && !IsNotFound(err) {
			return nil, fmt.Errorf("failed to load ticker baseline for %s/%s: %w", tickerID, currencyID, err)
		}
		if baseline != nil {
			batch.Baselines[currencyID] = baseline
		}

		// Full history up to the window end so any day resolves to the
		// most recent price on or before it.
		points, err := prices.GetRange(ctx, tickerID, currencyID, time.Time{}, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices for %s/%s: %w", tickerID, currencyID, err)
		}
		batch.Prices[currencyID] = NewPriceSeries(points)
	}

	return batch, nil
}
