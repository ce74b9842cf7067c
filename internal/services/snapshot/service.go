// Package snapshot coordinates incremental point-in-time snapshot
// recomputation across broker accounts and tickers.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/interfaces"
	"github.com/finpoint/finpoint/internal/models"
)

// Compile-time interface check
var _ interfaces.SnapshotEngine = (*Service)(nil)

// Service drives the scenario-matrix calculators over a date window.
// Both processing modes share the same compute path; they differ only in
// scheduling and in when results are persisted, so a clean batch run and
// a cascade run over the same request produce identical snapshots.
type Service struct {
	storage         interfaces.StorageManager
	tracker         interfaces.LifecycleTracker
	loader          *engine.Loader
	logger          *common.Logger
	maxConcurrency  int
	defaultCurrency string
}

// NewService creates the snapshot coordinator. defaultCurrency is the
// configured fallback used when the preference store has no value; it
// may be empty.
func NewService(storage interfaces.StorageManager, tracker interfaces.LifecycleTracker, logger *common.Logger, maxConcurrency int, defaultCurrency string) *Service {
	if maxConcurrency < 1 {
		maxConcurrency = 4
	}
	return &Service{
		storage:         storage,
		tracker:         tracker,
		loader:          engine.NewLoader(storage, logger),
		logger:          logger,
		maxConcurrency:  maxConcurrency,
		defaultCurrency: defaultCurrency,
	}
}

// ProcessBatch recomputes every cell covered by the request. Batch mode
// falls back to cascade when the batch run reports any error, so a
// partial batch failure never leaves a half-written window behind.
func (s *Service) ProcessBatch(ctx context.Context, req models.BatchRequest) (*models.ProcessingMetrics, error) {
	started := time.Now()
	if req.To.IsZero() {
		req.To = time.Now().UTC()
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ModeCascade
	}

	s.logger.Info().
		Str("mode", string(mode)).
		Int("accounts", len(req.BrokerAccountIDs)).
		Int("tickers", len(req.TickerIDs)).
		Str("from", models.DayKey(req.From)).
		Str("to", models.DayKey(req.To)).
		Bool("force", req.ForceRecalculate).
		Msg("Processing snapshot batch")

	var metrics *models.ProcessingMetrics
	var err error
	switch mode {
	case models.ModeBatch:
		metrics, err = s.runBatch(ctx, req)
		if err != nil || metrics.HasErrors() {
			s.logger.Warn().
				Int("errors", len(metrics.Errors)).
				Err(err).
				Msg("Batch mode reported errors, falling back to cascade")
			metrics, err = s.runCascade(ctx, req)
		}
	default:
		metrics, err = s.runCascade(ctx, req)
	}

	if metrics != nil {
		metrics.Duration = time.Since(started)
		s.logger.Info().
			Int("dates", metrics.DatesProcessed).
			Int("created", metrics.SnapshotsCreated).
			Int("updated", metrics.SnapshotsUpdated).
			Int("repaired", metrics.SnapshotsRepaired).
			Int("skipped", metrics.Skipped).
			Dur("duration", metrics.Duration).
			Msg("Snapshot batch complete")
	}
	return metrics, err
}

// HandleNewEntity seeds a zero snapshot for a freshly created broker
// account in the user's default currency. The stored preference wins;
// the configured default covers accounts created before a preference
// exists. With neither, the snapshot has no identity and the call fails.
func (s *Service) HandleNewEntity(ctx context.Context, brokerAccountID string) error {
	currencyID, err := s.storage.PreferenceStore().DefaultCurrency(ctx)
	if err != nil {
		if !engine.IsNotFound(err) || s.defaultCurrency == "" {
			return fmt.Errorf("cannot resolve default currency for new entity %s: %w", brokerAccountID, err)
		}
		currencyID = s.defaultCurrency
	}

	today := models.DayOf(time.Now().UTC())
	snap := &models.BrokerFinancialSnapshot{
		ID:              uuid.NewString(),
		BrokerAccountID: brokerAccountID,
		CurrencyID:      currencyID,
		Date:            today,
	}

	existing, err := s.storage.SnapshotStore().GetByNaturalKey(ctx, brokerAccountID, currencyID, today)
	if err != nil && !engine.IsNotFound(err) {
		return fmt.Errorf("failed to check existing snapshot for %s: %w", brokerAccountID, err)
	}
	if existing != nil {
		snap.ID = existing.ID
		snap.CreatedAt = existing.CreatedAt
	}

	if err := s.storage.SnapshotStore().Save(ctx, snap); err != nil {
		return &engine.PersistenceError{Op: "seed snapshot", Err: err}
	}

	s.logger.Info().
		Str("account", brokerAccountID).
		Str("currency", currencyID).
		Msg("Seeded snapshot for new entity")
	return nil
}

// HandleEntityChanged recomputes everything from the changed date
// forward. Back-dated corrections invalidate every later cumulative
// snapshot, so the window always extends to today.
func (s *Service) HandleEntityChanged(ctx context.Context, brokerAccountID string, date time.Time) error {
	req := models.BatchRequest{
		BrokerAccountIDs: []string{brokerAccountID},
		From:             models.DayOf(date),
		To:               models.DayOf(time.Now().UTC()),
		Mode:             models.ModeCascade,
	}
	metrics, err := s.ProcessBatch(ctx, req)
	if err != nil {
		return err
	}
	if metrics.HasErrors() {
		return errors.Join(metrics.Errors...)
	}
	return nil
}

// tickerOutcome is one computed (ticker, currency, date) cell. row is
// the effective snapshot for the day: the freshly computed one, or the
// untouched existing row when the calculator confirmed it is already
// correct. snap is non-nil only when a write is needed.
type tickerOutcome struct {
	prev   *models.TickerCurrencySnapshot
	snap   *models.TickerCurrencySnapshot
	row    *models.TickerCurrencySnapshot
	action engine.Action
}

// brokerOutcome is one computed (account, currency, date) cell.
type brokerOutcome struct {
	snap   *models.BrokerFinancialSnapshot
	action engine.Action
}

// tickerTimeline is the per (ticker, currency) snapshot chain computed
// for the window, used by the account pass to value open positions.
type tickerTimeline struct {
	baseline *models.TickerCurrencySnapshot
	rows     []*models.TickerCurrencySnapshot
}

// latestAsOf returns the effective snapshot on or before day: the latest
// window row not after it, else the pre-window baseline.
func (t *tickerTimeline) latestAsOf(day time.Time) *models.TickerCurrencySnapshot {
	latest := t.baseline
	target := models.DayOf(day)
	for _, r := range t.rows {
		if models.DayOf(r.Date).After(target) {
			break
		}
		latest = r
	}
	return latest
}

// runCascade computes and persists sequentially, in chronological order
// per cell, tickers before accounts. The first error aborts the run.
func (s *Service) runCascade(ctx context.Context, req models.BatchRequest) (*models.ProcessingMetrics, error) {
	metrics := &models.ProcessingMetrics{}

	data, err := s.loader.Load(ctx, req)
	if err != nil {
		return metrics, err
	}
	requested := stringSet(req.BrokerAccountIDs)
	timelines := make(map[string]map[string]*tickerTimeline)

	for _, tickerID := range sortedKeys(data.Tickers) {
		tb := data.Tickers[tickerID]
		for _, currencyID := range sortedKeys(tb.Currencies) {
			outcomes, calcErr := s.computeTickerSeries(tb, currencyID, data.From, data.To, req.ForceRecalculate)
			accounts := lifecycleAccounts(tb, currencyID, requested)
			for _, out := range outcomes {
				recordAction(metrics, out.action)
				if err := s.persistTickerOutcome(ctx, out, accounts); err != nil {
					return metrics, err
				}
			}
			if calcErr != nil {
				return metrics, calcErr
			}
			storeTimeline(timelines, tickerID, currencyID, tb.Baselines[currencyID], outcomes)
		}
	}

	for _, accountID := range sortedKeys(data.Accounts) {
		ab := data.Accounts[accountID]
		for _, currencyID := range sortedKeys(ab.Currencies) {
			outcomes, calcErr := s.computeAccountSeries(ab, currencyID, data, timelines, req.ForceRecalculate)
			for _, out := range outcomes {
				recordAction(metrics, out.action)
				if out.snap == nil {
					continue
				}
				if err := s.storage.SnapshotStore().Save(ctx, out.snap); err != nil {
					return metrics, &engine.PersistenceError{Op: "save broker snapshot", Err: err}
				}
			}
			if calcErr != nil {
				return metrics, calcErr
			}
		}
	}

	return metrics, nil
}

// runBatch computes every cell in memory first, ticker cells in
// parallel then account cells in parallel, and persists only when the
// whole compute pass was clean. Dates within one cell stay sequential;
// the chain dependency runs through them.
func (s *Service) runBatch(ctx context.Context, req models.BatchRequest) (*models.ProcessingMetrics, error) {
	metrics := &models.ProcessingMetrics{}

	data, err := s.loader.Load(ctx, req)
	if err != nil {
		return metrics, err
	}
	requested := stringSet(req.BrokerAccountIDs)

	type tickerPending struct {
		outcomes []*tickerOutcome
		accounts []string
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	timelines := make(map[string]map[string]*tickerTimeline)
	var pendingTickers []tickerPending

	for _, tickerID := range sortedKeys(data.Tickers) {
		tb := data.Tickers[tickerID]
		for _, currencyID := range sortedKeys(tb.Currencies) {
			wg.Add(1)
			sem <- struct{}{}
			go func(tickerID, currencyID string, tb *engine.TickerBatch) {
				defer wg.Done()
				defer func() { <-sem }()

				outcomes, err := s.computeTickerSeries(tb, currencyID, data.From, data.To, req.ForceRecalculate)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				for _, out := range outcomes {
					recordAction(metrics, out.action)
				}
				storeTimeline(timelines, tickerID, currencyID, tb.Baselines[currencyID], outcomes)
				pendingTickers = append(pendingTickers, tickerPending{
					outcomes: outcomes,
					accounts: lifecycleAccounts(tb, currencyID, requested),
				})
			}(tickerID, currencyID, tb)
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		metrics.Errors = append(metrics.Errors, errs...)
		return metrics, nil
	}

	var pendingAccounts []*brokerOutcome
	for _, accountID := range sortedKeys(data.Accounts) {
		ab := data.Accounts[accountID]
		for _, currencyID := range sortedKeys(ab.Currencies) {
			wg.Add(1)
			sem <- struct{}{}
			go func(currencyID string, ab *engine.AccountBatch) {
				defer wg.Done()
				defer func() { <-sem }()

				outcomes, err := s.computeAccountSeries(ab, currencyID, data, timelines, req.ForceRecalculate)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				for _, out := range outcomes {
					recordAction(metrics, out.action)
				}
				pendingAccounts = append(pendingAccounts, outcomes...)
			}(currencyID, ab)
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		metrics.Errors = append(metrics.Errors, errs...)
		return metrics, nil
	}

	// Persist pass. Every id was resolved from the pre-loaded existing
	// rows, so upserts here never create natural-key duplicates.
	for _, p := range pendingTickers {
		for _, out := range p.outcomes {
			if err := s.persistTickerOutcome(ctx, out, p.accounts); err != nil {
				metrics.Errors = append(metrics.Errors, err)
			}
		}
	}
	for _, out := range pendingAccounts {
		if out.snap == nil {
			continue
		}
		if err := s.storage.SnapshotStore().Save(ctx, out.snap); err != nil {
			metrics.Errors = append(metrics.Errors, &engine.PersistenceError{Op: "save broker snapshot", Err: err})
		}
	}

	return metrics, nil
}

// computeTickerSeries runs one (ticker, currency) through every window
// day in chronological order, each computed snapshot feeding the next
// day's baseline.
func (s *Service) computeTickerSeries(tb *engine.TickerBatch, currencyID string, from, to time.Time, force bool) ([]*tickerOutcome, error) {
	movs := tb.Currencies[currencyID]
	existing := tb.Existing[currencyID]
	days := tickerWindowDays(tb, from, to)

	baseline := tb.Baselines[currencyID]
	matcher := tb.Matchers[currencyID]
	prices := tb.Prices[currencyID]

	var outcomes []*tickerOutcome
	for _, day := range days {
		var bucket *engine.DayMovements
		if movs != nil {
			bucket = movs.DayOn(day)
		}
		var price float64
		if prices != nil {
			price = prices.OnOrBefore(day)
		}

		cell := &engine.TickerCell{
			TickerID:   tb.TickerID,
			CurrencyID: currencyID,
			Date:       day,
			Movements:  bucket,
			Baseline:   baseline,
			Existing:   existing[models.DayKey(day)],
			Matcher:    matcher,
			Price:      price,
			Force:      force,
		}

		res, err := engine.CalculateTickerSnapshot(cell)
		if err != nil {
			return outcomes, &engine.CalculationError{
				Cell: fmt.Sprintf("ticker %s/%s@%s", tb.TickerID, currencyID, models.DayKey(day)),
				Err:  err,
			}
		}

		out := &tickerOutcome{prev: baseline, action: res.Action}
		switch {
		case res.Snapshot != nil:
			out.snap = res.Snapshot
			out.row = res.Snapshot
			baseline = res.Snapshot
		case res.Action == engine.ActionNone && cell.Existing != nil:
			out.row = cell.Existing
			baseline = cell.Existing
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// computeAccountSeries runs one (account, currency) through every window
// day. Realized deltas come from an account-scoped option matcher;
// unrealized value and the open flag come from the ticker timelines
// computed in the ticker pass.
func (s *Service) computeAccountSeries(ab *engine.AccountBatch, currencyID string, data *engine.BatchData, timelines map[string]map[string]*tickerTimeline, force bool) ([]*brokerOutcome, error) {
	movs := ab.Currencies[currencyID]
	existing := ab.Existing[currencyID]
	days := accountWindowDays(ab, data.From, data.To)

	baseline := ab.Baselines[currencyID]
	matcher := accountMatcher(ab.AccountID, currencyID, data)

	var contribs []*tickerTimeline
	if movs != nil {
		for _, tickerID := range movs.Tickers {
			if byCurrency, ok := timelines[tickerID]; ok {
				if tl, ok := byCurrency[currencyID]; ok {
					contribs = append(contribs, tl)
				}
			}
		}
	}

	var chainDate time.Time
	if baseline != nil {
		chainDate = baseline.Date
	}

	var outcomes []*brokerOutcome
	for _, day := range days {
		var bucket *engine.DayMovements
		if movs != nil {
			bucket = movs.DayOn(day)
		}
		existingRow := existing[models.DayKey(day)]

		var realized float64
		if matcher != nil {
			realized = matcher.RealizedBetween(chainDate, day)
		}
		unrealized, known := accountUnrealized(baseline, contribs, day)

		cell := &engine.BrokerCell{
			AccountID:       ab.AccountID,
			CurrencyID:      currencyID,
			Date:            day,
			Movements:       bucket,
			Baseline:        baseline,
			Existing:        existingRow,
			RealizedDelta:   realized,
			Unrealized:      unrealized,
			UnrealizedKnown: known,
			OpenTrades:      accountOpenTrades(contribs, matcher, day),
			Force:           force,
		}

		res, err := engine.CalculateBrokerSnapshot(cell)
		if err != nil {
			return outcomes, &engine.CalculationError{
				Cell: fmt.Sprintf("account %s/%s@%s", ab.AccountID, currencyID, models.DayKey(day)),
				Err:  err,
			}
		}

		out := &brokerOutcome{action: res.Action}
		switch {
		case res.Snapshot != nil:
			out.snap = res.Snapshot
			baseline = res.Snapshot
			chainDate = day
		case res.Action == engine.ActionNone && existingRow != nil:
			baseline = existingRow
			chainDate = day
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// persistTickerOutcome applies the lifecycle transition before saving,
// so an operation is never observed lagging behind its snapshot.
func (s *Service) persistTickerOutcome(ctx context.Context, out *tickerOutcome, accounts []string) error {
	if out.snap == nil {
		return nil
	}
	for _, accountID := range accounts {
		if err := s.tracker.Apply(ctx, out.prev, out.snap, accountID); err != nil {
			return fmt.Errorf("lifecycle tracking failed for %s/%s: %w", out.snap.TickerID, accountID, err)
		}
	}
	if err := s.storage.TickerSnapshotStore().Save(ctx, out.snap); err != nil {
		return &engine.PersistenceError{Op: "save ticker snapshot", Err: err}
	}
	return nil
}

// accountUnrealized sums the account baseline with each contributing
// ticker's unrealized movement since its own baseline. known is false
// when no ticker data exists for the currency; the calculator then
// carries the baseline value forward.
func accountUnrealized(baseline *models.BrokerFinancialSnapshot, contribs []*tickerTimeline, day time.Time) (float64, bool) {
	if len(contribs) == 0 {
		return 0, false
	}
	total := 0.0
	if baseline != nil {
		total = baseline.UnrealizedGains
	}
	for _, tl := range contribs {
		latest := tl.latestAsOf(day)
		if latest == nil {
			continue
		}
		tickerBase := 0.0
		if tl.baseline != nil {
			tickerBase = tl.baseline.UnrealizedGains
		}
		total += latest.UnrealizedGains - tickerBase
	}
	return total, true
}

// accountOpenTrades reports whether any position is open at the account
// level as of day.
func accountOpenTrades(contribs []*tickerTimeline, matcher *engine.OptionMatcher, day time.Time) bool {
	for _, tl := range contribs {
		if latest := tl.latestAsOf(day); latest != nil && latest.OpenTrades {
			return true
		}
	}
	return matcher != nil && matcher.AnyOpenAsOf(day)
}

// accountMatcher builds the account-scoped option matcher for one
// currency from the full trade histories pre-loaded per ticker.
func accountMatcher(accountID, currencyID string, data *engine.BatchData) *engine.OptionMatcher {
	var trades []*models.OptionTrade
	for _, tb := range data.Tickers {
		for _, o := range tb.History[currencyID] {
			if o.BrokerAccountID == accountID {
				trades = append(trades, o)
			}
		}
	}
	if len(trades) == 0 {
		return nil
	}
	return engine.NewOptionMatcher(trades)
}

// lifecycleAccounts lists the accounts whose positions a ticker snapshot
// transition can affect: every account with an equity or option trade on
// the (ticker, currency), narrowed to the requested accounts.
func lifecycleAccounts(tb *engine.TickerBatch, currencyID string, requested map[string]bool) []string {
	seen := make(map[string]bool)
	for _, o := range tb.History[currencyID] {
		seen[o.BrokerAccountID] = true
	}
	if movs := tb.Currencies[currencyID]; movs != nil {
		for _, bucket := range movs.Days {
			for _, t := range bucket.EquityTrades {
				seen[t.BrokerAccountID] = true
			}
		}
	}

	var out []string
	for accountID := range seen {
		if len(requested) > 0 && !requested[accountID] {
			continue
		}
		out = append(out, accountID)
	}
	sort.Strings(out)
	return out
}

// storeTimeline indexes one computed series for the account pass.
func storeTimeline(timelines map[string]map[string]*tickerTimeline, tickerID, currencyID string, baseline *models.TickerCurrencySnapshot, outcomes []*tickerOutcome) {
	tl := &tickerTimeline{baseline: baseline}
	for _, out := range outcomes {
		if out.row != nil {
			tl.rows = append(tl.rows, out.row)
		}
	}
	byCurrency, ok := timelines[tickerID]
	if !ok {
		byCurrency = make(map[string]*tickerTimeline)
		timelines[tickerID] = byCurrency
	}
	byCurrency[currencyID] = tl
}

// The window date set is shared across every currency of an entity:
// the union of movement days and existing snapshot days, clipped to
// [from, to]. A day where only one currency moved still yields a cell
// for the others, so their state as of that day materializes as a
// carried-forward snapshot instead of a gap.

func addWindowDay(set map[string]time.Time, day, from, to time.Time) {
	day = models.DayOf(day)
	if day.Before(from) || day.After(to) {
		return
	}
	set[models.DayKey(day)] = day
}

func sortedWindowDays(set map[string]time.Time) []time.Time {
	days := make([]time.Time, 0, len(set))
	for _, day := range set {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func tickerWindowDays(tb *engine.TickerBatch, from, to time.Time) []time.Time {
	set := make(map[string]time.Time)
	for _, movs := range tb.Currencies {
		for _, bucket := range movs.Days {
			addWindowDay(set, bucket.Day, from, to)
		}
	}
	for _, existing := range tb.Existing {
		for _, snap := range existing {
			addWindowDay(set, snap.Date, from, to)
		}
	}
	return sortedWindowDays(set)
}

func accountWindowDays(ab *engine.AccountBatch, from, to time.Time) []time.Time {
	set := make(map[string]time.Time)
	for _, movs := range ab.Currencies {
		for _, bucket := range movs.Days {
			addWindowDay(set, bucket.Day, from, to)
		}
	}
	for _, existing := range ab.Existing {
		for _, snap := range existing {
			addWindowDay(set, snap.Date, from, to)
		}
	}
	return sortedWindowDays(set)
}

func recordAction(metrics *models.ProcessingMetrics, action engine.Action) {
	metrics.DatesProcessed++
	switch action {
	case engine.ActionCreated:
		metrics.SnapshotsCreated++
	case engine.ActionUpdated:
		metrics.SnapshotsUpdated++
	case engine.ActionRepaired:
		metrics.SnapshotsRepaired++
	case engine.ActionSkipped:
		metrics.Skipped++
	}
}

func stringSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
