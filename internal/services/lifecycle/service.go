// Package lifecycle tracks open-to-close position operations derived
// from ticker-currency snapshot transitions.
package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/interfaces"
	"github.com/finpoint/finpoint/internal/models"
)

// Compile-time interface check
var _ interfaces.LifecycleTracker = (*Tracker)(nil)

// Tracker maintains AutoImportOperation records. The transition rule is
// driven purely by comparing the previous snapshot's OpenTrades flag to
// the current one:
//
//	(none|false) -> true   CREATE
//	true         -> true   UPDATE
//	true         -> false  CLOSE
//	false        -> false  NONE
//
// Apply must run before the triggering snapshot is persisted, so
// readers never observe a closed snapshot with a still-open operation.
type Tracker struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewTracker creates a lifecycle tracker.
func NewTracker(storage interfaces.StorageManager, logger *common.Logger) *Tracker {
	return &Tracker{storage: storage, logger: logger}
}

// transition names the state change between two snapshots.
type transition int

const (
	transitionNone transition = iota
	transitionCreate
	transitionUpdate
	transitionClose
)

// classify derives the transition from the OpenTrades flags. A missing
// previous snapshot counts as false.
func classify(prev, current *models.TickerCurrencySnapshot) transition {
	prevOpen := prev != nil && prev.OpenTrades
	switch {
	case !prevOpen && current.OpenTrades:
		return transitionCreate
	case prevOpen && current.OpenTrades:
		return transitionUpdate
	case prevOpen && !current.OpenTrades:
		return transitionClose
	default:
		return transitionNone
	}
}

// Apply updates the operation state for one snapshot transition.
func (t *Tracker) Apply(ctx context.Context, prev, current *models.TickerCurrencySnapshot, accountID string) error {
	tr := classify(prev, current)
	if tr == transitionNone {
		return nil
	}

	dayCapital, err := t.dayCapital(ctx, current, accountID)
	if err != nil {
		return err
	}

	ops := t.storage.OperationStore()

	switch tr {
	case transitionCreate:
		// A stale open operation for the triple means an earlier close
		// was missed; reuse it rather than violating the one-open-
		// operation invariant.
		if existing, err := ops.GetOpen(ctx, accountID, current.TickerID, current.CurrencyID); err == nil {
			t.logger.Warn().
				Str("operation", existing.ID).
				Str("ticker", current.TickerID).
				Msg("Open operation already exists on create transition, updating instead")
			return t.update(ctx, existing, current, dayCapital, false)
		} else if !engine.IsNotFound(err) {
			return fmt.Errorf("failed to look up open operation: %w", err)
		}

		var prevRealized float64
		if prev != nil {
			prevRealized = prev.RealizedGains
		}
		realizedToday := current.RealizedGains - prevRealized

		op := &models.AutoImportOperation{
			ID:                   uuid.NewString(),
			BrokerAccountID:      accountID,
			TickerID:             current.TickerID,
			CurrencyID:           current.CurrencyID,
			IsOpen:               true,
			Realized:             realizedToday,
			RealizedToday:        realizedToday,
			CapitalDeployed:      dayCapital,
			CapitalDeployedToday: dayCapital,
			CreatedAt:            time.Now(),
		}
		op.Performance = performance(op.Realized, op.CapitalDeployed)
		if err := ops.Save(ctx, op); err != nil {
			return fmt.Errorf("failed to create operation: %w", err)
		}
		t.logger.Debug().Str("operation", op.ID).Str("ticker", current.TickerID).
			Str("currency", current.CurrencyID).Msg("Operation created")
		return nil

	case transitionUpdate, transitionClose:
		op, err := ops.GetOpen(ctx, accountID, current.TickerID, current.CurrencyID)
		if err != nil {
			if engine.IsNotFound(err) {
				// Degrade to absent: log and recreate so the history
				// stays usable after partial imports.
				t.logger.Warn().
					Str("ticker", current.TickerID).
					Str("currency", current.CurrencyID).
					Msg("Expected open operation missing, recreating")
				op = &models.AutoImportOperation{
					ID:              uuid.NewString(),
					BrokerAccountID: accountID,
					TickerID:        current.TickerID,
					CurrencyID:      current.CurrencyID,
					IsOpen:          true,
					CreatedAt:       time.Now(),
				}
			} else {
				return fmt.Errorf("failed to look up open operation: %w", err)
			}
		}
		return t.update(ctx, op, current, dayCapital, tr == transitionClose)
	}

	return nil
}

// update applies the day's deltas to an open operation, closing it when
// requested. The realized delta reconciles against the operation's own
// running total rather than the previous snapshot, so a missed
// transition self-corrects on the next one instead of losing its share.
func (t *Tracker) update(ctx context.Context, op *models.AutoImportOperation, current *models.TickerCurrencySnapshot, dayCapital float64, closing bool) error {
	realizedToday := current.RealizedGains - op.Realized
	op.CapitalDeployedToday = dayCapital
	op.CapitalDeployed += dayCapital
	op.RealizedToday = realizedToday
	op.Realized += realizedToday
	op.Performance = performance(op.Realized, op.CapitalDeployed)

	if closing {
		op.IsOpen = false
		op.UpdatedAt = time.Now()
	}

	if err := t.storage.OperationStore().Save(ctx, op); err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}

	t.logger.Debug().Str("operation", op.ID).Bool("open", op.IsOpen).
		Float64("realized", op.Realized).Msg("Operation updated")
	return nil
}

// dayCapital is the capital committed by the day's opening option
// trades: the absolute net premium of every opening trade timestamped
// on the snapshot's date.
func (t *Tracker) dayCapital(ctx context.Context, current *models.TickerCurrencySnapshot, accountID string) (float64, error) {
	history, err := t.storage.MovementStore().GetOptionHistory(ctx, current.TickerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load option history for capital attribution: %w", err)
	}

	key := models.DayKey(current.Date)
	capital := 0.0
	for _, o := range history {
		if o.BrokerAccountID != accountID || o.CurrencyID != current.CurrencyID {
			continue
		}
		if !o.Code.IsOpening() || models.DayKey(o.Timestamp) != key {
			continue
		}
		capital += math.Abs(o.NetPremium)
	}
	return capital, nil
}

// performance guards the zero-denominator case.
func performance(realized, capitalDeployed float64) float64 {
	if capitalDeployed == 0 {
		return 0
	}
	return realized / capitalDeployed * 100
}
