// Package interfaces defines service and storage contracts for Finpoint
package interfaces

import (
	"context"
	"time"

	"github.com/finpoint/finpoint/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	// Storage accessors
	SnapshotStore() SnapshotStore
	TickerSnapshotStore() TickerSnapshotStore
	MovementStore() MovementStore
	PriceStore() PriceStore
	OperationStore() OperationStore
	PreferenceStore() PreferenceStore

	// Lifecycle
	Close() error
}

// SnapshotStore persists broker-account financial snapshots.
// Save is an upsert by natural key (account, currency, date): when a row
// with the same natural key exists, its surrogate id is preserved and
// only values are replaced.
type SnapshotStore interface {
	GetByNaturalKey(ctx context.Context, accountID, currencyID string, date time.Time) (*models.BrokerFinancialSnapshot, error)
	// GetLatestBefore returns the latest snapshot strictly before date,
	// or ErrNotFound when none exists.
	GetLatestBefore(ctx context.Context, accountID, currencyID string, date time.Time) (*models.BrokerFinancialSnapshot, error)
	GetAllAfter(ctx context.Context, accountID string, date time.Time) ([]*models.BrokerFinancialSnapshot, error)
	GetRange(ctx context.Context, accountID string, from, to time.Time) ([]*models.BrokerFinancialSnapshot, error)
	Save(ctx context.Context, snapshot *models.BrokerFinancialSnapshot) error
	Delete(ctx context.Context, snapshot *models.BrokerFinancialSnapshot) error
}

// TickerSnapshotStore persists ticker-currency snapshots with the same
// upsert-by-natural-key semantics as SnapshotStore.
type TickerSnapshotStore interface {
	GetByNaturalKey(ctx context.Context, tickerID, currencyID string, date time.Time) (*models.TickerCurrencySnapshot, error)
	GetLatestBefore(ctx context.Context, tickerID, currencyID string, date time.Time) (*models.TickerCurrencySnapshot, error)
	GetAllAfter(ctx context.Context, tickerID string, date time.Time) ([]*models.TickerCurrencySnapshot, error)
	GetRange(ctx context.Context, tickerID string, from, to time.Time) ([]*models.TickerCurrencySnapshot, error)
	Save(ctx context.Context, snapshot *models.TickerCurrencySnapshot) error
	Delete(ctx context.Context, snapshot *models.TickerCurrencySnapshot) error
}

// MovementStore reads the append-only movement history. The engine only
// ever reads movements; they are created by external import.
type MovementStore interface {
	// From-date-onward queries (cascade mode)
	GetCashFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.CashMovement, error)
	GetEquityTradesFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.EquityTrade, error)
	GetDividendsFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.Dividend, error)
	GetDividendTaxesFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.DividendTax, error)
	GetOptionTradesFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.OptionTrade, error)

	// Ticker-scoped queries (ticker snapshot calculation)
	GetEquityTradesForTicker(ctx context.Context, tickerID string, date time.Time) ([]*models.EquityTrade, error)
	GetDividendsForTicker(ctx context.Context, tickerID string, date time.Time) ([]*models.Dividend, error)
	GetDividendTaxesForTicker(ctx context.Context, tickerID string, date time.Time) ([]*models.DividendTax, error)

	// GetOptionHistory returns every option trade for a ticker across
	// all currencies, regardless of date. The temporal matcher needs
	// the full history to answer open-as-of questions for arbitrary
	// dates.
	GetOptionHistory(ctx context.Context, tickerID string) ([]*models.OptionTrade, error)

	// Writers used by import tooling; the engine itself never calls these.
	SaveCash(ctx context.Context, m *models.CashMovement) error
	SaveEquityTrade(ctx context.Context, t *models.EquityTrade) error
	SaveDividend(ctx context.Context, d *models.Dividend) error
	SaveDividendTax(ctx context.Context, d *models.DividendTax) error
	SaveOptionTrade(ctx context.Context, t *models.OptionTrade) error
}

// PriceStore provides market prices with on-or-before fallback.
type PriceStore interface {
	// GetPriceOnOrBefore returns the closing price on date, or the most
	// recent price before it. Returns 0 with no error when no price has
	// ever been recorded.
	GetPriceOnOrBefore(ctx context.Context, tickerID, currencyID string, date time.Time) (float64, error)
	GetRange(ctx context.Context, tickerID, currencyID string, from, to time.Time) ([]*models.PricePoint, error)
	SavePrice(ctx context.Context, p *models.PricePoint) error
}

// OperationStore persists position-lifecycle operations.
type OperationStore interface {
	// GetOpen returns the single open operation for the triple, or
	// ErrNotFound when the position is flat.
	GetOpen(ctx context.Context, accountID, tickerID, currencyID string) (*models.AutoImportOperation, error)
	Get(ctx context.Context, id string) (*models.AutoImportOperation, error)
	Save(ctx context.Context, op *models.AutoImportOperation) error
	Delete(ctx context.Context, op *models.AutoImportOperation) error
}

// PreferenceStore resolves user preferences.
type PreferenceStore interface {
	// DefaultCurrency returns the configured default currency. An error
	// is fatal to snapshot creation for entities without movements.
	DefaultCurrency(ctx context.Context) (string, error)
	SetDefaultCurrency(ctx context.Context, currencyID string) error
}
