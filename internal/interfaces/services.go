package interfaces

import (
	"context"
	"time"

	"github.com/finpoint/finpoint/internal/models"
)

// SnapshotEngine is the coordinator consumed by upstream event handlers.
type SnapshotEngine interface {
	// HandleNewEntity seeds the first snapshot for a newly created
	// broker account or ticker using the default currency.
	HandleNewEntity(ctx context.Context, brokerAccountID string) error

	// HandleEntityChanged recomputes snapshots from date forward after
	// a movement insertion or correction for the entity.
	HandleEntityChanged(ctx context.Context, brokerAccountID string, date time.Time) error

	// ProcessBatch recomputes all cells covered by the request using
	// the requested mode. The returned metrics report partial success;
	// only hard consistency violations return an error.
	ProcessBatch(ctx context.Context, req models.BatchRequest) (*models.ProcessingMetrics, error)
}

// LifecycleTracker maintains AutoImportOperation records from snapshot
// transitions. Apply must run before the triggering snapshot persists.
type LifecycleTracker interface {
	Apply(ctx context.Context, prev, current *models.TickerCurrencySnapshot, accountID string) error
}
