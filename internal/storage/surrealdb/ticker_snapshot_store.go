package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/models"
)

type tickerSnapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func newTickerSnapshotStore(db *surrealdb.DB, logger *common.Logger) *tickerSnapshotStore {
	return &tickerSnapshotStore{db: db, logger: logger}
}

func (s *tickerSnapshotStore) GetByNaturalKey(ctx context.Context, tickerID, currencyID string, date time.Time) (*models.TickerCurrencySnapshot, error) {
	key := (&models.TickerCurrencySnapshot{
		TickerID:   tickerID,
		CurrencyID: currencyID,
		Date:       date,
	}).NaturalKey()

	record, err := surrealdb.Select[models.TickerCurrencySnapshot](ctx, s.db, surrealmodels.NewRecordID("ticker_snapshot", recordKey(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to select ticker snapshot %s: %w", key, err)
	}
	if record == nil {
		return nil, &engine.NotFoundError{Entity: "ticker snapshot", Key: key}
	}
	return record, nil
}

func (s *tickerSnapshotStore) GetLatestBefore(ctx context.Context, tickerID, currencyID string, date time.Time) (*models.TickerCurrencySnapshot, error) {
	sql := "SELECT * FROM ticker_snapshot WHERE ticker_id = $ticker AND currency_id = $currency AND date < $date ORDER BY date DESC LIMIT 1"
	vars := map[string]any{"ticker": tickerID, "currency": currencyID, "date": models.DayOf(date)}

	snap, err := queryOne[models.TickerCurrencySnapshot](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest ticker snapshot before %s: %w", models.DayKey(date), err)
	}
	if snap == nil {
		return nil, &engine.NotFoundError{Entity: "ticker snapshot", Key: tickerID + "|" + currencyID}
	}
	return snap, nil
}

func (s *tickerSnapshotStore) GetAllAfter(ctx context.Context, tickerID string, date time.Time) ([]*models.TickerCurrencySnapshot, error) {
	sql := "SELECT * FROM ticker_snapshot WHERE ticker_id = $ticker AND date >= $date ORDER BY date ASC"
	vars := map[string]any{"ticker": tickerID, "date": models.DayOf(date)}

	rows, err := queryRows[models.TickerCurrencySnapshot](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker snapshots for %s: %w", tickerID, err)
	}
	return rows, nil
}

func (s *tickerSnapshotStore) GetRange(ctx context.Context, tickerID string, from, to time.Time) ([]*models.TickerCurrencySnapshot, error) {
	sql := "SELECT * FROM ticker_snapshot WHERE ticker_id = $ticker AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{"ticker": tickerID, "from": models.DayOf(from), "to": models.DayOf(to)}

	rows, err := queryRows[models.TickerCurrencySnapshot](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker snapshot range for %s: %w", tickerID, err)
	}
	return rows, nil
}

func (s *tickerSnapshotStore) Save(ctx context.Context, snapshot *models.TickerCurrencySnapshot) error {
	existing, err := s.GetByNaturalKey(ctx, snapshot.TickerID, snapshot.CurrencyID, snapshot.Date)
	if err != nil && !engine.IsNotFound(err) {
		return err
	}
	if existing != nil {
		snapshot.ID = existing.ID
		snapshot.CreatedAt = existing.CreatedAt
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	snapshot.UpdatedAt = time.Now()
	snapshot.Date = models.DayOf(snapshot.Date)

	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("ticker_snapshot", recordKey(snapshot.NaturalKey())),
		"record": snapshot,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]models.TickerCurrencySnapshot](ctx, s.db, sql, vars); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to save ticker snapshot %s after retries: %w", snapshot.NaturalKey(), lastErr)
}

func (s *tickerSnapshotStore) Delete(ctx context.Context, snapshot *models.TickerCurrencySnapshot) error {
	_, err := surrealdb.Delete[models.TickerCurrencySnapshot](ctx, s.db, surrealmodels.NewRecordID("ticker_snapshot", recordKey(snapshot.NaturalKey())))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete ticker snapshot %s: %w", snapshot.NaturalKey(), err)
	}
	return nil
}
