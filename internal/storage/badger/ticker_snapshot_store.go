package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/models"
)

type tickerSnapshotStore struct {
	store  *Store
	logger *common.Logger
}

func newTickerSnapshotStore(store *Store, logger *common.Logger) *tickerSnapshotStore {
	return &tickerSnapshotStore{store: store, logger: logger}
}

func (s *tickerSnapshotStore) GetByNaturalKey(_ context.Context, tickerID, currencyID string, date time.Time) (*models.TickerCurrencySnapshot, error) {
	key := (&models.TickerCurrencySnapshot{
		TickerID:   tickerID,
		CurrencyID: currencyID,
		Date:       date,
	}).NaturalKey()

	var snap models.TickerCurrencySnapshot
	if err := s.store.db.Get(key, &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, &engine.NotFoundError{Entity: "ticker snapshot", Key: key}
		}
		return nil, fmt.Errorf("failed to get ticker snapshot %s: %w", key, err)
	}
	return &snap, nil
}

func (s *tickerSnapshotStore) GetLatestBefore(_ context.Context, tickerID, currencyID string, date time.Time) (*models.TickerCurrencySnapshot, error) {
	var snaps []models.TickerCurrencySnapshot
	query := badgerhold.Where("TickerID").Eq(tickerID).
		And("CurrencyID").Eq(currencyID).
		And("Date").Lt(models.DayOf(date)).
		SortBy("Date").Reverse().Limit(1)
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to find latest ticker snapshot before %s: %w", models.DayKey(date), err)
	}
	if len(snaps) == 0 {
		return nil, &engine.NotFoundError{Entity: "ticker snapshot", Key: tickerID + "|" + currencyID}
	}
	return &snaps[0], nil
}

func (s *tickerSnapshotStore) GetAllAfter(_ context.Context, tickerID string, date time.Time) ([]*models.TickerCurrencySnapshot, error) {
	var snaps []models.TickerCurrencySnapshot
	query := badgerhold.Where("TickerID").Eq(tickerID).
		And("Date").Ge(models.DayOf(date)).
		SortBy("Date")
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to find ticker snapshots for %s: %w", tickerID, err)
	}
	out := make([]*models.TickerCurrencySnapshot, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
}

func (s *tickerSnapshotStore) GetRange(_ context.Context, tickerID string, from, to time.Time) ([]*models.TickerCurrencySnapshot, error) {
	var snaps []models.TickerCurrencySnapshot
	query := badgerhold.Where("TickerID").Eq(tickerID).
		And("Date").Ge(models.DayOf(from)).
		And("Date").Le(models.DayOf(to)).
		SortBy("Date")
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to find ticker snapshot range for %s: %w", tickerID, err)
	}
	out := make([]*models.TickerCurrencySnapshot, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
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

	if err := s.store.db.Upsert(snapshot.NaturalKey(), snapshot); err != nil {
		return fmt.Errorf("failed to save ticker snapshot %s: %w", snapshot.NaturalKey(), err)
	}
	s.logger.Debug().Str("key", snapshot.NaturalKey()).Msg("Ticker snapshot saved")
	return nil
}

func (s *tickerSnapshotStore) Delete(_ context.Context, snapshot *models.TickerCurrencySnapshot) error {
	err := s.store.db.Delete(snapshot.NaturalKey(), models.TickerCurrencySnapshot{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete ticker snapshot %s: %w", snapshot.NaturalKey(), err)
	}
	return nil
}
