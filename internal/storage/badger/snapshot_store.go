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

type snapshotStore struct {
	store  *Store
	logger *common.Logger
}

func newSnapshotStore(store *Store, logger *common.Logger) *snapshotStore {
	return &snapshotStore{store: store, logger: logger}
}

func (s *snapshotStore) GetByNaturalKey(_ context.Context, accountID, currencyID string, date time.Time) (*models.BrokerFinancialSnapshot, error) {
	key := (&models.BrokerFinancialSnapshot{
		BrokerAccountID: accountID,
		CurrencyID:      currencyID,
		Date:            date,
	}).NaturalKey()

	var snap models.BrokerFinancialSnapshot
	if err := s.store.db.Get(key, &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, &engine.NotFoundError{Entity: "snapshot", Key: key}
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	return &snap, nil
}

func (s *snapshotStore) GetLatestBefore(_ context.Context, accountID, currencyID string, date time.Time) (*models.BrokerFinancialSnapshot, error) {
	var snaps []models.BrokerFinancialSnapshot
	query := badgerhold.Where("BrokerAccountID").Eq(accountID).
		And("CurrencyID").Eq(currencyID).
		And("Date").Lt(models.DayOf(date)).
		SortBy("Date").Reverse().Limit(1)
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot before %s: %w", models.DayKey(date), err)
	}
	if len(snaps) == 0 {
		return nil, &engine.NotFoundError{Entity: "snapshot", Key: accountID + "|" + currencyID}
	}
	return &snaps[0], nil
}

func (s *snapshotStore) GetAllAfter(_ context.Context, accountID string, date time.Time) ([]*models.BrokerFinancialSnapshot, error) {
	var snaps []models.BrokerFinancialSnapshot
	query := badgerhold.Where("BrokerAccountID").Eq(accountID).
		And("Date").Ge(models.DayOf(date)).
		SortBy("Date")
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to find snapshots for %s: %w", accountID, err)
	}
	out := make([]*models.BrokerFinancialSnapshot, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
}

func (s *snapshotStore) GetRange(_ context.Context, accountID string, from, to time.Time) ([]*models.BrokerFinancialSnapshot, error) {
	var snaps []models.BrokerFinancialSnapshot
	query := badgerhold.Where("BrokerAccountID").Eq(accountID).
		And("Date").Ge(models.DayOf(from)).
		And("Date").Le(models.DayOf(to)).
		SortBy("Date")
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to find snapshot range for %s: %w", accountID, err)
	}
	out := make([]*models.BrokerFinancialSnapshot, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
}

// Save upserts by natural key. An existing row's surrogate id and
// creation time survive the write regardless of what the caller set.
func (s *snapshotStore) Save(ctx context.Context, snapshot *models.BrokerFinancialSnapshot) error {
	existing, err := s.GetByNaturalKey(ctx, snapshot.BrokerAccountID, snapshot.CurrencyID, snapshot.Date)
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
		return fmt.Errorf("failed to save snapshot %s: %w", snapshot.NaturalKey(), err)
	}
	s.logger.Debug().Str("key", snapshot.NaturalKey()).Msg("Snapshot saved")
	return nil
}

func (s *snapshotStore) Delete(_ context.Context, snapshot *models.BrokerFinancialSnapshot) error {
	err := s.store.db.Delete(snapshot.NaturalKey(), models.BrokerFinancialSnapshot{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete snapshot %s: %w", snapshot.NaturalKey(), err)
	}
	return nil
}
