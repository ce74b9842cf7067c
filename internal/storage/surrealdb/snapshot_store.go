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

type snapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func newSnapshotStore(db *surrealdb.DB, logger *common.Logger) *snapshotStore {
	return &snapshotStore{db: db, logger: logger}
}

func (s *snapshotStore) GetByNaturalKey(ctx context.Context, accountID, currencyID string, date time.Time) (*models.BrokerFinancialSnapshot, error) {
	key := (&models.BrokerFinancialSnapshot{
		BrokerAccountID: accountID,
		CurrencyID:      currencyID,
		Date:            date,
	}).NaturalKey()

	record, err := surrealdb.Select[models.BrokerFinancialSnapshot](ctx, s.db, surrealmodels.NewRecordID("broker_snapshot", recordKey(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshot %s: %w", key, err)
	}
	if record == nil {
		return nil, &engine.NotFoundError{Entity: "snapshot", Key: key}
	}
	return record, nil
}

func (s *snapshotStore) GetLatestBefore(ctx context.Context, accountID, currencyID string, date time.Time) (*models.BrokerFinancialSnapshot, error) {
	sql := "SELECT * FROM broker_snapshot WHERE broker_account_id = $account AND currency_id = $currency AND date < $date ORDER BY date DESC LIMIT 1"
	vars := map[string]any{"account": accountID, "currency": currencyID, "date": models.DayOf(date)}

	snap, err := queryOne[models.BrokerFinancialSnapshot](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot before %s: %w", models.DayKey(date), err)
	}
	if snap == nil {
		return nil, &engine.NotFoundError{Entity: "snapshot", Key: accountID + "|" + currencyID}
	}
	return snap, nil
}

func (s *snapshotStore) GetAllAfter(ctx context.Context, accountID string, date time.Time) ([]*models.BrokerFinancialSnapshot, error) {
	sql := "SELECT * FROM broker_snapshot WHERE broker_account_id = $account AND date >= $date ORDER BY date ASC"
	vars := map[string]any{"account": accountID, "date": models.DayOf(date)}

	rows, err := queryRows[models.BrokerFinancialSnapshot](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", accountID, err)
	}
	return rows, nil
}

func (s *snapshotStore) GetRange(ctx context.Context, accountID string, from, to time.Time) ([]*models.BrokerFinancialSnapshot, error) {
	sql := "SELECT * FROM broker_snapshot WHERE broker_account_id = $account AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{"account": accountID, "from": models.DayOf(from), "to": models.DayOf(to)}

	rows, err := queryRows[models.BrokerFinancialSnapshot](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot range for %s: %w", accountID, err)
	}
	return rows, nil
}

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

	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("broker_snapshot", recordKey(snapshot.NaturalKey())),
		"record": snapshot,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]models.BrokerFinancialSnapshot](ctx, s.db, sql, vars); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to save snapshot %s after retries: %w", snapshot.NaturalKey(), lastErr)
}

func (s *snapshotStore) Delete(ctx context.Context, snapshot *models.BrokerFinancialSnapshot) error {
	_, err := surrealdb.Delete[models.BrokerFinancialSnapshot](ctx, s.db, surrealmodels.NewRecordID("broker_snapshot", recordKey(snapshot.NaturalKey())))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete snapshot %s: %w", snapshot.NaturalKey(), err)
	}
	return nil
}
