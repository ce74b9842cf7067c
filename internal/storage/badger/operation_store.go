package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/models"
)

type operationStore struct {
	store  *Store
	logger *common.Logger
}

func newOperationStore(store *Store, logger *common.Logger) *operationStore {
	return &operationStore{store: store, logger: logger}
}

func (s *operationStore) GetOpen(_ context.Context, accountID, tickerID, currencyID string) (*models.AutoImportOperation, error) {
	var ops []models.AutoImportOperation
	query := badgerhold.Where("BrokerAccountID").Eq(accountID).
		And("TickerID").Eq(tickerID).
		And("CurrencyID").Eq(currencyID).
		And("IsOpen").Eq(true).
		Limit(1)
	if err := s.store.db.Find(&ops, query); err != nil {
		return nil, fmt.Errorf("failed to find open operation for %s/%s: %w", accountID, tickerID, err)
	}
	if len(ops) == 0 {
		return nil, &engine.NotFoundError{Entity: "operation", Key: accountID + "|" + tickerID + "|" + currencyID}
	}
	return &ops[0], nil
}

func (s *operationStore) Get(_ context.Context, id string) (*models.AutoImportOperation, error) {
	var op models.AutoImportOperation
	if err := s.store.db.Get(id, &op); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, &engine.NotFoundError{Entity: "operation", Key: id}
		}
		return nil, fmt.Errorf("failed to get operation %s: %w", id, err)
	}
	return &op, nil
}

func (s *operationStore) Save(_ context.Context, op *models.AutoImportOperation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	if err := s.store.db.Upsert(op.ID, op); err != nil {
		return fmt.Errorf("failed to save operation %s: %w", op.ID, err)
	}
	s.logger.Debug().Str("id", op.ID).Bool("open", op.IsOpen).Msg("Operation saved")
	return nil
}

func (s *operationStore) Delete(_ context.Context, op *models.AutoImportOperation) error {
	err := s.store.db.Delete(op.ID, models.AutoImportOperation{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete operation %s: %w", op.ID, err)
	}
	return nil
}
