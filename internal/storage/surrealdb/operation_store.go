package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/engine"
	"github.com/finpoint/finpoint/internal/models"
)

type operationStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func newOperationStore(db *surrealdb.DB, logger *common.Logger) *operationStore {
	return &operationStore{db: db, logger: logger}
}

func (s *operationStore) GetOpen(ctx context.Context, accountID, tickerID, currencyID string) (*models.AutoImportOperation, error) {
	sql := "SELECT * FROM operation WHERE broker_account_id = $account AND ticker_id = $ticker AND currency_id = $currency AND is_open = true LIMIT 1"
	vars := map[string]any{"account": accountID, "ticker": tickerID, "currency": currencyID}

	op, err := queryOne[models.AutoImportOperation](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query open operation for %s/%s: %w", accountID, tickerID, err)
	}
	if op == nil {
		return nil, &engine.NotFoundError{Entity: "operation", Key: accountID + "|" + tickerID + "|" + currencyID}
	}
	return op, nil
}

func (s *operationStore) Get(ctx context.Context, id string) (*models.AutoImportOperation, error) {
	record, err := surrealdb.Select[models.AutoImportOperation](ctx, s.db, surrealmodels.NewRecordID("operation", id))
	if err != nil {
		return nil, fmt.Errorf("failed to select operation %s: %w", id, err)
	}
	if record == nil {
		return nil, &engine.NotFoundError{Entity: "operation", Key: id}
	}
	return record, nil
}

func (s *operationStore) Save(ctx context.Context, op *models.AutoImportOperation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	return upsertMovement(ctx, s.db, "operation", op.ID, op)
}

func (s *operationStore) Delete(ctx context.Context, op *models.AutoImportOperation) error {
	_, err := surrealdb.Delete[models.AutoImportOperation](ctx, s.db, surrealmodels.NewRecordID("operation", op.ID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete operation %s: %w", op.ID, err)
	}
	return nil
}
