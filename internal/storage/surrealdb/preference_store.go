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

type preferenceStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func newPreferenceStore(db *surrealdb.DB, logger *common.Logger) *preferenceStore {
	return &preferenceStore{db: db, logger: logger}
}

func (s *preferenceStore) DefaultCurrency(ctx context.Context) (string, error) {
	record, err := surrealdb.Select[models.Preference](ctx, s.db, surrealmodels.NewRecordID("preference", models.PreferenceDefaultCurrency))
	if err != nil {
		return "", fmt.Errorf("failed to select default currency: %w", err)
	}
	if record == nil || record.Value == "" {
		return "", &engine.NotFoundError{Entity: "preference", Key: models.PreferenceDefaultCurrency}
	}
	return record.Value, nil
}

func (s *preferenceStore) SetDefaultCurrency(ctx context.Context, currencyID string) error {
	pref := &models.Preference{
		Key:       models.PreferenceDefaultCurrency,
		Value:     currencyID,
		UpdatedAt: time.Now(),
	}
	return upsertMovement(ctx, s.db, "preference", pref.Key, pref)
}
