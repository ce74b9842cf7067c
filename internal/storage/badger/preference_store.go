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

type preferenceStore struct {
	store  *Store
	logger *common.Logger
}

func newPreferenceStore(store *Store, logger *common.Logger) *preferenceStore {
	return &preferenceStore{store: store, logger: logger}
}

func (s *preferenceStore) DefaultCurrency(_ context.Context) (string, error) {
	var pref models.Preference
	if err := s.store.db.Get(models.PreferenceDefaultCurrency, &pref); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", &engine.NotFoundError{Entity: "preference", Key: models.PreferenceDefaultCurrency}
		}
		return "", fmt.Errorf("failed to get default currency: %w", err)
	}
	if pref.Value == "" {
		return "", &engine.NotFoundError{Entity: "preference", Key: models.PreferenceDefaultCurrency}
	}
	return pref.Value, nil
}

func (s *preferenceStore) SetDefaultCurrency(_ context.Context, currencyID string) error {
	pref := models.Preference{
		Key:       models.PreferenceDefaultCurrency,
		Value:     currencyID,
		UpdatedAt: time.Now(),
	}
	if err := s.store.db.Upsert(pref.Key, &pref); err != nil {
		return fmt.Errorf("failed to set default currency: %w", err)
	}
	return nil
}
