package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/models"
)

type priceStore struct {
	store  *Store
	logger *common.Logger
}

func newPriceStore(store *Store, logger *common.Logger) *priceStore {
	return &priceStore{store: store, logger: logger}
}

func (s *priceStore) GetPriceOnOrBefore(_ context.Context, tickerID, currencyID string, date time.Time) (float64, error) {
	var rows []models.PricePoint
	query := badgerhold.Where("TickerID").Eq(tickerID).
		And("CurrencyID").Eq(currencyID).
		And("Date").Le(models.DayOf(date)).
		SortBy("Date").Reverse().Limit(1)
	if err := s.store.db.Find(&rows, query); err != nil {
		return 0, fmt.Errorf("failed to find price for %s/%s: %w", tickerID, currencyID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Close, nil
}

func (s *priceStore) GetRange(_ context.Context, tickerID, currencyID string, from, to time.Time) ([]*models.PricePoint, error) {
	var rows []models.PricePoint
	query := badgerhold.Where("TickerID").Eq(tickerID).
		And("CurrencyID").Eq(currencyID).
		And("Date").Ge(models.DayOf(from)).
		And("Date").Le(models.DayOf(to)).
		SortBy("Date")
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to find price range for %s/%s: %w", tickerID, currencyID, err)
	}
	out := make([]*models.PricePoint, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *priceStore) SavePrice(_ context.Context, p *models.PricePoint) error {
	p.Date = models.DayOf(p.Date)
	if err := s.store.db.Upsert(p.NaturalKey(), p); err != nil {
		return fmt.Errorf("failed to save price %s: %w", p.NaturalKey(), err)
	}
	return nil
}
