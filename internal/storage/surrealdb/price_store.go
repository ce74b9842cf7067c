package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/models"
)

type priceStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func newPriceStore(db *surrealdb.DB, logger *common.Logger) *priceStore {
	return &priceStore{db: db, logger: logger}
}

func (s *priceStore) GetPriceOnOrBefore(ctx context.Context, tickerID, currencyID string, date time.Time) (float64, error) {
	sql := "SELECT * FROM price_point WHERE ticker_id = $ticker AND currency_id = $currency AND date <= $date ORDER BY date DESC LIMIT 1"
	vars := map[string]any{"ticker": tickerID, "currency": currencyID, "date": models.DayOf(date)}

	point, err := queryOne[models.PricePoint](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to query price for %s/%s: %w", tickerID, currencyID, err)
	}
	if point == nil {
		return 0, nil
	}
	return point.Close, nil
}

func (s *priceStore) GetRange(ctx context.Context, tickerID, currencyID string, from, to time.Time) ([]*models.PricePoint, error) {
	sql := "SELECT * FROM price_point WHERE ticker_id = $ticker AND currency_id = $currency AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{"ticker": tickerID, "currency": currencyID, "from": models.DayOf(from), "to": models.DayOf(to)}

	rows, err := queryRows[models.PricePoint](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query price range for %s/%s: %w", tickerID, currencyID, err)
	}
	return rows, nil
}

func (s *priceStore) SavePrice(ctx context.Context, p *models.PricePoint) error {
	p.Date = models.DayOf(p.Date)
	return upsertMovement(ctx, s.db, "price_point", p.NaturalKey(), p)
}
