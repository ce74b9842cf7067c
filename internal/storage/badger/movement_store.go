package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/models"
)

type movementStore struct {
	store  *Store
	logger *common.Logger
}

func newMovementStore(store *Store, logger *common.Logger) *movementStore {
	return &movementStore{store: store, logger: logger}
}

func accountFromDate(accountID string, date time.Time) *badgerhold.Query {
	return badgerhold.Where("BrokerAccountID").Eq(accountID).
		And("Timestamp").Ge(models.DayOf(date)).
		SortBy("Timestamp")
}

func tickerFromDate(tickerID string, date time.Time) *badgerhold.Query {
	return badgerhold.Where("TickerID").Eq(tickerID).
		And("Timestamp").Ge(models.DayOf(date)).
		SortBy("Timestamp")
}

func (s *movementStore) GetCashFromDate(_ context.Context, accountID string, date time.Time) ([]*models.CashMovement, error) {
	var rows []models.CashMovement
	if err := s.store.db.Find(&rows, accountFromDate(accountID, date)); err != nil {
		return nil, fmt.Errorf("failed to find cash movements for %s: %w", accountID, err)
	}
	out := make([]*models.CashMovement, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetEquityTradesFromDate(_ context.Context, accountID string, date time.Time) ([]*models.EquityTrade, error) {
	var rows []models.EquityTrade
	if err := s.store.db.Find(&rows, accountFromDate(accountID, date)); err != nil {
		return nil, fmt.Errorf("failed to find equity trades for %s: %w", accountID, err)
	}
	out := make([]*models.EquityTrade, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetDividendsFromDate(_ context.Context, accountID string, date time.Time) ([]*models.Dividend, error) {
	var rows []models.Dividend
	if err := s.store.db.Find(&rows, accountFromDate(accountID, date)); err != nil {
		return nil, fmt.Errorf("failed to find dividends for %s: %w", accountID, err)
	}
	out := make([]*models.Dividend, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetDividendTaxesFromDate(_ context.Context, accountID string, date time.Time) ([]*models.DividendTax, error) {
	var rows []models.DividendTax
	if err := s.store.db.Find(&rows, accountFromDate(accountID, date)); err != nil {
		return nil, fmt.Errorf("failed to find dividend taxes for %s: %w", accountID, err)
	}
	out := make([]*models.DividendTax, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetOptionTradesFromDate(_ context.Context, accountID string, date time.Time) ([]*models.OptionTrade, error) {
	var rows []models.OptionTrade
	if err := s.store.db.Find(&rows, accountFromDate(accountID, date)); err != nil {
		return nil, fmt.Errorf("failed to find option trades for %s: %w", accountID, err)
	}
	out := make([]*models.OptionTrade, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetEquityTradesForTicker(_ context.Context, tickerID string, date time.Time) ([]*models.EquityTrade, error) {
	var rows []models.EquityTrade
	if err := s.store.db.Find(&rows, tickerFromDate(tickerID, date)); err != nil {
		return nil, fmt.Errorf("failed to find equity trades for ticker %s: %w", tickerID, err)
	}
	out := make([]*models.EquityTrade, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetDividendsForTicker(_ context.Context, tickerID string, date time.Time) ([]*models.Dividend, error) {
	var rows []models.Dividend
	if err := s.store.db.Find(&rows, tickerFromDate(tickerID, date)); err != nil {
		return nil, fmt.Errorf("failed to find dividends for ticker %s: %w", tickerID, err)
	}
	out := make([]*models.Dividend, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetDividendTaxesForTicker(_ context.Context, tickerID string, date time.Time) ([]*models.DividendTax, error) {
	var rows []models.DividendTax
	if err := s.store.db.Find(&rows, tickerFromDate(tickerID, date)); err != nil {
		return nil, fmt.Errorf("failed to find dividend taxes for ticker %s: %w", tickerID, err)
	}
	out := make([]*models.DividendTax, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) GetOptionHistory(_ context.Context, tickerID string) ([]*models.OptionTrade, error) {
	var rows []models.OptionTrade
	query := badgerhold.Where("TickerID").Eq(tickerID).SortBy("Timestamp")
	if err := s.store.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to find option history for ticker %s: %w", tickerID, err)
	}
	out := make([]*models.OptionTrade, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *movementStore) SaveCash(_ context.Context, m *models.CashMovement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.store.db.Upsert(m.ID, m); err != nil {
		return fmt.Errorf("failed to save cash movement: %w", err)
	}
	return nil
}

func (s *movementStore) SaveEquityTrade(_ context.Context, t *models.EquityTrade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.store.db.Upsert(t.ID, t); err != nil {
		return fmt.Errorf("failed to save equity trade: %w", err)
	}
	return nil
}

func (s *movementStore) SaveDividend(_ context.Context, d *models.Dividend) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := s.store.db.Upsert(d.ID, d); err != nil {
		return fmt.Errorf("failed to save dividend: %w", err)
	}
	return nil
}

func (s *movementStore) SaveDividendTax(_ context.Context, d *models.DividendTax) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := s.store.db.Upsert(d.ID, d); err != nil {
		return fmt.Errorf("failed to save dividend tax: %w", err)
	}
	return nil
}

func (s *movementStore) SaveOptionTrade(_ context.Context, t *models.OptionTrade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := s.store.db.Upsert(t.ID, t); err != nil {
		return fmt.Errorf("failed to save option trade: %w", err)
	}
	return nil
}
