package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/models"
)

type movementStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func newMovementStore(db *surrealdb.DB, logger *common.Logger) *movementStore {
	return &movementStore{db: db, logger: logger}
}

func accountVars(accountID string, date time.Time) map[string]any {
	return map[string]any{"account": accountID, "date": models.DayOf(date)}
}

func tickerVars(tickerID string, date time.Time) map[string]any {
	return map[string]any{"ticker": tickerID, "date": models.DayOf(date)}
}

func (s *movementStore) GetCashFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.CashMovement, error) {
	sql := "SELECT * FROM cash_movement WHERE broker_account_id = $account AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.CashMovement](ctx, s.db, sql, accountVars(accountID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query cash movements for %s: %w", accountID, err)
	}
	return rows, nil
}

func (s *movementStore) GetEquityTradesFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.EquityTrade, error) {
	sql := "SELECT * FROM equity_trade WHERE broker_account_id = $account AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.EquityTrade](ctx, s.db, sql, accountVars(accountID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query equity trades for %s: %w", accountID, err)
	}
	return rows, nil
}

func (s *movementStore) GetDividendsFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.Dividend, error) {
	sql := "SELECT * FROM dividend WHERE broker_account_id = $account AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.Dividend](ctx, s.db, sql, accountVars(accountID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends for %s: %w", accountID, err)
	}
	return rows, nil
}

func (s *movementStore) GetDividendTaxesFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.DividendTax, error) {
	sql := "SELECT * FROM dividend_tax WHERE broker_account_id = $account AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.DividendTax](ctx, s.db, sql, accountVars(accountID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend taxes for %s: %w", accountID, err)
	}
	return rows, nil
}

func (s *movementStore) GetOptionTradesFromDate(ctx context.Context, accountID string, date time.Time) ([]*models.OptionTrade, error) {
	sql := "SELECT * FROM option_trade WHERE broker_account_id = $account AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.OptionTrade](ctx, s.db, sql, accountVars(accountID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query option trades for %s: %w", accountID, err)
	}
	return rows, nil
}

func (s *movementStore) GetEquityTradesForTicker(ctx context.Context, tickerID string, date time.Time) ([]*models.EquityTrade, error) {
	sql := "SELECT * FROM equity_trade WHERE ticker_id = $ticker AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.EquityTrade](ctx, s.db, sql, tickerVars(tickerID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query equity trades for ticker %s: %w", tickerID, err)
	}
	return rows, nil
}

func (s *movementStore) GetDividendsForTicker(ctx context.Context, tickerID string, date time.Time) ([]*models.Dividend, error) {
	sql := "SELECT * FROM dividend WHERE ticker_id = $ticker AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.Dividend](ctx, s.db, sql, tickerVars(tickerID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends for ticker %s: %w", tickerID, err)
	}
	return rows, nil
}

func (s *movementStore) GetDividendTaxesForTicker(ctx context.Context, tickerID string, date time.Time) ([]*models.DividendTax, error) {
	sql := "SELECT * FROM dividend_tax WHERE ticker_id = $ticker AND timestamp >= $date ORDER BY timestamp ASC"
	rows, err := queryRows[models.DividendTax](ctx, s.db, sql, tickerVars(tickerID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend taxes for ticker %s: %w", tickerID, err)
	}
	return rows, nil
}

func (s *movementStore) GetOptionHistory(ctx context.Context, tickerID string) ([]*models.OptionTrade, error) {
	sql := "SELECT * FROM option_trade WHERE ticker_id = $ticker ORDER BY timestamp ASC"
	rows, err := queryRows[models.OptionTrade](ctx, s.db, sql, map[string]any{"ticker": tickerID})
	if err != nil {
		return nil, fmt.Errorf("failed to query option history for ticker %s: %w", tickerID, err)
	}
	return rows, nil
}

// upsertMovement writes one record by id, retrying transient failures.
func upsertMovement[T any](ctx context.Context, db *surrealdb.DB, table, id string, record *T) error {
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(table, recordKey(id)), "record": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]T](ctx, db, sql, vars); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to upsert %s record after retries: %w", table, lastErr)
}

func (s *movementStore) SaveCash(ctx context.Context, m *models.CashMovement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return upsertMovement(ctx, s.db, "cash_movement", m.ID, m)
}

func (s *movementStore) SaveEquityTrade(ctx context.Context, t *models.EquityTrade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return upsertMovement(ctx, s.db, "equity_trade", t.ID, t)
}

func (s *movementStore) SaveDividend(ctx context.Context, d *models.Dividend) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return upsertMovement(ctx, s.db, "dividend", d.ID, d)
}

func (s *movementStore) SaveDividendTax(ctx context.Context, d *models.DividendTax) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return upsertMovement(ctx, s.db, "dividend_tax", d.ID, d)
}

func (s *movementStore) SaveOptionTrade(ctx context.Context, t *models.OptionTrade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return upsertMovement(ctx, s.db, "option_trade", t.ID, t)
}
