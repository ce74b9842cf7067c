// Package surrealdb provides the SurrealDB-backed persistence adapters.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	snapshotStore       *snapshotStore
	tickerSnapshotStore *tickerSnapshotStore
	movementStore       *movementStore
	priceStore          *priceStore
	operationStore      *operationStore
	preferenceStore     *preferenceStore
}

// NewManager connects to SurrealDB and wires every adapter.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Surreal.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Surreal.Username,
		"pass": config.Storage.Surreal.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Surreal.Namespace, config.Storage.Surreal.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// SurrealDB v3 errors on querying tables that were never defined.
	tables := []string{
		"broker_snapshot", "ticker_snapshot",
		"cash_movement", "equity_trade", "dividend", "dividend_tax", "option_trade",
		"price_point", "operation", "preference",
	}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	m := &Manager{db: db, logger: logger}
	m.snapshotStore = newSnapshotStore(db, logger)
	m.tickerSnapshotStore = newTickerSnapshotStore(db, logger)
	m.movementStore = newMovementStore(db, logger)
	m.priceStore = newPriceStore(db, logger)
	m.operationStore = newOperationStore(db, logger)
	m.preferenceStore = newPreferenceStore(db, logger)

	logger.Info().
		Str("address", config.Storage.Surreal.Address).
		Str("namespace", config.Storage.Surreal.Namespace).
		Str("database", config.Storage.Surreal.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore             { return m.snapshotStore }
func (m *Manager) TickerSnapshotStore() interfaces.TickerSnapshotStore { return m.tickerSnapshotStore }
func (m *Manager) MovementStore() interfaces.MovementStore             { return m.movementStore }
func (m *Manager) PriceStore() interfaces.PriceStore                   { return m.priceStore }
func (m *Manager) OperationStore() interfaces.OperationStore           { return m.operationStore }
func (m *Manager) PreferenceStore() interfaces.PreferenceStore         { return m.preferenceStore }

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError matches the driver's not-found responses.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
