package badger

import (
	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/interfaces"
)

// Manager implements interfaces.StorageManager on a single embedded
// BadgerHold store.
type Manager struct {
	store  *Store
	logger *common.Logger

	snapshotStore       *snapshotStore
	tickerSnapshotStore *tickerSnapshotStore
	movementStore       *movementStore
	priceStore          *priceStore
	operationStore      *operationStore
	preferenceStore     *preferenceStore
}

// NewManager opens the embedded store and wires every adapter.
func NewManager(logger *common.Logger, path string) (*Manager, error) {
	store, err := NewStore(logger, path)
	if err != nil {
		return nil, err
	}

	m := &Manager{store: store, logger: logger}
	m.snapshotStore = newSnapshotStore(store, logger)
	m.tickerSnapshotStore = newTickerSnapshotStore(store, logger)
	m.movementStore = newMovementStore(store, logger)
	m.priceStore = newPriceStore(store, logger)
	m.operationStore = newOperationStore(store, logger)
	m.preferenceStore = newPreferenceStore(store, logger)

	logger.Info().Str("path", path).Msg("Badger storage manager initialized")
	return m, nil
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore             { return m.snapshotStore }
func (m *Manager) TickerSnapshotStore() interfaces.TickerSnapshotStore { return m.tickerSnapshotStore }
func (m *Manager) MovementStore() interfaces.MovementStore             { return m.movementStore }
func (m *Manager) PriceStore() interfaces.PriceStore                   { return m.priceStore }
func (m *Manager) OperationStore() interfaces.OperationStore           { return m.operationStore }
func (m *Manager) PreferenceStore() interfaces.PreferenceStore         { return m.preferenceStore }

func (m *Manager) Close() error {
	return m.store.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
