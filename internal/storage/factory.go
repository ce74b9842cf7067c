// Package storage selects the persistence backend from configuration.
package storage

import (
	"fmt"

	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/interfaces"
	"github.com/finpoint/finpoint/internal/storage/badger"
	"github.com/finpoint/finpoint/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendBadger    = "badger"
	BackendSurrealDB = "surrealdb"
)

// NewStorageManager creates the storage manager for the configured
// backend. Supported backends: "badger" (default, embedded) and
// "surrealdb" (server-backed).
func NewStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend := config.Storage.Backend
	if backend == "" {
		backend = BackendBadger
	}

	switch backend {
	case BackendBadger:
		return badger.NewManager(logger, config.Storage.Badger.Path)

	case BackendSurrealDB:
		return surrealdb.NewManager(logger, config)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: badger, surrealdb)", backend)
	}
}
