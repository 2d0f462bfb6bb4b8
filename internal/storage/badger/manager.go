package badger

import (
	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	cache  interfaces.EventCacheStorage
	jobs   interfaces.JobStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		cache:  NewEventCacheStorage(db, logger),
		jobs:   NewJobStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// EventCache returns the event cache storage interface
func (m *Manager) EventCache() interfaces.EventCacheStorage {
	return m.cache
}

// Jobs returns the job storage interface
func (m *Manager) Jobs() interfaces.JobStorage {
	return m.jobs
}

// RunGC triggers a value log garbage collection pass
func (m *Manager) RunGC() error {
	return m.db.RunValueLogGC()
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
