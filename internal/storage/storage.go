package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/event-indexer/internal/models"
)

// Storage defines the interface for event record storage.
// Implementations are safe for concurrent use.
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// SaveEvent persists record and returns it with its assigned id.
	// Ids are monotonically increasing and never reused.
	SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error)
	// GetEvents returns every record in insertion order
	GetEvents(ctx context.Context) ([]*models.EventRecord, error)
	// GetEventsByType returns the records of one kind in insertion order
	GetEventsByType(ctx context.Context, eventType models.EventType) ([]*models.EventRecord, error)

	// Statistics and monitoring
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// StorageStats provides storage statistics
type StorageStats struct {
	Backend       string                     `json:"backend"`
	TotalEvents   int64                      `json:"total_events"`
	EventsByType  map[models.EventType]int64 `json:"events_by_type"`
	LatestEventID int64                      `json:"latest_event_id"`
	DatabaseSize  int64                      `json:"database_size_bytes,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}

func newStorageStats(backend string) *StorageStats {
	stats := &StorageStats{
		Backend:      backend,
		EventsByType: make(map[models.EventType]int64, 3),
	}
	for _, t := range models.EventTypes() {
		stats.EventsByType[t] = 0
	}
	return stats
}

// validateRecord rejects records the sink must not persist
func validateRecord(record *models.EventRecord) error {
	if record == nil {
		return databaseError("Cannot save nil record", nil)
	}
	if err := record.Validate(); err != nil {
		return databaseError("Invalid event record", err)
	}
	return nil
}
