package storage

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// MemoryStorage keeps records in process memory. Data is lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*models.EventRecord
	nextID  int64
	logger  *logrus.Entry
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nextID: 1,
		logger: utils.ComponentLogger("storage"),
	}
}

func (m *MemoryStorage) Connect() error {
	m.logger.WithField("backend", "memory").Info("In-memory storage ready")
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
func (m *MemoryStorage) Ping() error  { return nil }
func (m *MemoryStorage) Migrate() error {
	return nil
}

// SaveEvent stores a copy of record under the next id
func (m *MemoryStorage) SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	if err := validateRecord(record); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, databaseError("Failed to save event", err)
	}

	m.mu.Lock()
	stored := record.Clone()
	stored.ID = m.nextID
	m.nextID++
	m.records = append(m.records, stored)
	m.mu.Unlock()

	return stored.Clone(), nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context) ([]*models.EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.EventRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *MemoryStorage) GetEventsByType(ctx context.Context, eventType models.EventType) ([]*models.EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.EventRecord, 0)
	for _, r := range m.records {
		if r.EventType == eventType {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := newStorageStats("memory")
	stats.TotalEvents = int64(len(m.records))
	for _, r := range m.records {
		stats.EventsByType[r.EventType]++
	}
	stats.LatestEventID = m.nextID - 1
	return stats, nil
}
