package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/internal/publisher"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

// SaveEvent saves an event and records metrics
func (s *StorageWithMetrics) SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	start := time.Now()
	saved, err := s.Storage.SaveEvent(ctx, record)
	s.record("insert", err, start)
	return saved, err
}

// GetEvents reads all events and records metrics
func (s *StorageWithMetrics) GetEvents(ctx context.Context) ([]*models.EventRecord, error) {
	start := time.Now()
	records, err := s.Storage.GetEvents(ctx)
	s.record("select", err, start)
	return records, err
}

// GetEventsByType reads one kind of events and records metrics
func (s *StorageWithMetrics) GetEventsByType(ctx context.Context, eventType models.EventType) ([]*models.EventRecord, error) {
	start := time.Now()
	records, err := s.Storage.GetEventsByType(ctx, eventType)
	s.record("select_by_type", err, start)
	return records, err
}

func (s *StorageWithMetrics) record(operation string, err error, start time.Time) {
	m := s.metricsManager.GetPrometheusMetrics()
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordDatabaseOperation(operation, "events", status, time.Since(start))
}

// StorageWithPublisher publishes every saved record. Publish failures are
// logged and never fail the save.
type StorageWithPublisher struct {
	Storage
	publisher      publisher.Publisher
	metricsManager *metrics.Manager
	logger         *logrus.Entry
}

// NewStorageWithPublisher creates a storage wrapper that publishes saved records
func NewStorageWithPublisher(storage Storage, pub publisher.Publisher, metricsManager *metrics.Manager) *StorageWithPublisher {
	return &StorageWithPublisher{
		Storage:        storage,
		publisher:      pub,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("storage_publisher"),
	}
}

// SaveEvent saves record, then publishes the stored copy
func (s *StorageWithPublisher) SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	saved, err := s.Storage.SaveEvent(ctx, record)
	if err != nil {
		return nil, err
	}

	status := "success"
	if err := s.publisher.Publish(ctx, saved); err != nil {
		status = "error"
		s.logger.WithError(err).WithFields(logrus.Fields{
			"id":         saved.ID,
			"event_type": saved.EventType,
		}).Warn("Failed to publish saved event")
	}
	if m := s.metricsManager.GetPrometheusMetrics(); m != nil {
		m.RecordPublished(saved.EventType.String(), status)
	}

	return saved, nil
}

// Close closes the publisher, then the wrapped storage
func (s *StorageWithPublisher) Close() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close publisher")
	}
	return s.Storage.Close()
}
