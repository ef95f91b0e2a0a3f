package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage").WithField("backend", "postgres"),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	connector, err := pq.NewConnector(p.config.ConnectionString)
	if err != nil {
		return databaseError("Invalid PostgreSQL connection string", err)
	}
	db := sql.OpenDB(connector)

	// Configure connection pool
	if p.config.MaxConnections > 0 {
		db.SetMaxOpenConns(p.config.MaxConnections)
		db.SetMaxIdleConns(p.config.MaxConnections / 2)
	}
	db.SetConnMaxIdleTime(p.config.MaxIdleTime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return databaseError("Failed to ping PostgreSQL database", err)
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	return applyMigrations(context.Background(), p.db, postgresMigrationDialect, p.migrations, p.logger)
}

// SaveEvent inserts record and returns it with the id from the sequence
func (p *PostgreSQLStorage) SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	if err := validateRecord(record); err != nil {
		return nil, err
	}
	if p.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	query := `
		INSERT INTO events
		(event_type, amount, from_address, to_address, previous_owner, new_owner)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	if err := p.db.QueryRowContext(ctx, query, recordArgs(record)...).Scan(&id); err != nil {
		return nil, databaseError("Failed to save event", pqDetail(err))
	}

	saved := record.Clone()
	saved.ID = id
	return saved, nil
}

// GetEvents returns all records ordered by id
func (p *PostgreSQLStorage) GetEvents(ctx context.Context) ([]*models.EventRecord, error) {
	if p.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	rows, err := p.db.QueryContext(ctx, selectEventColumns+` ORDER BY id ASC`)
	if err != nil {
		return nil, databaseError("Failed to query events", pqDetail(err))
	}
	return scanRecords(rows)
}

// GetEventsByType returns the records of one kind ordered by id
func (p *PostgreSQLStorage) GetEventsByType(ctx context.Context, eventType models.EventType) ([]*models.EventRecord, error) {
	if p.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	rows, err := p.db.QueryContext(ctx, selectEventColumns+` WHERE event_type = $1 ORDER BY id ASC`, string(eventType))
	if err != nil {
		return nil, databaseError("Failed to query events by type", pqDetail(err))
	}
	return scanRecords(rows)
}

// GetStorageStats returns storage statistics
func (p *PostgreSQLStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	if p.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	stats := newStorageStats("postgres")

	rows, err := p.db.QueryContext(ctx, `SELECT event_type, COUNT(*), MAX(id) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, databaseError("Failed to count events", pqDetail(err))
	}
	if err := countByType(rows, stats); err != nil {
		return nil, err
	}

	var size sql.NullInt64
	if err := p.db.QueryRowContext(ctx, `SELECT pg_total_relation_size('events')`).Scan(&size); err == nil && size.Valid {
		stats.DatabaseSize = size.Int64
	}

	return stats, nil
}

// pqDetail keeps the server-side detail of a PostgreSQL error
func pqDetail(err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Detail != "" {
		return &pqDetailError{err: pqErr}
	}
	return err
}

type pqDetailError struct {
	err *pq.Error
}

func (e *pqDetailError) Error() string { return e.err.Message + ": " + e.err.Detail }
func (e *pqDetailError) Unwrap() error { return e.err }
