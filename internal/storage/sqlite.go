package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage").WithField("backend", "sqlite"),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	path := s.config.ConnectionString
	if !isMemoryDSN(path) {
		// Ensure directory exists
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return databaseError("Failed to create database directory", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return databaseError("Failed to open SQLite database", err)
	}

	// A single connection serializes writers so ids are assigned in save order
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if !isMemoryDSN(path) {
		// Enable WAL mode for better concurrency
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return databaseError("Failed to configure SQLite", err)
		}
	}

	s.db = db
	s.logger.WithField("path", path).Info("SQLite database connected")

	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	return applyMigrations(context.Background(), s.db, sqliteMigrationDialect, s.migrations, s.logger)
}

// SaveEvent inserts record and returns it with the rowid SQLite assigned
func (s *SQLiteStorage) SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	if err := validateRecord(record); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	query := `
		INSERT INTO events
		(event_type, amount, from_address, to_address, previous_owner, new_owner)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query, recordArgs(record)...)
	if err != nil {
		return nil, databaseError("Failed to save event", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, databaseError("Failed to read event id", err)
	}

	saved := record.Clone()
	saved.ID = id
	return saved, nil
}

// GetEvents returns all records ordered by id
func (s *SQLiteStorage) GetEvents(ctx context.Context) ([]*models.EventRecord, error) {
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	rows, err := s.db.QueryContext(ctx, selectEventColumns+` ORDER BY id ASC`)
	if err != nil {
		return nil, databaseError("Failed to query events", err)
	}
	return scanRecords(rows)
}

// GetEventsByType returns the records of one kind ordered by id
func (s *SQLiteStorage) GetEventsByType(ctx context.Context, eventType models.EventType) ([]*models.EventRecord, error) {
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	rows, err := s.db.QueryContext(ctx, selectEventColumns+` WHERE event_type = ? ORDER BY id ASC`, string(eventType))
	if err != nil {
		return nil, databaseError("Failed to query events by type", err)
	}
	return scanRecords(rows)
}

// GetStorageStats returns storage statistics
func (s *SQLiteStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	stats := newStorageStats("sqlite")

	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*), MAX(id) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, databaseError("Failed to count events", err)
	}
	if err := countByType(rows, stats); err != nil {
		return nil, err
	}

	if !isMemoryDSN(s.config.ConnectionString) {
		if info, err := os.Stat(s.config.ConnectionString); err == nil {
			stats.DatabaseSize = info.Size()
		}
	}

	return stats, nil
}
