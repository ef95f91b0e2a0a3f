package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// Migration represents a database migration
type Migration struct {
	Version     string    `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"sql"`
}

// Checksum identifies the migration body
func (m *Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.SQL))
	return hex.EncodeToString(sum[:])
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					event_type TEXT NOT NULL,
					amount TEXT,
					from_address TEXT,
					to_address TEXT,
					previous_owner TEXT,
					new_owner TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS events (
					id BIGSERIAL PRIMARY KEY,
					event_type TEXT NOT NULL,
					amount NUMERIC(78, 0),
					from_address TEXT,
					to_address TEXT,
					previous_owner TEXT,
					new_owner TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
			`,
		},
	}
}

// migrationDialect holds the statements that differ per database
type migrationDialect struct {
	createTable string
	isApplied   string
	record      string
}

var (
	sqliteMigrationDialect = migrationDialect{
		createTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		isApplied: `SELECT checksum FROM schema_migrations WHERE version = ?`,
		record:    `INSERT INTO schema_migrations (version, description, checksum) VALUES (?, ?, ?)`,
	}
	postgresMigrationDialect = migrationDialect{
		createTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		isApplied: `SELECT checksum FROM schema_migrations WHERE version = $1`,
		record:    `INSERT INTO schema_migrations (version, description, checksum) VALUES ($1, $2, $3)`,
	}
)

// applyMigrations runs every migration not yet recorded in schema_migrations,
// each in its own transaction. A recorded migration whose body changed is an error.
func applyMigrations(ctx context.Context, db *sql.DB, dialect migrationDialect, migrations []*Migration, logger *logrus.Entry) error {
	if db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	if _, err := db.ExecContext(ctx, dialect.createTable); err != nil {
		return databaseError("Failed to create migrations table", err)
	}

	logger.Info("Starting database migrations")

	for _, migration := range migrations {
		var checksum string
		err := db.QueryRowContext(ctx, dialect.isApplied, migration.Version).Scan(&checksum)
		switch {
		case err == nil:
			if checksum != migration.Checksum() {
				return utils.NewAppError(utils.ErrCodeDatabase,
					fmt.Sprintf("Migration %s was modified after being applied", migration.Version), "")
			}
			continue
		case err != sql.ErrNoRows:
			return databaseError("Failed to read migration state", err)
		}

		logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return databaseError("Failed to begin migration", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			_ = tx.Rollback()
			return databaseError(fmt.Sprintf("Migration %s failed", migration.Version), err)
		}
		if _, err := tx.ExecContext(ctx, dialect.record, migration.Version, migration.Description, migration.Checksum()); err != nil {
			_ = tx.Rollback()
			return databaseError(fmt.Sprintf("Failed to record migration %s", migration.Version), err)
		}
		if err := tx.Commit(); err != nil {
			return databaseError(fmt.Sprintf("Failed to commit migration %s", migration.Version), err)
		}
	}

	logger.Info("Database migrations completed")
	return nil
}
