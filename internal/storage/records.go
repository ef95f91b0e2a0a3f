package storage

import (
	"database/sql"
	"fmt"
	"math/big"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

const selectEventColumns = `SELECT id, event_type, amount, from_address, to_address, previous_owner, new_owner FROM events`

func databaseError(message string, cause error) error {
	return utils.WrapAppError(utils.ErrCodeDatabase, message, cause)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.EventRecord, error) {
	var (
		record    models.EventRecord
		eventType string
		amount    sql.NullString
		from      sql.NullString
		to        sql.NullString
		previous  sql.NullString
		next      sql.NullString
	)

	if err := row.Scan(&record.ID, &eventType, &amount, &from, &to, &previous, &next); err != nil {
		return nil, err
	}

	record.EventType = models.EventType(eventType)
	if amount.Valid {
		v, ok := new(big.Int).SetString(amount.String, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for event %d", amount.String, record.ID)
		}
		record.Amount = v
	}
	record.FromAddress = nullableString(from)
	record.ToAddress = nullableString(to)
	record.PreviousOwner = nullableString(previous)
	record.NewOwner = nullableString(next)

	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]*models.EventRecord, error) {
	defer rows.Close()

	records := make([]*models.EventRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, databaseError("Failed to scan event", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, databaseError("Failed to iterate events", err)
	}
	return records, nil
}

// recordArgs returns the insert arguments in column order after id
func recordArgs(record *models.EventRecord) []interface{} {
	var amount sql.NullString
	if record.Amount != nil {
		amount = sql.NullString{String: record.Amount.String(), Valid: true}
	}
	return []interface{}{
		string(record.EventType),
		amount,
		stringOrNull(record.FromAddress),
		stringOrNull(record.ToAddress),
		stringOrNull(record.PreviousOwner),
		stringOrNull(record.NewOwner),
	}
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func stringOrNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// countByType fills stats from a "SELECT event_type, COUNT(*), MAX(id) ... GROUP BY" result
func countByType(rows *sql.Rows, stats *StorageStats) error {
	defer rows.Close()

	for rows.Next() {
		var (
			eventType string
			count     int64
			maxID     int64
		)
		if err := rows.Scan(&eventType, &count, &maxID); err != nil {
			return databaseError("Failed to scan event counts", err)
		}
		stats.EventsByType[models.EventType(eventType)] = count
		stats.TotalEvents += count
		if maxID > stats.LatestEventID {
			stats.LatestEventID = maxID
		}
	}
	if err := rows.Err(); err != nil {
		return databaseError("Failed to iterate event counts", err)
	}
	return nil
}
