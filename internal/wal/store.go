package wal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/warp/checkout-saga/internal/apierr"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting appendTx run
// either standalone or as part of a caller-managed transaction — the same
// shape the teacher's store/sqlite/sqlite.go uses for appendTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LogStore persists Records for one service. It has no Update or Delete on
// individual records — only DeleteGroup, used exclusively by the sweeper
// once a correlation group has been fully resolved.
type LogStore struct {
	db *sql.DB
}

// NewLogStore wraps db. The logs table must already exist: each owning
// service's migrate() creates it by running LogsSchema (below).
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// Append writes one record outside of any caller-managed transaction.
func (s *LogStore) Append(ctx context.Context, rec Record) error {
	return s.appendTx(ctx, s.db, rec)
}

// AppendTx writes one record as part of tx, so it commits atomically with
// whatever entity write the caller performs in the same transaction. This
// is the "atomic pipelined commit" primitive.
func (s *LogStore) AppendTx(ctx context.Context, tx *sql.Tx, rec Record) error {
	return s.appendTx(ctx, tx, rec)
}

func (s *LogStore) appendTx(ctx context.Context, ex execer, rec Record) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO logs
		(key, correlation_id, date_time, type, status, entity_id, old_value, new_value, from_url, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Key, rec.CorrelationID, rec.DateTime.UTC().Format(time.RFC3339Nano),
		string(rec.Type), string(rec.Status), rec.EntityID,
		nullableJSON(rec.OldValue), nullableJSON(rec.NewValue), rec.FromURL, rec.Note,
	)
	if err != nil {
		return &apierr.StoreError{Op: "append log", Err: err}
	}
	return nil
}

// Get returns one record by key.
func (s *LogStore) Get(ctx context.Context, key string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, correlation_id, date_time, type, status, entity_id, old_value, new_value, from_url, note
		FROM logs WHERE key = ?
	`, key)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, &apierr.StoreError{Op: "get log", Err: err}
	}
	return rec, true, nil
}

// ListAll dumps every record, oldest first. Used by the introspection
// endpoints and by tests asserting post-sweep cleanup.
func (s *LogStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, correlation_id, date_time, type, status, entity_id, old_value, new_value, from_url, note
		FROM logs ORDER BY date_time ASC
	`)
	if err != nil {
		return nil, &apierr.StoreError{Op: "list logs", Err: err}
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListOlderThan returns every record whose date_time is before cutoff,
// oldest first — the sweeper's candidate window (§9's quiescence check is
// applied per-group afterwards, on the newest record in each group).
func (s *LogStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, correlation_id, date_time, type, status, entity_id, old_value, new_value, from_url, note
		FROM logs WHERE date_time < ? ORDER BY date_time ASC
	`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, &apierr.StoreError{Op: "list logs older than", Err: err}
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteGroup removes every record sharing correlationID. Called only after
// the sweeper has fully resolved a group (reverted or compensated).
func (s *LogStore) DeleteGroup(ctx context.Context, correlationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE correlation_id = ?`, correlationID)
	if err != nil {
		return &apierr.StoreError{Op: "delete log group", Err: err}
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, &apierr.StoreError{Op: "scan log", Err: err}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	return scanRecordRows(row)
}

func scanRecordRows(row scanner) (Record, error) {
	var (
		rec                      Record
		typeStr, statusStr       string
		dateTimeStr              string
		oldValue, newValue       sql.NullString
	)
	err := row.Scan(
		&rec.Key, &rec.CorrelationID, &dateTimeStr, &typeStr, &statusStr,
		&rec.EntityID, &oldValue, &newValue, &rec.FromURL, &rec.Note,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Type = Type(typeStr)
	rec.Status = Status(statusStr)
	rec.DateTime, _ = time.Parse(time.RFC3339Nano, dateTimeStr)
	if oldValue.Valid && oldValue.String != "" {
		rec.OldValue = json.RawMessage(oldValue.String)
	}
	if newValue.Valid && newValue.String != "" {
		rec.NewValue = json.RawMessage(newValue.String)
	}
	return rec, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// LogsSchema is the DDL each service's migrate() should run verbatim to
// create its logs table. Kept as a single constant so every service stays
// in lockstep with LogStore's column set.
const LogsSchema = `
CREATE TABLE IF NOT EXISTS logs (
	key TEXT PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	date_time TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	from_url TEXT,
	note TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_correlation ON logs(correlation_id);
CREATE INDEX IF NOT EXISTS idx_logs_date_time ON logs(date_time);
`
