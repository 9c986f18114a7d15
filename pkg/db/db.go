// Package db provides SQLite persistence for the supervisor: operator
// settings that must survive restarts and the rig event log (alarms,
// dispenses, link changes).
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const createTablesSQL = `
	-- Operator-adjustable settings (integer-valued key/value store).
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Rig events: alarm transitions, feed dispenses, link changes.
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		kind TEXT NOT NULL,
		code TEXT,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_time ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);

	PRAGMA foreign_keys=ON;
	`

// Event is one row of the rig event log.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
}

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
}

// New opens (or creates) the database at dbPath and initializes the
// schema. WAL mode keeps readers from blocking the periodic writers.
func New(dbPath string) (Service, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedOpenDB, err)
	}

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToEnableWAL, err)
	}

	db := &DB{sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToInit, err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	_, err := db.Exec(createTablesSQL)

	return err
}

// GetInt returns the stored value for key, or def when no row exists.
func (db *DB) GetInt(key string, def int) (int, error) {
	var value int

	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}

	if err != nil {
		return def, fmt.Errorf("%w settings: %w", errFailedToQuery, err)
	}

	return value, nil
}

// SetInt stores value under key, replacing any previous value.
func (db *DB) SetInt(key string, value int) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w setting %q: %w", errFailedToInsert, key, err)
	}

	return nil
}

// RecordEvent appends one event to the log.
func (db *DB) RecordEvent(e *Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO events (timestamp, kind, code, message)
		VALUES (?, ?, ?, ?)
	`, ts, e.Kind, e.Code, e.Message)
	if err != nil {
		return fmt.Errorf("%w event: %w", errFailedToInsert, err)
	}

	return nil
}

// RecentEvents returns up to limit events, newest first.
func (db *DB) RecentEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(`
		SELECT id, timestamp, kind, COALESCE(code, ''), message
		FROM events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w events: %w", errFailedToQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event

	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Code, &e.Message); err != nil {
			return nil, fmt.Errorf("%w event row: %w", errFailedToScan, err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w events: %w", errFailedToQuery, err)
	}

	return events, nil
}

// CleanOldEvents removes events older than the retention period.
func (db *DB) CleanOldEvents(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	if _, err := db.Exec("DELETE FROM events WHERE timestamp < ?", cutoff); err != nil {
		return fmt.Errorf("%w events: %w", errFailedToClean, err)
	}

	return nil
}
