package db

import "time"

// Service is the persistence surface the supervisor depends on.
type Service interface {
	// GetInt returns the stored setting for key, or def when unset.
	GetInt(key string, def int) (int, error)
	// SetInt stores an integer setting under key.
	SetInt(key string, value int) error
	// RecordEvent appends one event to the rig event log.
	RecordEvent(e *Event) error
	// RecentEvents returns up to limit events, newest first.
	RecentEvents(limit int) ([]Event, error)
	// CleanOldEvents removes events older than the retention period.
	CleanOldEvents(retention time.Duration) error
	// Close closes the underlying database.
	Close() error
}
