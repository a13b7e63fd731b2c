// Package persist stores unsaved wizard work in a durable key-value slot so
// a reload never silently loses staged rows. Snapshots are msgpack blobs
// with a save timestamp and an expiration; the in-memory draft store stays
// the source of truth and persistence failures are logged, never raised.
package persist

import (
	"database/sql"
	"fmt"
	"time"
)

// Schema for the snapshot slot table.
const Schema = `
CREATE TABLE IF NOT EXISTS draft_snapshots (
	slot TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	saved_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_draft_snapshots_expires ON draft_snapshots(expires_at);
`

// DefaultSlot is the slot key for the single-user, single-tab session.
const DefaultSlot = "quickstart"

// Slot provides the durable key-value operations for draft snapshots.
// Last write wins; no transactional guarantees beyond that.
type Slot struct {
	db *sql.DB
}

// NewSlot creates a slot store over an opened database.
func NewSlot(db *sql.DB) *Slot {
	return &Slot{db: db}
}

// InitSchema creates the snapshot table if it does not exist.
func (s *Slot) InitSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return nil
}

// Write upserts a snapshot blob with expiration = savedAt + ttl.
func (s *Slot) Write(key string, data []byte, savedAt time.Time, ttl time.Duration) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO draft_snapshots (slot, data, saved_at, expires_at) VALUES (?, ?, ?, ?)",
		key, data, savedAt.Unix(), savedAt.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}
	return nil
}

// Read returns the stored blob and its save time regardless of expiration;
// expiry is the caller's decision so a stale read can be deleted explicitly.
// Returns ok=false when the slot is empty.
func (s *Slot) Read(key string) (data []byte, savedAt time.Time, ok bool, err error) {
	var savedUnix int64
	err = s.db.QueryRow(
		"SELECT data, saved_at FROM draft_snapshots WHERE slot = ?", key,
	).Scan(&data, &savedUnix)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return data, time.Unix(savedUnix, 0), true, nil
}

// Delete removes the stored snapshot. Deleting an empty slot is not an error.
func (s *Slot) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM draft_snapshots WHERE slot = ?", key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes all snapshots past their expiration and returns the
// number of rows deleted.
func (s *Slot) DeleteExpired() (int64, error) {
	result, err := s.db.Exec("DELETE FROM draft_snapshots WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired snapshots: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
