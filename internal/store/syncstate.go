package store

import (
	"context"
	"database/sql"
	"time"
)

// Sync state keys.
const (
	KeyLastHydrate = "last_hydrate"
	KeySelfID      = "self_id"
)

// SetSyncState stores a key/value pair.
func (db *DB) SetSyncState(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SyncState reads a key. Missing keys return "".
func (db *DB) SyncState(ctx context.Context, key string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// LastHydrate returns when the cache was last filled from the backend.
func (db *DB) LastHydrate(ctx context.Context) (time.Time, error) {
	v, err := db.SyncState(ctx, KeyLastHydrate)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}

// TouchHydrate records t as the last hydrate time.
func (db *DB) TouchHydrate(ctx context.Context, t time.Time) error {
	return db.SetSyncState(ctx, KeyLastHydrate, t.UTC().Format(time.RFC3339Nano))
}
