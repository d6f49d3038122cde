// Package sqlite implements the device-local stores: anonymous drafts,
// anonymous wishlist entries and one-shot migration markers.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS drafts (
	device_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (device_id, id)
);
CREATE TABLE IF NOT EXISTS wishlist (
	device_id TEXT NOT NULL,
	design_id TEXT NOT NULL,
	saved_at  TEXT NOT NULL,
	PRIMARY KEY (device_id, design_id)
);
CREATE TABLE IF NOT EXISTS migration_markers (
	kind      TEXT NOT NULL,
	device_id TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	done_at   TEXT NOT NULL,
	PRIMARY KEY (kind, device_id, user_id)
);`

// DefaultMaxDrafts is the per-device draft quota used when none is set.
const DefaultMaxDrafts = 50

// Options configures the local database.
type Options struct {
	// MaxDrafts caps the drafts one device may hold. Zero means DefaultMaxDrafts.
	MaxDrafts int
}

// DB is the device-local database shared by the local stores.
type DB struct {
	db        *sql.DB
	maxDrafts int
	now       func() time.Time
}

// Open opens the SQLite file at path and creates the schema. Use ":memory:"
// for an ephemeral database.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite allows one writer; an in-memory database exists per connection.
	sqlDB.SetMaxOpenConns(1)

	d := New(sqlDB, opts)
	if err := d.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an open database without touching the schema.
func New(sqlDB *sql.DB, opts Options) *DB {
	if opts.MaxDrafts <= 0 {
		opts.MaxDrafts = DefaultMaxDrafts
	}
	return &DB{db: sqlDB, maxDrafts: opts.MaxDrafts, now: time.Now}
}

// Migrate creates missing tables.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "create sqlite schema")
	}
	return nil
}

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Drafts returns the anonymous draft store.
func (d *DB) Drafts() *DraftStore { return &DraftStore{db: d} }

// Wishlist returns the anonymous wishlist store.
func (d *DB) Wishlist() *WishlistStore { return &WishlistStore{db: d} }

// Markers returns the migration marker store.
func (d *DB) Markers() *MarkerStore { return &MarkerStore{db: d} }

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
