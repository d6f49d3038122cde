package sqlite

import (
	"context"

	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
)

const (
	isMarkedSQL = `SELECT COUNT(*) FROM migration_markers WHERE kind = ? AND device_id = ? AND user_id = ?`
	markSQL     = `INSERT INTO migration_markers (kind, device_id, user_id, done_at) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`
)

var _ identity.MarkerStore = (*MarkerStore)(nil)

// MarkerStore records completed one-shot migrations on the device.
type MarkerStore struct {
	db *DB
}

// IsMarked reports whether the step was completed.
func (s *MarkerStore) IsMarked(ctx context.Context, key identity.MarkerKey) (bool, error) {
	var n int
	err := s.db.db.QueryRowContext(ctx, isMarkedSQL, string(key.Kind), key.DeviceID, key.UserID).Scan(&n)
	if err != nil {
		return false, persist.Local("read marker", err)
	}
	return n > 0, nil
}

// Mark records the step as completed. Marking twice keeps the first time.
func (s *MarkerStore) Mark(ctx context.Context, key identity.MarkerKey) error {
	_, err := s.db.db.ExecContext(ctx, markSQL, string(key.Kind), key.DeviceID, key.UserID, formatTime(s.db.now()))
	if err != nil {
		return persist.Local("write marker", err)
	}
	return nil
}
