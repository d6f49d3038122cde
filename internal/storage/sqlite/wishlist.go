package sqlite

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

const (
	listWishlistSQL   = `SELECT design_id, saved_at FROM wishlist WHERE device_id = ?`
	getWishlistSQL    = `SELECT saved_at FROM wishlist WHERE device_id = ? AND design_id = ?`
	addWishlistSQL    = `INSERT INTO wishlist (device_id, design_id, saved_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`
	removeWishlistSQL = `DELETE FROM wishlist WHERE device_id = ? AND design_id = ?`
)

var _ wishlist.Store = (*WishlistStore)(nil)

// WishlistStore keeps the designs an anonymous device liked.
type WishlistStore struct {
	db *DB
}

// List returns the device's liked designs.
func (s *WishlistStore) List(ctx context.Context, scope identity.Scope) ([]wishlist.Entry, error) {
	device, err := deviceOf(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.db.QueryContext(ctx, listWishlistSQL, device)
	if err != nil {
		return nil, persist.Local("list wishlist", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []wishlist.Entry
	for rows.Next() {
		var (
			e       wishlist.Entry
			savedAt string
		)
		if err := rows.Scan(&e.DesignID, &savedAt); err != nil {
			return nil, persist.Local("list wishlist", err)
		}
		if e.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, persist.Local("decode wishlist entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persist.Local("list wishlist", err)
	}
	return entries, nil
}

// Get returns the entry for a liked design.
func (s *WishlistStore) Get(ctx context.Context, scope identity.Scope, designID string) (wishlist.Entry, bool, error) {
	device, err := deviceOf(scope)
	if err != nil {
		return wishlist.Entry{}, false, err
	}
	var savedAt string
	err = s.db.db.QueryRowContext(ctx, getWishlistSQL, device, designID).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return wishlist.Entry{}, false, nil
	}
	if err != nil {
		return wishlist.Entry{}, false, persist.Local("get wishlist entry", err)
	}
	e := wishlist.Entry{DesignID: designID}
	if e.SavedAt, err = parseTime(savedAt); err != nil {
		return wishlist.Entry{}, false, persist.Local("decode wishlist entry", err)
	}
	return e, true, nil
}

// Add stores the entry unless the design is already liked.
func (s *WishlistStore) Add(ctx context.Context, scope identity.Scope, e wishlist.Entry) error {
	device, err := deviceOf(scope)
	if err != nil {
		return err
	}
	if _, err := s.db.db.ExecContext(ctx, addWishlistSQL, device, e.DesignID, formatTime(e.SavedAt)); err != nil {
		return persist.Local("add wishlist entry", err)
	}
	return nil
}

// Remove deletes the entry if present.
func (s *WishlistStore) Remove(ctx context.Context, scope identity.Scope, designID string) error {
	device, err := deviceOf(scope)
	if err != nil {
		return err
	}
	if _, err := s.db.db.ExecContext(ctx, removeWishlistSQL, device, designID); err != nil {
		return persist.Local("remove wishlist entry", err)
	}
	return nil
}
