package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
)

const (
	listDraftsSQL  = `SELECT document FROM drafts WHERE device_id = ?`
	getDraftSQL    = `SELECT document FROM drafts WHERE device_id = ? AND id = ?`
	countDraftsSQL = `SELECT COUNT(*) FROM drafts WHERE device_id = ?`
	existsDraftSQL = `SELECT COUNT(*) FROM drafts WHERE device_id = ? AND id = ?`
	upsertDraftSQL = `INSERT INTO drafts (device_id, id, document, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (device_id, id) DO UPDATE SET document = excluded.document`
	deleteDraftSQL = `DELETE FROM drafts WHERE device_id = ? AND id = ?`
)

var _ draft.Store = (*DraftStore)(nil)

// DraftStore keeps anonymous drafts as JSON documents keyed by device.
type DraftStore struct {
	db *DB
}

func deviceOf(scope identity.Scope) (string, error) {
	if !scope.IsAnonymous() || !scope.Valid() {
		return "", persist.ErrScopeMismatch
	}
	return scope.ID, nil
}

// List returns every draft of the device.
func (s *DraftStore) List(ctx context.Context, scope identity.Scope) ([]draft.Draft, error) {
	device, err := deviceOf(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.db.QueryContext(ctx, listDraftsSQL, device)
	if err != nil {
		return nil, persist.Local("list drafts", err)
	}
	defer func() { _ = rows.Close() }()

	var drafts []draft.Draft
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, persist.Local("list drafts", err)
		}
		d, err := decodeDraft(doc)
		if err != nil {
			return nil, persist.Local("decode draft", err)
		}
		drafts = append(drafts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, persist.Local("list drafts", err)
	}
	return drafts, nil
}

// Get returns persist.ErrNotFound when the device has no such draft.
func (s *DraftStore) Get(ctx context.Context, scope identity.Scope, id string) (*draft.Draft, error) {
	device, err := deviceOf(scope)
	if err != nil {
		return nil, err
	}
	var doc string
	err = s.db.db.QueryRowContext(ctx, getDraftSQL, device, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, persist.Local("get draft", err)
	}
	d, err := decodeDraft(doc)
	if err != nil {
		return nil, persist.Local("decode draft", err)
	}
	return d, nil
}

// Put upserts the draft. Inserting beyond the device quota fails with a
// PersistenceError wrapping persist.ErrQuotaExceeded.
func (s *DraftStore) Put(ctx context.Context, scope identity.Scope, d *draft.Draft) error {
	device, err := deviceOf(scope)
	if err != nil {
		return err
	}
	if d.Scope != scope {
		return persist.ErrScopeMismatch
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return persist.Local("encode draft", err)
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return persist.Local("put draft", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, existsDraftSQL, device, d.ID).Scan(&exists); err != nil {
		return persist.Local("put draft", err)
	}
	if exists == 0 {
		var n int
		if err := tx.QueryRowContext(ctx, countDraftsSQL, device).Scan(&n); err != nil {
			return persist.Local("put draft", err)
		}
		if n >= s.db.maxDrafts {
			return &persist.PersistenceError{Op: "put draft", Err: persist.ErrQuotaExceeded}
		}
	}

	if _, err := tx.ExecContext(ctx, upsertDraftSQL, device, d.ID, string(doc), formatTime(d.CreatedAt)); err != nil {
		return persist.Local("put draft", err)
	}
	if err := tx.Commit(); err != nil {
		return persist.Local("put draft", err)
	}
	return nil
}

// Delete removes the draft if present.
func (s *DraftStore) Delete(ctx context.Context, scope identity.Scope, id string) error {
	device, err := deviceOf(scope)
	if err != nil {
		return err
	}
	if _, err := s.db.db.ExecContext(ctx, deleteDraftSQL, device, id); err != nil {
		return persist.Local("delete draft", err)
	}
	return nil
}

func decodeDraft(doc string) (*draft.Draft, error) {
	var d draft.Draft
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, err
	}
	return &d, nil
}
