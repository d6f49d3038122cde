package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
)

const (
	listDraftsSQL = `SELECT document FROM drafts WHERE user_id = $1`

	getDraftSQL = `SELECT document FROM drafts WHERE user_id = $1 AND id = $2`

	upsertDraftSQL = `INSERT INTO drafts (user_id, id, document, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, id) DO UPDATE
		SET document = EXCLUDED.document, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

	deleteDraftSQL = `DELETE FROM drafts WHERE user_id = $1 AND id = $2`
)

var _ draft.Store = (*DraftStore)(nil)

// DraftStore keeps user drafts as JSONB documents. Every statement is
// filtered by the owning user id.
type DraftStore struct {
	pool *pgxpool.Pool
}

// NewDraftStore returns a DraftStore that uses the given pool.
func NewDraftStore(pool *pgxpool.Pool) *DraftStore {
	return &DraftStore{pool: pool}
}

func userOf(scope identity.Scope) (string, error) {
	if !scope.IsUser() || !scope.Valid() {
		return "", persist.ErrScopeMismatch
	}
	return scope.ID, nil
}

// List returns every draft of the user, submitted ones included.
func (s *DraftStore) List(ctx context.Context, scope identity.Scope) ([]draft.Draft, error) {
	user, err := userOf(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, listDraftsSQL, user)
	if err != nil {
		return nil, persist.Remote("list drafts", err)
	}
	drafts, err := pgx.CollectRows(rows, scanDraft)
	if err != nil {
		return nil, persist.Remote("list drafts", err)
	}
	return drafts, nil
}

// Get returns persist.ErrNotFound when the user has no such draft.
func (s *DraftStore) Get(ctx context.Context, scope identity.Scope, id string) (*draft.Draft, error) {
	user, err := userOf(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, getDraftSQL, user, id)
	if err != nil {
		return nil, persist.Remote("get draft", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDraft)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, persist.ErrNotFound
		}
		return nil, persist.Remote("get draft", err)
	}
	return &d, nil
}

// Put upserts the draft.
func (s *DraftStore) Put(ctx context.Context, scope identity.Scope, d *draft.Draft) error {
	user, err := userOf(scope)
	if err != nil {
		return err
	}
	if d.Scope != scope {
		return persist.ErrScopeMismatch
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encode draft")
	}
	_, err = s.pool.Exec(ctx, upsertDraftSQL, user, d.ID, doc, string(d.Status), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return persist.Remote("put draft", err)
	}
	return nil
}

// Delete removes the draft if present.
func (s *DraftStore) Delete(ctx context.Context, scope identity.Scope, id string) error {
	user, err := userOf(scope)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, deleteDraftSQL, user, id); err != nil {
		return persist.Remote("delete draft", err)
	}
	return nil
}

func scanDraft(row pgx.CollectableRow) (draft.Draft, error) {
	var (
		doc []byte
		d   draft.Draft
	)
	if err := row.Scan(&doc); err != nil {
		return draft.Draft{}, err
	}
	if err := json.Unmarshal(doc, &d); err != nil {
		return draft.Draft{}, errors.Wrap(err, "decode draft")
	}
	return d, nil
}
