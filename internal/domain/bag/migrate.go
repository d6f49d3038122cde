package bag

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
)

// MigrationConflict records an anonymous draft that was not copied because
// the user scope already holds an equivalent draft.
type MigrationConflict struct {
	AnonymousID string `json:"anonymousId"`
	ExistingID  string `json:"existingId"`
}

func (c MigrationConflict) Error() string {
	return fmt.Sprintf("draft %s already present as %s", c.AnonymousID, c.ExistingID)
}

// MigratedDraft maps an anonymous draft id to its id in the user scope.
type MigratedDraft struct {
	AnonymousID string `json:"anonymousId"`
	UserID      string `json:"userDraftId"`
}

// MigrationResult summarizes one migration run.
type MigrationResult struct {
	// AlreadyDone is set when the marker showed a previous complete run.
	AlreadyDone bool                `json:"alreadyDone"`
	Migrated    []MigratedDraft     `json:"migrated,omitempty"`
	Conflicts   []MigrationConflict `json:"conflicts,omitempty"`
	// Retained lists anonymous drafts that were not editable and stay put.
	Retained []string `json:"retained,omitempty"`
}

// MigrateAnonymousToUser moves the device's anonymous drafts into the user's
// scope. A draft is copied only when the user has no draft with the same
// content; the anonymous original is deleted either way. The run is marked
// complete only after every draft is handled, and a retried run re-checks
// the user scope, so an interrupted run never duplicates drafts.
func (r *Reconciler) MigrateAnonymousToUser(ctx context.Context, deviceID, userID string) (*MigrationResult, error) {
	ctx, span := r.tracer.Start(ctx, "bag.MigrateAnonymousToUser")
	defer span.End()

	if deviceID == "" || userID == "" {
		return nil, errors.New("device id and user id required")
	}

	marker := identity.MarkerKey{Kind: identity.MarkerDrafts, DeviceID: deviceID, UserID: userID}
	done, err := r.markers.IsMarked(ctx, marker)
	if err != nil {
		return nil, errors.Wrap(err, "check migration marker")
	}
	if done {
		return &MigrationResult{AlreadyDone: true}, nil
	}

	anonScope := identity.Anonymous(deviceID)
	userScope := identity.User(userID)
	lg := zctx.From(ctx).With(zap.String("device_id", deviceID), zap.String("user_id", userID))

	anon, err := r.stores.Local.List(ctx, anonScope)
	if err != nil {
		return nil, errors.Wrap(err, "list anonymous drafts")
	}
	existing, err := r.stores.Remote.List(ctx, userScope)
	if err != nil {
		return nil, errors.Wrap(err, "list user drafts")
	}

	idx := newUserIndex(existing)

	sort.Slice(anon, func(i, j int) bool {
		return anon[i].CreatedAt.Before(anon[j].CreatedAt)
	})

	res := &MigrationResult{}
	for i := range anon {
		if err := r.migrateOne(ctx, anonScope, userScope, &anon[i], idx, res); err != nil {
			span.RecordError(err)
			lg.Warn("Draft migration interrupted",
				zap.Int("migrated", len(res.Migrated)),
				zap.Error(err),
			)
			return res, err
		}
	}

	if err := r.markers.Mark(ctx, marker); err != nil {
		return res, errors.Wrap(err, "write migration marker")
	}

	r.replaceView(anonScope, nil)
	if list, err := r.stores.Remote.List(ctx, userScope); err == nil {
		r.replaceView(userScope, list)
	}

	r.migrated.Add(ctx, int64(len(res.Migrated)))
	span.SetAttributes(
		attribute.Int("bag.migrated", len(res.Migrated)),
		attribute.Int("bag.conflicts", len(res.Conflicts)),
	)
	lg.Info("Drafts migrated",
		zap.Int("migrated", len(res.Migrated)),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int("retained", len(res.Retained)),
	)
	return res, nil
}

func (r *Reconciler) migrateOne(
	ctx context.Context,
	anonScope, userScope identity.Scope,
	d *draft.Draft,
	idx *userIndex,
	res *MigrationResult,
) error {
	unlock, err := r.lockDraft(ctx, anonScope, d.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if !d.Editable() {
		res.Retained = append(res.Retained, d.ID)
		return nil
	}

	key := d.ContentKey()
	switch existingID, ok := idx.byKey[key]; {
	case ok && idx.keyOf[d.ID] == key:
		// Copied by an earlier run that stopped before deleting the original.
		res.Migrated = append(res.Migrated, MigratedDraft{AnonymousID: d.ID, UserID: d.ID})
	case ok:
		res.Conflicts = append(res.Conflicts, MigrationConflict{AnonymousID: d.ID, ExistingID: existingID})
	default:
		moved := d.Clone()
		moved.Scope = userScope
		moved.UpdatedAt = r.now()
		if _, collides := idx.taken[moved.ID]; collides {
			moved.ID = r.newID()
		}
		if err := r.stores.Remote.Put(ctx, userScope, &moved); err != nil {
			return errors.Wrapf(err, "copy draft %s", d.ID)
		}
		idx.add(moved.ID, key)
		res.Migrated = append(res.Migrated, MigratedDraft{AnonymousID: d.ID, UserID: moved.ID})
	}

	if err := r.stores.Local.Delete(ctx, anonScope, d.ID); err != nil {
		return errors.Wrapf(err, "delete anonymous draft %s", d.ID)
	}
	return nil
}

// userIndex holds what migration needs to know about the user scope.
// Submitted drafts are order history: their ids are taken, but they never
// make an anonymous draft a duplicate.
type userIndex struct {
	byKey map[string]string   // content key to editable draft id
	keyOf map[string]string   // editable draft id to content key
	taken map[string]struct{} // every id in the scope
}

func newUserIndex(existing []draft.Draft) *userIndex {
	idx := &userIndex{
		byKey: make(map[string]string, len(existing)),
		keyOf: make(map[string]string, len(existing)),
		taken: make(map[string]struct{}, len(existing)),
	}
	for i := range existing {
		idx.taken[existing[i].ID] = struct{}{}
		if existing[i].Editable() {
			idx.add(existing[i].ID, existing[i].ContentKey())
		}
	}
	return idx
}

func (idx *userIndex) add(id, key string) {
	if _, ok := idx.byKey[key]; !ok {
		idx.byKey[key] = id
	}
	idx.keyOf[id] = key
	idx.taken[id] = struct{}{}
}
