// Package wishlist routes liked designs to the device-local or the remote
// store, the same way the bag does for drafts, without pricing. The stores
// are the only state: every toggle reads the current like before writing.
package wishlist

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/optimistic"
)

// ErrDesignRequired is returned when a toggle names no design.
var ErrDesignRequired = errors.New("design id required")

// Entry is one liked design.
type Entry struct {
	DesignID string    `json:"designId"`
	SavedAt  time.Time `json:"savedAt"`
}

// Store holds wishlist entries per scope.
type Store interface {
	List(ctx context.Context, scope identity.Scope) ([]Entry, error)
	// Get reports whether the design is liked.
	Get(ctx context.Context, scope identity.Scope, designID string) (Entry, bool, error)
	// Add keeps the existing entry when the design is already liked.
	Add(ctx context.Context, scope identity.Scope, e Entry) error
	// Remove is a no-op when the design is not liked.
	Remove(ctx context.Context, scope identity.Scope, designID string) error
}

// Stores pairs the device-local and the remote wishlist stores.
type Stores struct {
	Local  Store
	Remote Store
}

func (s Stores) forScope(scope identity.Scope) (Store, error) {
	switch {
	case !scope.Valid():
		return nil, identity.ErrMissingDevice
	case scope.IsUser():
		return s.Remote, nil
	default:
		return s.Local, nil
	}
}

// MigrationResult summarizes a wishlist merge.
type MigrationResult struct {
	AlreadyDone bool     `json:"alreadyDone"`
	Added       []string `json:"added,omitempty"`
	Duplicates  []string `json:"duplicates,omitempty"`
}

// Mirror serializes wishlist writes per design and records failed ones.
type Mirror struct {
	stores  Stores
	markers identity.MarkerStore
	runner  *optimistic.Runner
	locks   optimistic.Locks
	now     func() time.Time
}

// NewMirror creates a Mirror.
func NewMirror(stores Stores, markers identity.MarkerStore, runner *optimistic.Runner) *Mirror {
	return &Mirror{
		stores:  stores,
		markers: markers,
		runner:  runner,
		now:     time.Now,
	}
}

// Toggle likes the design if it is not liked yet and unlikes it otherwise.
// It returns whether the design is liked afterwards.
func (m *Mirror) Toggle(ctx context.Context, actor identity.Actor, designID string) (bool, error) {
	if designID == "" {
		return false, ErrDesignRequired
	}
	scope := actor.Scope()
	store, err := m.stores.forScope(scope)
	if err != nil {
		return false, err
	}
	unlock, err := m.locks.Lock(ctx, scope.String()+"/"+designID)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, liked, err := store.Get(ctx, scope, designID)
	if err != nil {
		return false, errors.Wrap(err, "read like")
	}
	if liked {
		err := m.runner.Run(ctx, optimistic.Mutation{
			Name: "wishlist_remove",
			Persist: func(ctx context.Context) error {
				return store.Remove(ctx, scope, designID)
			},
		})
		if err != nil {
			return true, errors.Wrap(err, "unlike design")
		}
		return false, nil
	}

	e := Entry{DesignID: designID, SavedAt: m.now().UTC()}
	err = m.runner.Run(ctx, optimistic.Mutation{
		Name: "wishlist_add",
		Persist: func(ctx context.Context) error {
			return store.Add(ctx, scope, e)
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "like design")
	}
	return true, nil
}

// List reads the wishlist from the store, newest first.
func (m *Mirror) List(ctx context.Context, actor identity.Actor) ([]Entry, error) {
	scope := actor.Scope()
	store, err := m.stores.forScope(scope)
	if err != nil {
		return nil, err
	}
	entries, err := store.List(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "list wishlist")
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].SavedAt.Equal(entries[j].SavedAt) {
			return entries[i].SavedAt.After(entries[j].SavedAt)
		}
		return entries[i].DesignID < entries[j].DesignID
	})
	return entries, nil
}

// Migrate merges the device's liked designs into the user's wishlist as a
// set union and empties the anonymous wishlist. Designs the user already
// likes are dropped silently.
func (m *Mirror) Migrate(ctx context.Context, deviceID, userID string) (*MigrationResult, error) {
	marker := identity.MarkerKey{Kind: identity.MarkerWishlist, DeviceID: deviceID, UserID: userID}
	done, err := m.markers.IsMarked(ctx, marker)
	if err != nil {
		return nil, errors.Wrap(err, "check wishlist marker")
	}
	if done {
		return &MigrationResult{AlreadyDone: true}, nil
	}

	anonScope := identity.Anonymous(deviceID)
	userScope := identity.User(userID)

	anon, err := m.stores.Local.List(ctx, anonScope)
	if err != nil {
		return nil, errors.Wrap(err, "list anonymous wishlist")
	}
	existing, err := m.stores.Remote.List(ctx, userScope)
	if err != nil {
		return nil, errors.Wrap(err, "list user wishlist")
	}
	liked := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		liked[e.DesignID] = struct{}{}
	}

	res := &MigrationResult{}
	for _, e := range anon {
		if _, dup := liked[e.DesignID]; dup {
			res.Duplicates = append(res.Duplicates, e.DesignID)
		} else {
			if err := m.stores.Remote.Add(ctx, userScope, e); err != nil {
				return res, errors.Wrapf(err, "copy liked design %s", e.DesignID)
			}
			liked[e.DesignID] = struct{}{}
			res.Added = append(res.Added, e.DesignID)
		}
		if err := m.stores.Local.Remove(ctx, anonScope, e.DesignID); err != nil {
			return res, errors.Wrapf(err, "remove anonymous like %s", e.DesignID)
		}
	}

	if err := m.markers.Mark(ctx, marker); err != nil {
		return res, errors.Wrap(err, "write wishlist marker")
	}

	zctx.From(ctx).Info("Wishlist migrated",
		zap.String("device_id", deviceID),
		zap.String("user_id", userID),
		zap.Int("added", len(res.Added)),
		zap.Int("duplicates", len(res.Duplicates)),
	)
	return res, nil
}
