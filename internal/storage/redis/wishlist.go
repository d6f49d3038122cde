// Package redis keeps signed-in users' wishlists in Redis sorted sets.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

// Options holds the connection settings.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client.
func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

var _ wishlist.Store = (*WishlistStore)(nil)

// WishlistStore stores one sorted set per user, scored by the time the
// design was liked in Unix milliseconds.
type WishlistStore struct {
	client goredis.UniversalClient
}

// NewWishlistStore creates a WishlistStore.
func NewWishlistStore(client goredis.UniversalClient) *WishlistStore {
	return &WishlistStore{client: client}
}

func key(scope identity.Scope) (string, error) {
	if !scope.IsUser() || !scope.Valid() {
		return "", persist.ErrScopeMismatch
	}
	return fmt.Sprintf("wishlist:%s", scope.ID), nil
}

// List returns the user's liked designs.
func (s *WishlistStore) List(ctx context.Context, scope identity.Scope) ([]wishlist.Entry, error) {
	k, err := key(scope)
	if err != nil {
		return nil, err
	}
	zs, err := s.client.ZRangeWithScores(ctx, k, 0, -1).Result()
	if err != nil {
		return nil, persist.Remote("list wishlist", err)
	}
	entries := make([]wishlist.Entry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, wishlist.Entry{
			DesignID: id,
			SavedAt:  time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return entries, nil
}

// Get returns the entry for a liked design.
func (s *WishlistStore) Get(ctx context.Context, scope identity.Scope, designID string) (wishlist.Entry, bool, error) {
	k, err := key(scope)
	if err != nil {
		return wishlist.Entry{}, false, err
	}
	score, err := s.client.ZScore(ctx, k, designID).Result()
	if errors.Is(err, goredis.Nil) {
		return wishlist.Entry{}, false, nil
	}
	if err != nil {
		return wishlist.Entry{}, false, persist.Remote("get wishlist entry", err)
	}
	return wishlist.Entry{DesignID: designID, SavedAt: time.UnixMilli(int64(score)).UTC()}, true, nil
}

// Add likes the design. ZADD NX keeps the earliest time for a design that is
// already liked.
func (s *WishlistStore) Add(ctx context.Context, scope identity.Scope, e wishlist.Entry) error {
	k, err := key(scope)
	if err != nil {
		return err
	}
	err = s.client.ZAddNX(ctx, k, goredis.Z{
		Score:  float64(e.SavedAt.UnixMilli()),
		Member: e.DesignID,
	}).Err()
	if err != nil {
		return persist.Remote("add wishlist entry", err)
	}
	return nil
}

// Remove unlikes the design if present.
func (s *WishlistStore) Remove(ctx context.Context, scope identity.Scope, designID string) error {
	k, err := key(scope)
	if err != nil {
		return err
	}
	if err := s.client.ZRem(ctx, k, designID).Err(); err != nil {
		return persist.Remote("remove wishlist entry", err)
	}
	return nil
}
