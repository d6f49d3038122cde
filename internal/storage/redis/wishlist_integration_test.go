//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

func startRedis(t *testing.T) *WishlistStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	client := NewClient(Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return NewWishlistStore(client)
}

func TestWishlistStore(t *testing.T) {
	store := startRedis(t)
	ctx := context.Background()
	alice := identity.User("alice")
	first := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(ctx, alice, wishlist.Entry{DesignID: "d1", SavedAt: first}))
	require.NoError(t, store.Add(ctx, alice, wishlist.Entry{DesignID: "d1", SavedAt: first.Add(time.Hour)}))
	require.NoError(t, store.Add(ctx, alice, wishlist.Entry{DesignID: "d2", SavedAt: first.Add(time.Minute)}))

	entries, err := store.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "d1", entries[0].DesignID)
	assert.True(t, first.Equal(entries[0].SavedAt))

	bob, err := store.List(ctx, identity.User("bob"))
	require.NoError(t, err)
	assert.Empty(t, bob)

	e, liked, err := store.Get(ctx, alice, "d1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, first.Equal(e.SavedAt))

	require.NoError(t, store.Remove(ctx, alice, "d1"))
	require.NoError(t, store.Remove(ctx, alice, "d1"))
	_, liked, err = store.Get(ctx, alice, "d1")
	require.NoError(t, err)
	assert.False(t, liked)
	entries, err = store.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = store.List(ctx, identity.Anonymous("dev-1"))
	require.ErrorIs(t, err, persist.ErrScopeMismatch)
}

func TestWishlistStore_Unavailable(t *testing.T) {
	client := NewClient(Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	_, err := NewWishlistStore(client).List(context.Background(), identity.User("alice"))
	require.Error(t, err)
	assert.True(t, persist.IsRemoteUnavailable(err))
}
