package bag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/pricing"
)

var errConnReset = persist.Remote("put draft", errors.New("connection reset by peer"))

func TestAddDraft_ClothOnlyRepricesOnEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.rec.AddDraft(ctx, anon, clothOnly("2.5"))
	require.NoError(t, err)
	requireTotal(t, 2325, d.EstimatedPrice)
	assert.Equal(t, 1, d.Quantity)
	assert.Equal(t, "Kashmiri Paisley", d.Design.Name)
	assert.Equal(t, 1, f.local.Len(anon.Scope()))

	lines, err := f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	requireTotal(t, 2325, lines[0].Price.Total)
	_, hasStitching := lines[0].Price.Amount(pricing.StitchingCost)
	assert.False(t, hasStitching)

	sel := d.Selections
	sel.Length = decimal.NewFromInt(4)
	require.NoError(t, f.rec.UpdateSelections(ctx, anon, d.ID, sel))

	lines, err = f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	requireTotal(t, 3000, lines[0].Price.Total)

	stored, err := f.local.Get(ctx, anon.Scope(), d.ID)
	require.NoError(t, err)
	requireTotal(t, 3000, stored.EstimatedPrice)
}

func TestAddDraft_EmbroideryStitchingBreakdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.rec.AddDraft(ctx, anon, stitched("M"))
	require.NoError(t, err)
	requireTotal(t, 5000, d.EstimatedPrice)

	lines, err := f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	want := map[pricing.ComponentName]int64{
		pricing.EmbroideryCost:  1200,
		pricing.FabricCost:      1500,
		pricing.StitchingCost:   1500,
		pricing.GarmentBaseCost: 800,
		pricing.SizeUpcharge:    0,
	}
	for name, amount := range want {
		got, ok := lines[0].Price.Amount(name)
		require.True(t, ok, "missing %s", name)
		requireTotal(t, amount, got)
	}
}

func TestAddDraft_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   AddRequest
		field string
	}{
		{
			name:  "missing length",
			req:   clothOnly("0"),
			field: "length",
		},
		{
			name: "unknown design",
			req: func() AddRequest {
				r := clothOnly("1")
				r.DesignID = "nope"
				return r
			}(),
			field: "designId",
		},
		{
			name: "color of another fabric",
			req: func() AddRequest {
				r := clothOnly("1")
				r.Selections.ColorID = "ivory"
				return r
			}(),
			field: "colorId",
		},
		{
			name:  "missing size",
			req:   stitched(""),
			field: "size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rec.AddDraft(ctx, anon, tt.req)
			var verr *draft.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), "problems: %v", verr.Problems)
		})
	}

	count, err := f.rec.BagCount(ctx, anon)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAddDraft_NegativeQuantity(t *testing.T) {
	f := newFixture(t)
	req := clothOnly("1")
	req.Quantity = -2

	_, err := f.rec.AddDraft(context.Background(), anon, req)
	require.ErrorIs(t, err, draft.ErrInvalidQuantity)
}

func TestAddDraft_MissingDevice(t *testing.T) {
	f := newFixture(t)

	_, err := f.rec.AddDraft(context.Background(), identity.Actor{}, clothOnly("1"))
	require.ErrorIs(t, err, identity.ErrMissingDevice)
}

func TestAddDraft_RollbackOnRemoteFailure(t *testing.T) {
	for _, landed := range []bool{false, true} {
		t.Run(map[bool]string{false: "rejected", true: "landed"}[landed], func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.flaky.failPuts(errConnReset, landed)

			_, err := f.rec.AddDraft(ctx, user, clothOnly("2.5"))
			require.Error(t, err)
			assert.True(t, persist.IsRemoteUnavailable(err))

			count, err := f.rec.BagCount(ctx, user)
			require.NoError(t, err)
			assert.Zero(t, count)
			assert.Zero(t, f.remote.Len(user.Scope()))

			f.flaky.failPuts(nil, false)
			lines, err := f.rec.ListDrafts(ctx, user)
			require.NoError(t, err)
			assert.Empty(t, lines)
		})
	}
}

func TestUpdateQuantity_SameValueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.rec.AddDraft(ctx, anon, clothOnly("2.5"))
	require.NoError(t, err)

	require.NoError(t, f.rec.UpdateQuantity(ctx, anon, d.ID, 3))
	first, err := f.local.Get(ctx, anon.Scope(), d.ID)
	require.NoError(t, err)

	require.NoError(t, f.rec.UpdateQuantity(ctx, anon, d.ID, 3))
	second, err := f.local.Get(ctx, anon.Scope(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, second.Quantity)

	lines, err := f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	requireTotal(t, 6975, lines[0].LineTotal)
}

func TestUpdateQuantity_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, anon, clothOnly("1"))
	require.NoError(t, err)

	for _, q := range []int{0, -1} {
		err := f.rec.UpdateQuantity(ctx, anon, d.ID, q)
		var qerr *draft.InvalidQuantityError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, q, qerr.Quantity)
	}
}

func TestUpdateQuantity_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.rec.UpdateQuantity(context.Background(), anon, "missing", 2)
	require.ErrorIs(t, err, persist.ErrNotFound)
}

func TestUpdateQuantity_RollbackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, user, stitched("M"))
	require.NoError(t, err)
	_, cancel, err := f.rec.SubscribeCount(ctx, user)
	require.NoError(t, err)
	defer cancel()

	f.flaky.failPuts(errConnReset, false)
	err = f.rec.UpdateQuantity(ctx, user, d.ID, 5)
	require.Error(t, err)
	assert.True(t, persist.IsRemoteUnavailable(err))

	inView, ok := f.rec.fromView(user.Scope(), d.ID)
	require.True(t, ok)
	assert.Equal(t, 1, inView.Quantity)

	stored, err := f.remote.Get(ctx, user.Scope(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)
}

func TestUpdateSelections_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, anon, stitched("M"))
	require.NoError(t, err)

	sel := d.Selections
	sel.Size = nil
	err = f.rec.UpdateSelections(ctx, anon, d.ID, sel)
	var verr *draft.ValidationError
	require.ErrorAs(t, err, &verr)

	sel.Size = &draft.Size{StandardSizeID: "XXL"}
	require.NoError(t, f.rec.UpdateSelections(ctx, anon, d.ID, sel))
	stored, err := f.local.Get(ctx, anon.Scope(), d.ID)
	require.NoError(t, err)
	requireTotal(t, 5250, stored.EstimatedPrice)
}

func TestRemoveDraft_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, anon, clothOnly("1"))
	require.NoError(t, err)

	require.NoError(t, f.rec.RemoveDraft(ctx, anon, d.ID))
	require.NoError(t, f.rec.RemoveDraft(ctx, anon, d.ID))

	count, err := f.rec.BagCount(ctx, anon)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.local.Len(anon.Scope()))
}

func TestRemoveDraft_RollbackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, user, clothOnly("1"))
	require.NoError(t, err)
	_, cancel, err := f.rec.SubscribeCount(ctx, user)
	require.NoError(t, err)
	defer cancel()

	f.flaky.failDeletes(errConnReset)
	require.Error(t, f.rec.RemoveDraft(ctx, user, d.ID))

	count, err := f.rec.BagCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, ok := f.rec.fromView(user.Scope(), d.ID)
	assert.True(t, ok)
}

func TestListDrafts_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for _, l := range []string{"1", "2", "3"} {
		d, err := f.rec.AddDraft(ctx, anon, clothOnly(l))
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	lines, err := f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, ids[2], lines[0].Draft.ID)
	assert.Equal(t, ids[1], lines[1].Draft.ID)
	assert.Equal(t, ids[0], lines[2].Draft.ID)
}

func TestListDrafts_RecomputesStalePrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, anon, clothOnly("2"))
	require.NoError(t, err)
	requireTotal(t, 2100, d.EstimatedPrice)

	require.NoError(t, f.catalog.UpsertFabric(ctx, catalogFabric("cotton", 600)))

	lines, err := f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	requireTotal(t, 2400, lines[0].Price.Total)
	requireTotal(t, 2400, lines[0].Draft.EstimatedPrice)
}

func TestListDrafts_UnpricedWhenCatalogEntryGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := clothOnly("2.5")
	req.Quantity = 2
	_, err := f.rec.AddDraft(ctx, anon, req)
	require.NoError(t, err)

	f.catalog.DeleteDesign("paisley")

	lines, err := f.rec.ListDrafts(ctx, anon)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Unpriced)
	requireTotal(t, 4650, lines[0].LineTotal)
}

func TestMarkSubmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.rec.AddDraft(ctx, user, clothOnly("1"))
	require.NoError(t, err)
	b, err := f.rec.AddDraft(ctx, user, stitched("M"))
	require.NoError(t, err)

	require.ErrorIs(t, f.rec.MarkSubmitted(ctx, anon, []string{a.ID}, "ord-1"), identity.ErrUnauthenticated)

	require.NoError(t, f.rec.MarkSubmitted(ctx, user, []string{a.ID}, "ord-1"))
	require.NoError(t, f.rec.MarkSubmitted(ctx, user, []string{a.ID}, "ord-1"))
	require.ErrorIs(t, f.rec.MarkSubmitted(ctx, user, []string{a.ID}, "ord-2"), draft.ErrSubmitted)

	lines, err := f.rec.ListDrafts(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, b.ID, lines[0].Draft.ID)

	stored, err := f.remote.Get(ctx, user.Scope(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.StatusSubmitted, stored.Status)
	assert.Equal(t, "ord-1", stored.OrderID)

	require.ErrorIs(t, f.rec.UpdateQuantity(ctx, user, a.ID, 2), draft.ErrSubmitted)
	require.ErrorIs(t, f.rec.RemoveDraft(ctx, user, a.ID), draft.ErrSubmitted)
	require.ErrorIs(t, f.rec.UpdateSelections(ctx, user, a.ID, a.Selections), draft.ErrSubmitted)

	_, err = f.remote.Get(ctx, user.Scope(), a.ID)
	require.NoError(t, err)
}

func TestSubscribeCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, cancel, err := f.rec.SubscribeCount(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, 0, recv(t, ch))

	d, err := f.rec.AddDraft(ctx, anon, clothOnly("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, recv(t, ch))

	_, err = f.rec.AddDraft(ctx, anon, clothOnly("2"))
	require.NoError(t, err)
	require.NoError(t, f.rec.RemoveDraft(ctx, anon, d.ID))
	// Only the latest count is kept for a slow reader.
	assert.Equal(t, 1, recv(t, ch))

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestSubscribeCount_RollbackRestoresCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch, cancel, err := f.rec.SubscribeCount(ctx, user)
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 0, recv(t, ch))

	f.flaky.failPuts(errConnReset, false)
	_, err = f.rec.AddDraft(ctx, user, clothOnly("1"))
	require.Error(t, err)
	assert.Equal(t, 0, recv(t, ch))
}

func TestSubscribeCount_ViewLivesWithSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 50 {
		_, err := f.rec.BagCount(ctx, identity.Actor{DeviceID: fmt.Sprintf("dev-%d", i)})
		require.NoError(t, err)
	}
	assert.Zero(t, f.rec.viewCount())

	_, err := f.rec.AddDraft(ctx, anon, clothOnly("1"))
	require.NoError(t, err)
	first, cancelFirst, err := f.rec.SubscribeCount(ctx, anon)
	require.NoError(t, err)
	second, cancelSecond, err := f.rec.SubscribeCount(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, 1, recv(t, first))
	assert.Equal(t, 1, recv(t, second))
	assert.Equal(t, 1, f.rec.viewCount())

	cancelFirst()
	assert.Equal(t, 1, f.rec.viewCount())
	_, err = f.rec.AddDraft(ctx, anon, clothOnly("2"))
	require.NoError(t, err)
	assert.Equal(t, 2, recv(t, second))

	cancelSecond()
	assert.Zero(t, f.rec.viewCount())

	// Without a view the count comes from the store.
	_, err = f.rec.AddDraft(ctx, anon, clothOnly("3"))
	require.NoError(t, err)
	count, err := f.rec.BagCount(ctx, anon)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Zero(t, f.rec.viewCount())
}

func TestUpdateQuantity_ConcurrentSameDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.rec.AddDraft(ctx, anon, clothOnly("1"))
	require.NoError(t, err)
	_, cancel, err := f.rec.SubscribeCount(ctx, anon)
	require.NoError(t, err)
	defer cancel()

	var wg sync.WaitGroup
	for q := 1; q <= 8; q++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.rec.UpdateQuantity(ctx, anon, d.ID, q))
		}()
	}
	wg.Wait()

	stored, err := f.local.Get(ctx, anon.Scope(), d.ID)
	require.NoError(t, err)
	inView, ok := f.rec.fromView(anon.Scope(), d.ID)
	require.True(t, ok)
	assert.Equal(t, stored.Quantity, inView.Quantity)
	assert.Zero(t, f.rec.locks.Len())
}

func recv(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("no count published")
		return -1
	}
}
