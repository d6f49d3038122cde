package bag

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xenking/stitchbag/internal/domain/catalog"
	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/pricing"
	"github.com/xenking/stitchbag/internal/storage/memory"
)

// flakyStore fails writes on demand. With landed set, a failing Put still
// reaches the wrapped store, as when a response is lost after the write.
type flakyStore struct {
	draft.Store

	mu        sync.Mutex
	putHook   func(d *draft.Draft) error
	landed    bool
	deleteErr error
}

func (s *flakyStore) Put(ctx context.Context, scope identity.Scope, d *draft.Draft) error {
	s.mu.Lock()
	hook, landed := s.putHook, s.landed
	s.mu.Unlock()
	if hook != nil {
		if err := hook(d); err != nil {
			if landed {
				_ = s.Store.Put(ctx, scope, d)
			}
			return err
		}
	}
	return s.Store.Put(ctx, scope, d)
}

func (s *flakyStore) Delete(ctx context.Context, scope identity.Scope, id string) error {
	s.mu.Lock()
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Delete(ctx, scope, id)
}

func (s *flakyStore) failPuts(err error, landed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.landed = landed
	if err == nil {
		s.putHook = nil
		return
	}
	s.putHook = func(*draft.Draft) error { return err }
}

func (s *flakyStore) onPut(hook func(d *draft.Draft) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.landed = false
	s.putHook = hook
}

func (s *flakyStore) failDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

type fixture struct {
	catalog *memory.Catalog
	local   *memory.DraftStore
	remote  *memory.DraftStore
	flaky   *flakyStore
	markers *memory.MarkerStore
	rec     *Reconciler
}

var (
	anon = identity.Actor{DeviceID: "dev-1"}
	user = identity.Actor{DeviceID: "dev-1", UserID: "user-1"}
)

func seedCatalog(t *testing.T, c *memory.Catalog) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.UpsertDesign(ctx, catalog.Design{
		ID: "paisley", Name: "Kashmiri Paisley", Category: "floral",
		Complexity: catalog.ComplexityComplex, BasePrice: decimal.NewFromInt(900),
	}))
	require.NoError(t, c.UpsertDesign(ctx, catalog.Design{
		ID: "lotus", Name: "Lotus Border", Category: "border",
		Complexity: "unlisted", BasePrice: decimal.NewFromInt(700),
	}))
	require.NoError(t, c.UpsertPricingTier(ctx, catalog.ComplexityComplex, decimal.NewFromInt(1200)))
	require.NoError(t, c.UpsertFabric(ctx, catalog.Fabric{ID: "cotton", Name: "Cotton", PricePerMeter: decimal.NewFromInt(450)}))
	require.NoError(t, c.UpsertFabric(ctx, catalog.Fabric{ID: "silk", Name: "Silk", PricePerMeter: decimal.NewFromInt(500)}))
	require.NoError(t, c.UpsertFabricColor(ctx, catalog.FabricColor{ID: "indigo", FabricID: "cotton", Name: "Indigo"}))
	require.NoError(t, c.UpsertFabricColor(ctx, catalog.FabricColor{ID: "ivory", FabricID: "silk", Name: "Ivory"}))
	require.NoError(t, c.UpsertGarmentType(ctx, catalog.GarmentType{
		ID: "kurta", Name: "Kurta",
		BaseStitchingPrice:       decimal.NewFromInt(800),
		DefaultFabricConsumption: decimal.NewFromInt(3),
	}))
	require.NoError(t, c.UpsertStandardSize(ctx, catalog.StandardSize{ID: "M", Label: "M", ExtraPrice: decimal.Zero}))
	require.NoError(t, c.UpsertStandardSize(ctx, catalog.StandardSize{ID: "XXL", Label: "XXL", ExtraPrice: decimal.NewFromInt(250)}))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: memory.NewCatalog(),
		local:   memory.NewDraftStore(),
		remote:  memory.NewDraftStore(),
		markers: memory.NewMarkerStore(),
	}
	seedCatalog(t, f.catalog)
	f.flaky = &flakyStore{Store: f.remote}

	var (
		mu  sync.Mutex
		now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
		seq int
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("draft-%d", seq)
	}

	quoter := pricing.NewQuoter(f.catalog, pricing.NewEngine(pricing.DefaultRules()))
	rec, err := NewReconciler(
		Stores{Local: f.local, Remote: f.flaky},
		quoter,
		f.markers,
		WithClock(clock),
		WithIDGenerator(ids),
	)
	require.NoError(t, err)
	f.rec = rec
	return f
}

func clothOnly(length string) AddRequest {
	return AddRequest{
		ServiceType: draft.ClothOnly,
		DesignID:    "paisley",
		Selections: draft.Selections{
			FabricID: "cotton",
			ColorID:  "indigo",
			Length:   decimal.RequireFromString(length),
		},
	}
}

func stitched(size string) AddRequest {
	return AddRequest{
		ServiceType: draft.EmbroideryStitching,
		DesignID:    "paisley",
		Selections: draft.Selections{
			FabricID:  "silk",
			ColorID:   "ivory",
			GarmentID: "kurta",
			Size:      &draft.Size{StandardSizeID: size},
		},
	}
}

func requireTotal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.NewFromInt(want).Equal(got), "expected %d, got %s", want, got)
}

func catalogFabric(id string, pricePerMeter int64) catalog.Fabric {
	return catalog.Fabric{ID: id, Name: id, PricePerMeter: decimal.NewFromInt(pricePerMeter)}
}
