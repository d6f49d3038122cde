package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/auth"
	"github.com/xenking/stitchbag/internal/domain/bag"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/order"
	"github.com/xenking/stitchbag/internal/domain/pricing"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
	"github.com/xenking/stitchbag/internal/handler"
	"github.com/xenking/stitchbag/internal/optimistic"
	"github.com/xenking/stitchbag/internal/storage/memory"
	"github.com/xenking/stitchbag/pkg/health"
	"github.com/xenking/stitchbag/pkg/httpmiddleware"
)

type noOrders struct{}

func (noOrders) Create(context.Context, *order.Order) error { return nil }

func memoryHandler(t *testing.T) *handler.Handler {
	t.Helper()
	markers := memory.NewMarkerStore()
	quoter := pricing.NewQuoter(memory.NewCatalog(), pricing.NewEngine(pricing.DefaultRules()))
	rec, err := bag.NewReconciler(bag.Stores{Local: memory.NewDraftStore(), Remote: memory.NewDraftStore()}, quoter, markers)
	require.NoError(t, err)
	runner, err := optimistic.NewRunner(nil, nil)
	require.NoError(t, err)
	mirror := wishlist.NewMirror(wishlist.Stores{Local: memory.NewWishlistStore(), Remote: memory.NewWishlistStore()}, markers, runner)
	tokens, err := auth.NewTokenVerifier([]byte("secret"), "stitchbag")
	require.NoError(t, err)
	resolver := identity.NewResolver(tokens, markers)
	resolver.OnTransition(migrateBag(rec))
	resolver.OnTransition(migrateWishlist(mirror))
	return handler.NewHandler(resolver, rec, mirror, order.NewService(rec, noOrders{}, order.MockGateway{}, "INR"))
}

func TestRouter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := validConfig()
	cfg.RateLimit = RateLimitConfig{Max: 2, Window: time.Minute}
	cfg.CORS = CORSConfig{Origins: []string{"https://shop.example"}}

	hs := health.New()
	hs.SetReady(true)
	router := newRouter(ctx, zap.NewNop(), cfg, hs, memoryHandler(t))

	serve := func(method, path string, header http.Header) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	device := http.Header{handler.DeviceHeader: {"dev-1"}}

	t.Run("APIIsRateLimited", func(t *testing.T) {
		for range 2 {
			w := serve(http.MethodGet, "/api/bag/count", device)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(httpmiddleware.RequestIDHeader))
		}
		w := serve(http.MethodGet, "/api/bag/count", device)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("ProbesAreNotLimited", func(t *testing.T) {
		for range 5 {
			assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/livez", device).Code)
			assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/readyz", device).Code)
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		w := serve(http.MethodOptions, "/api/bag", http.Header{
			"Origin":                         {"https://shop.example"},
			"Access-Control-Request-Method":  {http.MethodPost},
			"Access-Control-Request-Headers": {handler.DeviceHeader},
		})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
