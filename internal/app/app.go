package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/stitchbag/internal/auth"
	"github.com/xenking/stitchbag/internal/domain/bag"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/order"
	"github.com/xenking/stitchbag/internal/domain/pricing"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
	"github.com/xenking/stitchbag/internal/handler"
	"github.com/xenking/stitchbag/internal/optimistic"
	"github.com/xenking/stitchbag/internal/storage/postgres"
	"github.com/xenking/stitchbag/pkg/health"
	"github.com/xenking/stitchbag/pkg/httpmiddleware"
)

const pingTimeout = 5 * time.Second

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close(ctx)

	// Health check service.
	healthSvc := health.New()
	st.addReadinessChecks(healthSvc)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	h, err := newHandler(cfg, m.TracerProvider(), m.MeterProvider(), st)
	if err != nil {
		return err
	}
	router := newRouter(ctx, lg, cfg, healthSvc, h)

	// WriteTimeout stays unset: bag count streams hold the response open.
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(router, "stitchbag",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newRouter mounts the probes and the API. CORS runs globally so that
// preflight requests reach it; probes skip request logging and rate limiting.
func newRouter(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health, h *handler.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.DeviceHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Warning"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           24 * time.Hour,
		}),
	)
	hs.Register(router)

	api := router.Group("",
		httpmiddleware.LogRequests(),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	)
	h.Register(api)
	return router
}

// newHandler builds the domain services on top of the opened stores.
func newHandler(cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider, st *stores) (*handler.Handler, error) {
	fee, err := cfg.StitchingFee()
	if err != nil {
		return nil, err
	}
	quoter := pricing.NewQuoter(
		postgres.NewCatalogRepository(st.pool),
		pricing.NewEngine(pricing.Rules{StitchingFee: fee}),
	)
	markers := st.local.Markers()

	reconciler, err := bag.NewReconciler(bag.Stores{
		Local:  st.local.Drafts(),
		Remote: postgres.NewDraftStore(st.pool),
	}, quoter, markers, bag.WithTelemetry(tp, mp))
	if err != nil {
		return nil, errors.Wrap(err, "create reconciler")
	}

	runner, err := optimistic.NewRunner(tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create wishlist runner")
	}
	mirror := wishlist.NewMirror(wishlist.Stores{
		Local:  st.local.Wishlist(),
		Remote: st.wishlist,
	}, markers, runner)

	tokens, err := auth.NewTokenVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		return nil, errors.Wrap(err, "create token verifier")
	}
	resolver := identity.NewResolver(tokens, markers)
	resolver.OnTransition(migrateBag(reconciler))
	resolver.OnTransition(migrateWishlist(mirror))

	orders := order.NewService(reconciler, postgres.NewOrderRepository(st.pool), order.MockGateway{}, cfg.Currency)
	return handler.NewHandler(resolver, reconciler, mirror, orders), nil
}

func migrateBag(r *bag.Reconciler) identity.TransitionHandler {
	return func(ctx context.Context, t identity.Transition) error {
		if _, err := r.MigrateAnonymousToUser(ctx, t.DeviceID, t.UserID); err != nil {
			return errors.Wrap(err, "migrate bag")
		}
		return nil
	}
}

func migrateWishlist(m *wishlist.Mirror) identity.TransitionHandler {
	return func(ctx context.Context, t identity.Transition) error {
		if _, err := m.Migrate(ctx, t.DeviceID, t.UserID); err != nil {
			return errors.Wrap(err, "migrate wishlist")
		}
		return nil
	}
}
