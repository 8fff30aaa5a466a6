package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pandam-storefront/internal/backend"
	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
	"github.com/xenking/pandam-storefront/internal/domain/session"
	"github.com/xenking/pandam-storefront/internal/handler"
	"github.com/xenking/pandam-storefront/internal/storage/postgres"
	"github.com/xenking/pandam-storefront/internal/storage/sqlite"
	"github.com/xenking/pandam-storefront/pkg/health"
	"github.com/xenking/pandam-storefront/pkg/httpmiddleware"
)

// Storage is what the storefront persists: device carts and order receipts.
type Storage interface {
	cart.KV
	order.ReceiptStore
	health.Pinger
	Close() error
}

// OpenStorage opens the configured storage driver.
func OpenStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.BackendURL),
		zap.String("storage", cfg.Storage.Driver),
	)

	table, err := pricing.ParseFeeTable(cfg.Pricing.FeeTable)
	if err != nil {
		return errors.Wrap(err, "fee table")
	}
	policy, err := cart.ParseMergePolicy(cfg.Cart.MergePolicy)
	if err != nil {
		return errors.Wrap(err, "merge policy")
	}

	store, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			lg.Warn("Close storage", zap.Error(err))
		}
	}()

	newBackend := func(tokens session.TokenSource) (handler.Backend, error) {
		c, err := backend.NewClient(cfg.BackendURL, tokens,
			backend.WithTimeout(cfg.Backend.Timeout),
			backend.WithTracerProvider(m.TracerProvider()),
			backend.WithMeterProvider(m.MeterProvider()),
			backend.WithLogger(lg.Named("backend")),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	// Fail fast on a malformed backend URL.
	if _, err := newBackend(session.New()); err != nil {
		return errors.Wrap(err, "backend client")
	}

	devices := handler.NewRegistry(store, newBackend,
		handler.WithWindow(cfg.Checkout.Window),
		handler.WithFeeTable(table),
		handler.WithMergePolicy(policy),
		handler.WithSyncTimeout(cfg.Backend.Timeout),
		handler.WithIdleTTL(cfg.Devices.IdleTTL),
		handler.WithReceipts(store),
		handler.WithLogger(lg.Named("devices")),
		handler.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	)
	h := handler.NewHandler(devices, store, table)

	healthSvc := health.New(health.WithLogger(lg.Named("health")))
	healthSvc.Add(health.Readiness, "storage", 5*time.Second, health.PingCheck(store))
	healthSvc.Add(health.Readiness, "backend", 5*time.Second,
		health.ReachableCheck(&http.Client{Timeout: 5 * time.Second}, cfg.BackendURL),
	)
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Backend.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.DeviceHeader},
				ExposeHeaders:    []string{httpmiddleware.DeviceHeader, "X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.DeviceID(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
			}),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Routes(),
			httpmiddleware.Instrument("storefront", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gctx)
	})
	g.Go(func() error {
		return devices.Run(gctx)
	})
	g.Go(func() error {
		// Graceful shutdown: drop readiness, drain, then stop.
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
