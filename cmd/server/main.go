package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-cart/internal/bundle"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/catalog"
	"storefront-cart/internal/config"
	"storefront-cart/internal/db"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/metrics"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/transport"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc    = db.NewDatabase
	initRedisFunc = func(cfg *config.Config) redis.UniversalClient {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	startServerFunc = func(srv *http.Server) error {
		return srv.ListenAndServe()
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	var database *sql.DB
	if cfg.NeedsDatabase() {
		database, err = initDBFunc(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	persister, cleanup, err := newPersister(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer cleanup()

	reader, err := newCatalog(ctx, cfg, database)
	if err != nil {
		return err
	}

	pricing, err := newPricing(cfg)
	if err != nil {
		return err
	}

	sessions, err := cart.NewSessions(persister, pricing, cfg.SessionCacheSize, cart.WithMetrics(m))
	if err != nil {
		return err
	}
	handler := transport.NewHandler(sessions, bundle.NewResolver(reader, m))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(cfg, handler, limiter, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.CartStorage),
			zap.String("catalog", cfg.CatalogSource),
		)
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupRouter(cfg *config.Config, h *transport.Handler, limiter *middleware.RateLimiter, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(middleware.SessionMiddleware(cfg.SessionTTL))
		r.Mount("/cart", h.Routes())
	})

	return r
}

func newPersister(ctx context.Context, cfg *config.Config, database *sql.DB) (cart.Persister, func(), error) {
	noop := func() {}

	switch cfg.CartStorage {
	case config.StorageRedis:
		client := initRedisFunc(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("redis unavailable: %w", err)
		}
		return cart.NewRedisPersister(client, cfg.SessionTTL), func() { client.Close() }, nil
	case config.StoragePostgres:
		return cart.NewPostgresPersister(database), noop, nil
	case config.StorageMemory:
		logger.L().Warn("cart storage is in-memory, carts are lost on restart")
		return cart.NewMemoryPersister(), noop, nil
	}
	return nil, noop, fmt.Errorf("%w: %q", config.ErrUnknownStorage, cfg.CartStorage)
}

func newCatalog(ctx context.Context, cfg *config.Config, database *sql.DB) (catalog.Reader, error) {
	if cfg.CatalogSource == config.CatalogPostgres {
		return catalog.NewRepository(database), nil
	}

	snapshot, err := catalog.LoadSnapshot(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	go watchCatalogFile(ctx, snapshot, cfg.CatalogFile)
	return snapshot, nil
}

// watchCatalogFile reloads the snapshot on SIGHUP until ctx is done.
func watchCatalogFile(ctx context.Context, snapshot *catalog.Snapshot, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log := logger.L().With(zap.String("catalog_file", path))
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := snapshot.Reload(path); err != nil {
				log.Error("catalog reload failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			log.Info("catalog reloaded")
		}
	}
}

func newPricing(cfg *config.Config) (cart.Pricing, error) {
	policy, err := cart.ParseDiscountPolicy(cfg.DiscountPolicy)
	if err != nil {
		return cart.Pricing{}, err
	}
	return cart.Pricing{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
		DiscountPolicy:        policy,
	}, nil
}
