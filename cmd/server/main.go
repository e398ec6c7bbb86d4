package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/fairkeep/internal/auth"
	"github.com/mmynk/fairkeep/internal/cache"
	"github.com/mmynk/fairkeep/internal/config"
	"github.com/mmynk/fairkeep/internal/contacts"
	"github.com/mmynk/fairkeep/internal/ledger"
	"github.com/mmynk/fairkeep/internal/metrics"
	"github.com/mmynk/fairkeep/internal/middleware"
	"github.com/mmynk/fairkeep/internal/service"
	"github.com/mmynk/fairkeep/internal/storage/sqlstore"
	"github.com/mmynk/fairkeep/pkg/api/apiconnect"
	"github.com/mmynk/fairkeep/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info")
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	balanceCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	m := metrics.New()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	graph := contacts.NewService(store)
	ledgerSvc := ledger.NewService(store, graph, ledger.WithCache(balanceCache), ledger.WithMetrics(m))
	authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, slog.Default())

	// Metrics sees every call, logging runs after auth so the user is known.
	public := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)
	protected := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())
	r.With(middleware.RequireAuthHTTP(jwtManager)).
		Get(service.ExportPath, service.NewExportHandler(ledgerSvc, store).ServeHTTP)

	r.Mount(apiconnect.NewAuthServiceHandler(authSvc, public))
	r.Mount(apiconnect.NewContactServiceHandler(service.NewContactService(graph, store), protected))
	r.Mount(apiconnect.NewLedgerServiceHandler(service.NewLedgerService(ledgerSvc), protected))

	// h2c serves HTTP/2 without TLS for gRPC clients.
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: h2c.NewHandler(r, &http2.Server{}),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err := sqlstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", cfg.DBDriver)
		return store, nil
	default:
		store, err := sqlstore.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		slog.Info("Storage initialized", "driver", cfg.DBDriver, "database", cfg.DBPath)
		return store, nil
	}
}

// openCache returns Redis when REDIS_URL is set and an in-process cache otherwise.
func openCache(ctx context.Context, cfg *config.Config) (cache.BalanceCache, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("Balance cache in memory", "ttl", cfg.BalanceCacheTTL)
		return cache.NewInMemoryCache(cfg.BalanceCacheTTL), func() {}, nil
	}

	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.BalanceCacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("Balance cache in redis", "ttl", cfg.BalanceCacheTTL)
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			slog.Warn("Failed to close redis", "error", err)
		}
	}, nil
}
