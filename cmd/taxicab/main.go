// Package main wires together the harvest service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taxicab/internal/api"
	"taxicab/internal/cache"
	"taxicab/internal/config"
	"taxicab/internal/fetcher"
	collyfetcher "taxicab/internal/fetcher/colly"
	"taxicab/internal/fetcher/zyte"
	"taxicab/internal/harvest"
	"taxicab/internal/logging"
	"taxicab/internal/policy"
	"taxicab/internal/publisher"
	"taxicab/internal/resolve"
	"taxicab/internal/storage"
	gcsstorage "taxicab/internal/storage/gcs"
	memorystorage "taxicab/internal/storage/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := newBlobProvider(ctx, cfg)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}

	resolver, crosswalk, pool, err := loadPolicies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("policy load failed", zap.Error(err))
	}
	if pool != nil {
		defer pool.Close()
	}

	store := cache.NewStore(blobs, cache.Buckets{
		HTML:            cfg.Storage.HTMLBucket,
		PDF:             cfg.Storage.PDFBucket,
		LegacyPDF:       cfg.Storage.LegacyPDF,
		LegacyPublisher: cfg.Storage.LegacyPublisher,
		LegacyRepo:      cfg.Storage.LegacyRepo,
	}, crosswalk, logger.Named("cache"))

	probe := resolve.NewProbe(resolve.Config{
		Timeout:   cfg.ResolveTimeout(),
		UserAgent: cfg.Fetch.UserAgent,
	}, logger.Named("resolve"))

	router, err := newFetchRouter(cfg, logger)
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}

	var notifier publisher.Provider
	if cfg.PubSub.Enabled {
		pub, err := publisher.NewPubSubProvider(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		}()
		notifier = pub
	}

	harvester := harvest.New(harvest.Options{
		Cache:     store,
		Policies:  resolver,
		Probe:     probe,
		Fetcher:   router,
		Publisher: notifier,
		Retry: harvest.RetryPolicy{
			MaxAttempts: cfg.Fetch.MaxRetries,
			BaseDelay:   time.Duration(cfg.Fetch.BackoffInitialMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
		},
		Logger: logger.Named("harvest"),
	})

	apiServer := api.NewServer(harvester, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newBlobProvider(ctx context.Context, cfg config.Config) (storage.Provider, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcsstorage.New(client)
	case "memory":
		return memorystorage.New(), nil
	default:
		return storage.NoOpProvider{}, nil
	}
}

// loadPolicies connects to Postgres and loads the fetch-policy table and the
// legacy crosswalk. Without a DSN the service runs with bypass-only policies
// and no legacy cache tiers.
func loadPolicies(ctx context.Context, cfg config.Config, logger *zap.Logger) (*policy.Resolver, *cache.Crosswalk, *pgxpool.Pool, error) {
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using bypass-only fetch policies")
		return policy.NewResolver(nil), nil, nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	policies, err := policy.Load(ctx, pool, cfg.DB.PolicyTable)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	logger.Info("fetch policies loaded", zap.Int("count", len(policies)))

	crosswalk := cache.NewCrosswalk()
	if err := crosswalk.Load(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return policy.NewResolver(policies), crosswalk, pool, nil
}

func newFetchRouter(cfg config.Config, logger *zap.Logger) (*fetcher.Router, error) {
	direct, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	if err != nil {
		return nil, err
	}

	router := &fetcher.Router{Direct: direct}

	if cfg.Fetch.ProxyURL != "" {
		proxy, err := collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			ProxyURL:  cfg.Fetch.ProxyURL,
		})
		if err != nil {
			return nil, err
		}
		router.Proxy = proxy
	}

	if cfg.Fetch.APIKey != "" {
		router.API = zyte.New(zyte.Config{
			APIURL:  cfg.Fetch.APIURL,
			APIKey:  cfg.Fetch.APIKey,
			Timeout: cfg.FetchTimeout(),
		}, logger.Named("zyte"))
	}

	return router, nil
}
