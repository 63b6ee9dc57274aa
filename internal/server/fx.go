// Package server builds the application's dependency graph and runs the HTTP
// server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/api"
	"github.com/JakeFAU/product-copy/internal/cache"
	"github.com/JakeFAU/product-copy/internal/clock/system"
	"github.com/JakeFAU/product-copy/internal/config"
	"github.com/JakeFAU/product-copy/internal/content"
	"github.com/JakeFAU/product-copy/internal/extract"
	collyfetcher "github.com/JakeFAU/product-copy/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/product-copy/internal/fetcher/headless"
	openaigen "github.com/JakeFAU/product-copy/internal/generator/openai"
	"github.com/JakeFAU/product-copy/internal/hash/sha256"
	"github.com/JakeFAU/product-copy/internal/id/uuid"
	"github.com/JakeFAU/product-copy/internal/logging"
	"github.com/JakeFAU/product-copy/internal/metrics"
	"github.com/JakeFAU/product-copy/internal/policy/ratelimit"
	"github.com/JakeFAU/product-copy/internal/product"
	gcppublisher "github.com/JakeFAU/product-copy/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/product-copy/internal/storage/gcs"
	localstorage "github.com/JakeFAU/product-copy/internal/storage/local"
	memorystorage "github.com/JakeFAU/product-copy/internal/storage/memory"
	pgstore "github.com/JakeFAU/product-copy/internal/storage/postgres"
	"github.com/JakeFAU/product-copy/internal/urlnorm"
)

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	products  *product.Service
	content   *content.Service
	apiServer *api.Server
	publisher *gcppublisher.Publisher
	storage   *storage.Client
	pgCache   *pgstore.CacheStore
	readiness []api.Option
}

// FetchProduct runs one product retrieval.
func (a *App) FetchProduct(ctx context.Context, raw string) product.Result {
	return a.products.FetchProduct(ctx, raw)
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and blocks until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases external clients. It is safe to call more than once.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.publisher = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.pgCache != nil {
		a.pgCache.Close()
		a.pgCache = nil
	}
	_ = a.logger.Sync()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger creates the application's dependencies using logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("merchant", cfg.Merchant.Domain),
		zap.String("fetch_policy", string(cfg.FetchPolicy())),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	clock := system.New()
	normalizer, err := urlnorm.New(urlnorm.Config{Domain: cfg.Merchant.Domain, ForceWWW: cfg.Merchant.ForceWWW})
	if err != nil {
		return nil, fmt.Errorf("url normalizer init failed: %w", err)
	}

	productCache, err := setupCache(ctx, app, clock)
	if err != nil {
		app.Close()
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	static, dynamic, err := setupFetchers(app)
	if err != nil {
		app.Close()
		return nil, err
	}

	deps := product.Dependencies{
		Normalizer: normalizer,
		Static:     static,
		Extractor:  extract.New(logger.Named("extract")),
		Hasher:     sha256.New(),
		IDs:        uuid.NewGenerator(),
		Clock:      clock,
		Logger:     logger.Named("product"),
	}
	if dynamic != nil {
		deps.Dynamic = dynamic
	}
	if productCache != nil {
		deps.Cache = productCache
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	app.products, err = product.NewService(product.ServiceConfig{
		Policy:       cfg.FetchPolicy(),
		FetchTimeout: cfg.FetchTimeout(),
		EventTopic:   cfg.Fetch.EventTopic,
	}, deps)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("product service init failed: %w", err)
	}

	app.content = content.NewService(setupGenerator(app), time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second, logger.Named("content"))
	app.apiServer = api.NewServer(app.products, app.content, *cfg, logger.Named("api"), app.readiness...)
	return app, nil
}

func setupCache(ctx context.Context, app *App, clock product.Clock) (product.Cache, error) {
	cfg := app.cfg
	cacheCfg := cache.Config{TTL: cfg.CacheTTL()}
	cacheLogger := app.logger.Named("cache")

	var snap cache.Snapshotter
	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		app.logger.Warn("product cache disabled")
		return nil, nil
	case config.CacheBackendPostgres:
		store, err := pgstore.NewCacheStore(ctx, pgstore.CacheStoreConfig{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
			TTL:      cfg.CacheTTL(),
		}, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres cache init failed: %w", err)
		}
		app.pgCache = store
		app.readiness = append(app.readiness, api.WithReadiness("postgres", store.Ping))
		app.logger.Info("using postgres cache backend", zap.String("table", cfg.Postgres.Table))
		return store, nil
	case config.CacheBackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		gcsSnap, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCS.Bucket, Object: cfg.GCS.Object})
		if err != nil {
			return nil, fmt.Errorf("gcs snapshot init failed: %w", err)
		}
		app.logger.Info("using GCS cache backend", zap.String("uri", gcsSnap.URI()))
		snap = gcsSnap
	case config.CacheBackendMemory:
		app.logger.Info("using in-memory cache backend")
		snap = memorystorage.NewSnapshotter()
	default:
		fileSnap, err := localstorage.New(localstorage.Config{Path: cfg.Cache.Path})
		if err != nil {
			return nil, fmt.Errorf("local cache init failed: %w", err)
		}
		app.logger.Info("using file cache backend", zap.String("path", cfg.Cache.Path))
		snap = fileSnap
	}

	store, err := cache.New(snap, cacheCfg, clock, cacheLogger)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (product.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub project configured, fetch events are not published")
		return nil, nil
	}
	client, err := gcppublisher.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(client, app.cfg.Fetch.EventTopic)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.Fetch.EventTopic),
	)
	return app.publisher, nil
}

func setupFetchers(app *App) (static, dynamic product.Fetcher, err error) {
	cfg := app.cfg
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Fetch.RatePerSecond, Burst: cfg.Fetch.RateBurst})
	page := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Static.UserAgent,
		AcceptLanguage: cfg.Static.AcceptLanguage,
		Timeout:        time.Duration(cfg.Static.TimeoutSeconds) * time.Second,
		SkipWarmUp:     cfg.Static.SkipWarmUp,
	}, app.logger.Named("static"))
	static = ratelimit.Wrap(page, limiter)

	if !cfg.Headless.Enabled {
		app.logger.Info("headless fetcher disabled")
		return static, nil, nil
	}
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:         cfg.Headless.UserAgent,
		ExecPath:          cfg.Headless.ExecPath,
		NoSandbox:         cfg.Headless.NoSandbox,
		SettleDelay:       time.Duration(cfg.Headless.SettleMillis) * time.Millisecond,
		ProbeTimeout:      time.Duration(cfg.Headless.ProbeTimeoutSeconds) * time.Second,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
		ProbeSelectors:    cfg.Headless.ProbeSelectors,
	}, app.logger.Named("headless"))
	if err != nil {
		return nil, nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	app.logger.Info("using headless fetcher", zap.Duration("settle", time.Duration(cfg.Headless.SettleMillis)*time.Millisecond))
	return static, ratelimit.Wrap(headless, limiter), nil
}

func setupGenerator(app *App) product.ContentGenerator {
	if app.cfg.OpenAI.APIKey == "" {
		app.logger.Warn("OPENAI_API_KEY not set, content generation disabled")
		return nil
	}
	gen, err := openaigen.New(openaigen.Config{
		APIKey:     app.cfg.OpenAI.APIKey,
		BaseURL:    app.cfg.OpenAI.BaseURL,
		Model:      app.cfg.OpenAI.Model,
		Timeout:    time.Duration(app.cfg.OpenAI.TimeoutSeconds) * time.Second,
		MaxRetries: app.cfg.OpenAI.MaxRetries,
	}, app.logger.Named("openai"))
	if err != nil {
		app.logger.Warn("openai generator init failed", zap.Error(err))
		return nil
	}
	return gen
}
