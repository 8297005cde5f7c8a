// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bissquit/mediahook/api/openapi"
	"github.com/bissquit/mediahook/internal/classify"
	"github.com/bissquit/mediahook/internal/config"
	"github.com/bissquit/mediahook/internal/dedup"
	dedupredis "github.com/bissquit/mediahook/internal/dedup/redis"
	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/bissquit/mediahook/internal/notifications"
	"github.com/bissquit/mediahook/internal/pkg/ctxlog"
	"github.com/bissquit/mediahook/internal/pkg/httputil"
	"github.com/bissquit/mediahook/internal/pkg/metrics"
	"github.com/bissquit/mediahook/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	store         dedup.Store
	redisStore    *dedupredis.Store
	metaCache     enrich.Cache
	metaClose     func()
	service       *notifications.Service
	scheduler     *notifications.Scheduler
	server        *http.Server
	metricsServer *http.Server
	bgCancel      context.CancelFunc
	bgWG          sync.WaitGroup
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initStore(); err != nil {
		return nil, fmt.Errorf("init dedup store: %w", err)
	}

	if err := app.initMetadataCache(); err != nil {
		app.closeStore()
		return nil, fmt.Errorf("init metadata cache: %w", err)
	}

	router, err := app.setupRouter()
	if err != nil {
		app.closeStore()
		app.metaClose()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort)),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	build := version.Get()
	metrics.BuildInfo.WithLabelValues(build.Version, build.Commit, cfg.Delivery.Platform).Set(1)

	return app, nil
}

func (a *App) initStore() error {
	switch a.config.Dedup.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		store, err := dedupredis.New(ctx, dedupredis.Config{
			Addr:      a.config.Dedup.Redis.Addr,
			Password:  a.config.Dedup.Redis.Password,
			DB:        a.config.Dedup.Redis.DB,
			KeyPrefix: a.config.Dedup.Redis.KeyPrefix,
		})
		if err != nil {
			return err
		}
		a.store = store
		a.redisStore = store
	default:
		a.store = dedup.NewMemoryStore()
	}

	a.logger.Info("dedup store configured",
		"backend", a.config.Dedup.Backend,
		"ttl", a.config.Dedup.TTL,
	)
	return nil
}

func (a *App) initMetadataCache() error {
	a.metaClose = func() {}
	if !a.config.Enrich.Enabled {
		return nil
	}

	timeout := a.config.Enrich.MetadataCache.Postgres.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cache, closeFn, err := buildMetadataCache(ctx, a.config.Enrich.MetadataCache)
	if err != nil {
		return err
	}
	a.metaCache = cache
	a.metaClose = closeFn
	return nil
}

func (a *App) closeStore() {
	if a.redisStore != nil {
		if err := a.redisStore.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
}

// Run starts the background workers and both HTTP servers. It returns when
// both servers have stopped; a failing server closes the other one.
func (a *App) Run() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel

	a.scheduler.Start(bgCtx)

	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		dedup.RunSweeper(bgCtx, a.store, a.config.Dedup.SweepInterval)
	}()

	var g errgroup.Group

	g.Go(func() error {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = a.server.Close()
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("starting server",
			"host", a.config.Server.Host,
			"port", a.config.Server.Port,
			"webhook_path", a.config.Webhook.Path,
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = a.metricsServer.Close()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown stops accepting webhooks, flushes the queue and shuts both
// servers down.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.service.Close()

	// The scheduler performs its final flush before returning.
	a.scheduler.Stop()

	if a.bgCancel != nil {
		a.bgCancel()
	}
	a.bgWG.Wait()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.closeStore()
	a.metaClose()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scheduler returns the batch scheduler. Used in tests to trigger a drain.
func (a *App) Scheduler() *notifications.Scheduler {
	return a.scheduler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Spec)
	})

	registry, err := buildRegistry(a.config.Delivery)
	if err != nil {
		return nil, fmt.Errorf("build delivery registry: %w", err)
	}
	adapter := registry.Resolve(a.config.Delivery.Platform)
	caps := adapter.Capability()

	translator, err := buildTranslator(a.config.Enrich.Translate, a.config.Display.Language)
	if err != nil {
		return nil, fmt.Errorf("build overview translator: %w", err)
	}

	enricher, err := buildEnricher(a.config.Enrich, a.metaCache, translator)
	if err != nil {
		return nil, fmt.Errorf("build enrichment pipeline: %w", err)
	}

	renderer, err := notifications.NewRenderer(notifications.RendererConfig{
		Platform:           a.config.Delivery.Platform,
		ShowPlatformPrefix: a.config.Display.ShowPlatformPrefix,
		ShowSourceLabel:    a.config.Display.ShowSourceLabel,
		Language:           a.config.Display.Language,
		SynopsisMaxRunes:   a.config.Display.SynopsisMaxRunes,
	})
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	slog.Info("notifications configured",
		"platform", a.config.Delivery.Platform,
		"adapter", caps.Platform,
		"merge_forward", caps.SupportsMergeForward,
		"force_individual", a.config.Delivery.ForceIndividual,
		"enrichment", enricher != nil,
	)

	queue := notifications.NewQueue()

	a.service = notifications.NewService(notifications.ServiceConfig{
		DedupTTL: a.config.Dedup.TTL,
		Compact:  !caps.SupportsMergeForward,
	}, notifications.ServiceDeps{
		Decoder:       classify.NewDecoder(a.config.Classify.TemplateThreshold),
		Fingerprinter: dedup.NewFingerprinter(a.config.Dedup.VolatileKeys...),
		Store:         a.store,
		Classifier:    classify.New(classify.Options{MarkerThreshold: a.config.Classify.MarkerThreshold}),
		Enricher:      enricher,
		Renderer:      renderer,
		Queue:         queue,
	})

	a.scheduler = notifications.NewScheduler(notifications.SchedulerConfig{
		Interval:        a.config.Batch.Interval,
		MinBatchSize:    a.config.Batch.MinSize,
		ForceIndividual: a.config.Delivery.ForceIndividual,
		FlushOnShutdown: a.config.Batch.FlushOnShutdown,
		FlushTimeout:    a.config.Server.ShutdownTimeout,
	}, queue, adapter)

	notifications.NewHandler(a.service, a.config.Webhook.Path, a.config.Webhook.MaxBodyBytes).RegisterRoutes(r)

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.service.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Dedup store unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
