// Package server builds the iconshelf service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/api"
	"github.com/JakeFAU/iconshelf/internal/clock/system"
	"github.com/JakeFAU/iconshelf/internal/config"
	"github.com/JakeFAU/iconshelf/internal/dispatcher"
	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/exportjob"
	collyfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/colly"
	localfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/local"
	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/id/uuid"
	"github.com/JakeFAU/iconshelf/internal/index"
	"github.com/JakeFAU/iconshelf/internal/metrics"
	"github.com/JakeFAU/iconshelf/internal/policy/ratelimit"
	"github.com/JakeFAU/iconshelf/internal/policy/simple"
	"github.com/JakeFAU/iconshelf/internal/progress"
	progresssinks "github.com/JakeFAU/iconshelf/internal/progress/sinks"
	pspub "github.com/JakeFAU/iconshelf/internal/publisher/pubsub"
	memqueue "github.com/JakeFAU/iconshelf/internal/queue/memory"
	"github.com/JakeFAU/iconshelf/internal/status"
	"github.com/JakeFAU/iconshelf/internal/storage"
	"github.com/JakeFAU/iconshelf/internal/storage/memory"
	"github.com/JakeFAU/iconshelf/internal/storage/postgres"
	"github.com/JakeFAU/iconshelf/internal/web"
	"github.com/JakeFAU/iconshelf/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	catalog     *index.Catalog
	apiServer   *api.Server
	dispatch    *dispatcher.Dispatcher
	progressHub *progress.Hub
	queue       *memqueue.Queue
	closers     []io.Closer
}

// Build creates the application's dependencies against the default
// Prometheus registry.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return build(ctx, cfg, logger, afero.NewOsFs(), prometheus.DefaultRegisterer)
}

func build(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
	fsys afero.Fs,
	reg prometheus.Registerer,
) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)

	catalog, err := setupCatalog(ctx, cfg, fsys, logger.Named("index"))
	if err != nil {
		return nil, err
	}
	app.catalog = catalog

	fetcher, err := NewFetcher(cfg, fsys, logger.Named("fetcher"))
	if err != nil {
		return nil, err
	}

	app.progressHub, err = NewProgressHub(cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	successTTL, failureTTL, progressTTL, completeTTL := cfg.Status.TTLs()
	board := status.NewBoard(status.Config{
		SuccessTTL:  successTTL,
		FailureTTL:  failureTTL,
		ProgressTTL: progressTTL,
		CompleteTTL: completeTTL,
	}, system.New().Func())

	blobStore, closer, err := storage.Open(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		BaseDir:   cfg.Storage.BaseDir,
		GCSBucket: cfg.Storage.GCSBucket,
	}, logger.Named("storage"))
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	app.closers = append(app.closers, closer)

	single := export.NewSingle(fetcher, board, export.SingleConfig{PNGSize: cfg.Export.PNGSize}, logger.Named("export"))
	drawio := export.NewDrawIO(fetcher, app.progressHub, board, export.DrawIOConfig{
		BatchSize:  cfg.Export.BatchSize,
		BatchPause: cfg.Export.BatchPause(),
		FileName:   cfg.Export.FileName,
	}, logger.Named("export"))

	jobStore, err := app.openJobStore(ctx)
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	publisher, err := app.openPublisher(ctx)
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}

	app.queue = memqueue.NewQueue(cfg.Export.QueueDepth)
	workers := make([]*worker.Worker, 0, cfg.Export.Workers)
	for i := 0; i < cfg.Export.Workers; i++ {
		w := worker.New(
			app.queue,
			jobStore,
			blobStore,
			drawio,
			logger.Named("worker").With(zap.Int("index", i)),
		)
		if publisher != nil {
			w.WithPublisher(publisher, cfg.Notify.Topic)
		}
		workers = append(workers, w)
	}
	app.dispatch = dispatcher.New(app.queue, jobStore, uuid.NewUUIDGenerator(), workers)
	logger.Info("export workers configured",
		zap.Int("workers", cfg.Export.Workers),
		zap.Int("queue_depth", cfg.Export.QueueDepth),
		zap.Int("batch_size", cfg.Export.BatchSize),
	)

	app.apiServer = api.NewServer(api.Deps{
		Catalog:   catalog,
		Fetcher:   fetcher,
		Single:    single,
		Jobs:      jobStore,
		Submitter: app.dispatch,
		Artifacts: blobStore,
		Status:    board,
		UI:        web.Handler(),
	}, cfg, logger.Named("api"))

	return app, nil
}

// openJobStore returns the configured job store. The Postgres store creates its
// table on first use.
func (a *App) openJobStore(ctx context.Context) (exportjob.Store, error) {
	if a.cfg.Jobs.Backend != "postgres" {
		return memory.NewJobStore(system.New().Func()), nil
	}
	store, err := postgres.NewJobStore(ctx, postgres.Config{
		DSN:             a.cfg.Jobs.DSN,
		Table:           a.cfg.Jobs.Table,
		MaxConns:        a.cfg.Jobs.MaxConns,
		MinConns:        a.cfg.Jobs.MinConns,
		MaxConnLifetime: a.cfg.Jobs.MaxConnLifetime(),
	}, system.New().Func())
	if err != nil {
		return nil, fmt.Errorf("job store: %w", err)
	}
	a.closers = append(a.closers, store)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("job store schema: %w", err)
	}
	a.logger.Info("using postgres job store", zap.String("table", a.cfg.Jobs.Table))
	return store, nil
}

// openPublisher connects to Pub/Sub when notifications are enabled and returns
// nil otherwise.
func (a *App) openPublisher(ctx context.Context) (exportjob.Publisher, error) {
	if !a.cfg.Notify.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Notify.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := pspub.New(ctx, client, a.cfg.Notify.Topic, a.logger.Named("notify"))
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			a.logger.Warn("close pubsub client", zap.Error(closeErr))
		}
		return nil, err
	}
	a.closers = append(a.closers, pub)
	return pub, nil
}

// setupCatalog loads the artifacts, building them first when they have not
// been generated yet.
func setupCatalog(ctx context.Context, cfg config.Config, fsys afero.Fs, logger *zap.Logger) (*index.Catalog, error) {
	catalog := index.NewCatalog(fsys, cfg.Index.IconsFile, cfg.Index.CategoriesFile, logger)
	err := catalog.Reload()
	if err == nil {
		return catalog, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load icon index: %w", err)
	}
	logger.Warn("icon index missing, building it", zap.String("source_dir", cfg.Index.SourceDir))
	builder := index.NewBuilder(fsys, IndexConfig(cfg), logger)
	if _, err := builder.Run(ctx); err != nil {
		return nil, fmt.Errorf("build icon index: %w", err)
	}
	if err := catalog.Reload(); err != nil {
		return nil, fmt.Errorf("load icon index: %w", err)
	}
	return catalog, nil
}

// IndexConfig maps the index section onto the builder's config.
func IndexConfig(cfg config.Config) index.Config {
	return index.Config{
		SourceDir:      cfg.Index.SourceDir,
		IconsFile:      cfg.Index.IconsFile,
		CategoriesFile: cfg.Index.CategoriesFile,
		Extension:      cfg.Index.Extension,
	}
}

// NewFetcher returns the HTTP fetcher when assets.base_url is set and the
// local tree reader otherwise.
func NewFetcher(cfg config.Config, fsys afero.Fs, logger *zap.Logger) (icon.AssetFetcher, error) {
	if cfg.Assets.BaseURL == "" {
		logger.Info("reading icons from disk", zap.String("root", cfg.Assets.RootDir))
		return localfetcher.New(fsys, cfg.Assets.RootDir), nil
	}
	var throttle collyfetcher.Throttle
	if cfg.Assets.RPS > 0 {
		throttle = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Assets.RPS,
			DefaultBurst: cfg.Assets.Burst,
			Observer:     metrics.ObserveRateLimitDelay,
		})
		logger.Info("rate limiter enabled",
			zap.Float64("rps", cfg.Assets.RPS),
			zap.Int("burst", cfg.Assets.Burst),
		)
	} else {
		throttle = simple.New()
		logger.Info("rate limiter disabled, using simple policy")
	}
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		BaseURL:   cfg.Assets.BaseURL,
		UserAgent: cfg.Assets.UserAgent,
		Timeout:   cfg.Assets.AssetTimeout(),
	}, throttle, logger)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	logger.Info("fetching icons over HTTP",
		zap.String("base_url", cfg.Assets.BaseURL),
		zap.String("user_agent", cfg.Assets.UserAgent),
	)
	return fetcher, nil
}

// NewProgressHub starts a hub delivering to the log and Prometheus sinks.
func NewProgressHub(cfg config.Config, reg prometheus.Registerer, logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("progress sink: %w", err)
	}
	hubCfg := progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.BatchWait(),
		SinkTimeout:    cfg.Progress.SinkTimeout(),
		Logger:         logger.Named("progress_hub"),
	}
	hub := progress.NewHub(hubCfg,
		progresssinks.NewLogSink(logger.Named("progress_log")),
		promSink,
	)
	logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return hub, nil
}

// Handler exposes the HTTP surface.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the dispatcher and HTTP server and blocks until ctx is canceled
// or a termination signal arrives. SIGHUP reloads the icon index.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()
	go a.reloadOnHangup(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	grace := a.cfg.Server.ShutdownGrace()
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		return err
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func (a *App) reloadOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.catalog.Reload(); err != nil {
				a.logger.Error("icon index reload failed", zap.Error(err))
			}
		}
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		hubCtx, cancel := context.WithTimeout(ctx, a.cfg.Progress.ShutdownTimeout())
		if err := a.progressHub.Close(hubCtx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		cancel()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
