package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"CatalogPoster/internal/config"
	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/infrastructure/blog"
	"CatalogPoster/internal/infrastructure/browser"
	"CatalogPoster/internal/infrastructure/catalog"
	"CatalogPoster/internal/infrastructure/control"
	"CatalogPoster/internal/infrastructure/llm"
	"CatalogPoster/internal/infrastructure/metrics"
	"CatalogPoster/internal/infrastructure/parser"
	"CatalogPoster/internal/infrastructure/scheduler"
	"CatalogPoster/internal/infrastructure/storage"
	"CatalogPoster/internal/infrastructure/telegram"
	"CatalogPoster/internal/logging"
	"CatalogPoster/internal/pagefetch"
	"CatalogPoster/internal/ports"
	"CatalogPoster/internal/render"
	"CatalogPoster/internal/settings"
	"CatalogPoster/internal/taxonomy"
	"CatalogPoster/internal/usecase"
)

const (
	browserTimeout = 90 * time.Second
	movieCacheSize = 512
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	settings *settings.Store
	metrics  *metrics.Pipeline
	events   *storage.EventRepository
	eventLog *logging.EventLogger
}

// New builds an application. Call Open before running anything that logs events.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		settings: settings.NewStore(cfg.Storage.SettingsDir(), baseLogger.With("component", "settings")),
		metrics:  metrics.New(),
		eventLog: logging.NewEventLogger(baseLogger.With("component", "events"), nil),
	}
}

// Open attaches the SQLite event log. When it cannot be opened events still
// reach the console.
func (a *Application) Open(ctx context.Context) error {
	repo, err := storage.OpenEventRepository(ctx, a.cfg.Storage.EventsDBPath())
	if err != nil {
		a.logger.Warn("event log unavailable, console only", "path", a.cfg.Storage.EventsDBPath(), "error", err)
		return nil
	}
	a.events = repo
	a.eventLog = logging.NewEventLogger(a.logger.With("component", "events"), repo)
	return nil
}

// Close releases the event log.
func (a *Application) Close() error {
	if a.events == nil {
		return nil
	}
	return a.events.Close()
}

// Settings exposes the settings store.
func (a *Application) Settings() *settings.Store { return a.settings }

// loadValid reads settings and insists on complete credentials.
func (a *Application) loadValid() (settings.Document, error) {
	doc, err := a.settings.Load()
	if err != nil {
		return settings.Document{}, err
	}
	if err := doc.Validate(); err != nil {
		return settings.Document{}, err
	}
	return doc, nil
}

func (a *Application) httpClient() *http.Client {
	return &http.Client{Timeout: a.cfg.HTTP.RequestTimeout()}
}

func (a *Application) catalogClient(creds domain.Credentials) *catalog.Client {
	return catalog.NewClient(catalog.Options{
		BaseURL:        a.cfg.Catalog.BaseURL,
		APIID:          creds.CatalogAPIID,
		AffiliateID:    creds.CatalogAffiliateID,
		HTTPClient:     a.httpClient(),
		RequestsPerSec: a.cfg.Catalog.RequestsPerSec,
		Logger:         a.logger.With("component", "catalog"),
	})
}

func (a *Application) blogClient(creds domain.Credentials) *blog.Client {
	return blog.NewClient(creds.BlogBaseURL, creds.BlogUser, creds.BlogAppPassword, a.httpClient(), a.logger)
}

// buildPipeline constructs every driven adapter for doc's credentials. The
// term caches are warmed here, so bad blog credentials fail fast.
func (a *Application) buildPipeline(ctx context.Context, doc settings.Document, withTerms bool) (*usecase.Pipeline, error) {
	cat := a.catalogClient(doc.Credentials)
	wp := a.blogClient(doc.Credentials)

	registry := pagefetch.NewRegistry()
	direct, err := browser.NewDirect(a.cfg.HTTP.RequestTimeout())
	if err != nil {
		return nil, err
	}
	registry.Register(direct)
	registry.Register(browser.NewChrome(browserTimeout, a.logger))

	movies := render.NewMovieResolver(a.cfg.Catalog.MovieBaseURL, nil, movieCacheSize, a.logger)

	deps := usecase.PipelineDeps{
		Catalog:   cat,
		Media:     cat,
		Blog:      wp,
		Pages:     pagefetch.NewSource(registry, a.logger.With("component", "pagefetch")),
		Extractor: parser.NewExtractor(),
		Renderers: func() ports.Renderer { return render.New(movies) },
		Metrics:   a.metrics,
		Events:    a.eventLog,
	}

	if withTerms {
		slugger, err := taxonomy.NewSlugger(true)
		if err != nil {
			a.logger.Warn("kanji readings unavailable, slugs fall back to hashes", "error", err)
		}
		terms, err := taxonomy.NewResolver(ctx, wp, slugger, a.logger)
		if err != nil {
			return nil, fmt.Errorf("taxonomy: %w", err)
		}
		deps.Terms = terms
	}

	if a.cfg.ChatGPT.APIKey != "" {
		deps.Hook = llm.NewPlaceholders(llm.NewChatGPTClient(a.cfg.ChatGPT), a.logger.With("component", "llm"))
	}
	if n := telegram.NewNotifier(a.cfg.Notifications.Telegram.BotToken, a.cfg.Notifications.Telegram.ChatID); n.Configured() {
		deps.Notifier = n
	}

	return usecase.NewPipeline(deps), nil
}

// jobs reads the job for a slot fresh from settings; slot 0 means the
// active job.
func (a *Application) jobs() usecase.JobLoader {
	return func(slot int) (domain.JobSpec, error) {
		doc, err := a.settings.Load()
		if err != nil {
			return domain.JobSpec{}, err
		}
		if slot == 0 {
			slot = doc.ActiveJob
		}
		return doc.Job(slot)
	}
}

func (a *Application) job(doc settings.Document, slot int) (domain.JobSpec, error) {
	if slot == 0 {
		slot = doc.ActiveJob
	}
	return doc.Job(slot)
}

// RunOnce executes one job slot to completion.
func (a *Application) RunOnce(ctx context.Context, slot int) (domain.RunResult, error) {
	doc, err := a.loadValid()
	if err != nil {
		return domain.RunResult{}, err
	}
	if _, err := a.job(doc, slot); err != nil {
		return domain.RunResult{}, err
	}
	pipeline, err := a.buildPipeline(ctx, doc, true)
	if err != nil {
		return domain.RunResult{}, err
	}
	return usecase.NewRunner(pipeline, a.jobs()).TryRun(ctx, slot)
}

// RunTest previews the first product a job would post.
func (a *Application) RunTest(ctx context.Context, slot int) (usecase.Preview, error) {
	doc, err := a.loadValid()
	if err != nil {
		return usecase.Preview{}, err
	}
	job, err := a.job(doc, slot)
	if err != nil {
		return usecase.Preview{}, err
	}
	pipeline, err := a.buildPipeline(ctx, doc, false)
	if err != nil {
		return usecase.Preview{}, err
	}
	return pipeline.RunTest(ctx, job)
}

// Rewrite reconciles existing posts against the catalog using slot's templates.
func (a *Application) Rewrite(ctx context.Context, slot int, opts usecase.ReconcileOptions) (usecase.ReconcileReport, error) {
	doc, err := a.loadValid()
	if err != nil {
		return usecase.ReconcileReport{}, err
	}
	job, err := a.job(doc, slot)
	if err != nil {
		return usecase.ReconcileReport{}, err
	}
	pipeline, err := a.buildPipeline(ctx, doc, !opts.DryRun)
	if err != nil {
		return usecase.ReconcileReport{}, err
	}
	return pipeline.Reconcile(ctx, job, opts)
}

// Schedule runs the hourly plan and the control server until ctx is done.
func (a *Application) Schedule(ctx context.Context) error {
	doc, err := a.loadValid()
	if err != nil {
		return err
	}
	pipeline, err := a.buildPipeline(ctx, doc, true)
	if err != nil {
		return err
	}
	if removed, err := a.CleanupLogs(ctx); err == nil && removed > 0 {
		a.logger.Info("old events removed", "rows", removed)
	}

	runner := usecase.NewRunner(pipeline, a.jobs())
	plan := func() (domain.SchedulePlan, error) {
		doc, err := a.settings.Load()
		if err != nil {
			return domain.SchedulePlan{}, err
		}
		return doc.Schedule, nil
	}
	sched := usecase.NewScheduler(scheduler.NewMinuteTicker(a.cfg.Scheduler.Location()), runner, plan, a.eventLog)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if !doc.Schedule.Enabled {
		a.logger.Warn("schedule is disabled in settings; waiting for it to be enabled or for manual runs")
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Control.Addr != "" {
		srv := control.NewServer(a.cfg.Control.Addr, runner, a.metrics.Handler(), a.logger.With("component", "control"))
		g.Go(func() error { return srv.Serve(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return sched.Stop(context.WithoutCancel(gctx))
	})
	return g.Wait()
}

// Floors lists catalog floors, from the disk cache when useCache is set.
func (a *Application) Floors(ctx context.Context, useCache bool) ([]domain.Floor, error) {
	doc, err := a.settings.Load()
	if err != nil {
		return nil, err
	}
	cache := catalog.NewFloorCache(a.catalogClient(doc.Credentials), a.cfg.Storage.FloorCachePath(), a.cfg.Catalog.FloorTTL(), a.logger)
	return cache.Floors(ctx, useCache)
}

// Actress looks up one actress record.
func (a *Application) Actress(ctx context.Context, id string) ([]catalog.Actress, error) {
	doc, err := a.settings.Load()
	if err != nil {
		return nil, err
	}
	return a.catalogClient(doc.Credentials).ActressSearch(ctx, id)
}

// ErrNoEventLog is returned by event queries when logs.db is not open.
var ErrNoEventLog = errors.New("event log is not available")

// Logs queries the event log.
func (a *Application) Logs(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	if a.events == nil {
		return nil, ErrNoEventLog
	}
	return a.events.Query(ctx, f)
}

// CleanupLogs removes events older than the configured retention.
func (a *Application) CleanupLogs(ctx context.Context) (int64, error) {
	if a.events == nil {
		return 0, ErrNoEventLog
	}
	days := a.cfg.Logging.RetentionDays
	if days <= 0 {
		days = 30
	}
	return a.events.Cleanup(ctx, time.Now().AddDate(0, 0, -days))
}
