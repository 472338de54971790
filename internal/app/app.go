package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"LandScout/internal/config"
	"LandScout/internal/infrastructure/enrichment"
	"LandScout/internal/infrastructure/imap"
	"LandScout/internal/infrastructure/mbox"
	"LandScout/internal/infrastructure/parser"
	"LandScout/internal/infrastructure/scheduler"
	"LandScout/internal/infrastructure/storage"
	"LandScout/internal/infrastructure/telegram"
	"LandScout/internal/listing"
	"LandScout/internal/logging"
	"LandScout/internal/metrics"
	"LandScout/internal/ports"
	"LandScout/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *storage.DB
	metrics   *metrics.Metrics
	pipeline  *usecase.Pipeline
	engine    *usecase.Engine
	cron      *scheduler.CronScheduler
	scheduler *usecase.Scheduler
}

// New validates cfg, opens the record store and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	app, err := build(cfg, db, baseLogger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func build(cfg config.Config, db *storage.DB, baseLogger *slog.Logger) (*Application, error) {
	m := metrics.New()
	lands := storage.NewLandRepository(db)

	weights, err := cfg.Weights()
	if err != nil {
		return nil, err
	}
	engine := usecase.NewEngine(usecase.EngineDeps{
		Lands:    lands,
		Weights:  storage.NewCriteriaRepository(db),
		Defaults: weights,
		Metrics:  m,
		Logger:   baseLogger,
	})

	mailboxClient, err := newMailboxClient(cfg.Mailbox, baseLogger.With("component", "mailbox"))
	if err != nil {
		return nil, err
	}

	watermarks, err := newWatermarkStore(cfg.Watermark, db, baseLogger)
	if err != nil {
		return nil, err
	}

	query, err := cfg.SearchQuery()
	if err != nil {
		return nil, err
	}

	chain, err := listing.NewRegistry(parser.NewIdealistaParser()).Chain(cfg.Parser.Strategies)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	messageParser := parser.NewStrategyParser(chain, baseLogger.With("component", "parser"))

	var enricher ports.Enricher
	if cfg.Enrichment.URL != "" {
		enricher = enrichment.NewClient(cfg.Enrichment.URL, cfg.Enrichment.APIKey, cfg.Enrichment.Timeout)
	}

	var notifier ports.Notifier
	tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, cfg.Notifications.Telegram.APIBase)
	if tg.Configured() {
		notifier = tg
	}

	user := cfg.Mailbox.User
	host := cfg.Mailbox.Host
	if cfg.Mailbox.Backend == "mbox" {
		host, user = "mbox", cfg.Mailbox.MboxPath
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Mailbox:    mailboxClient,
		Parser:     messageParser,
		Lands:      lands,
		Watermarks: watermarks,
		Enricher:   enricher,
		Scorer:     engine,
		Notifier:   notifier,
		Settings: usecase.MailboxSettings{
			Host:           host,
			User:           user,
			Folder:         cfg.Mailbox.Folder,
			FallbackFolder: cfg.Mailbox.FallbackFolder,
			Query:          query,
			MaxItems:       cfg.Mailbox.MaxItems,
			SourcePrefix:   cfg.Mailbox.IDPrefix(),
			SessionTimeout: cfg.Mailbox.SessionTimeout,
		},
		DigestMinScore: cfg.Scoring.DigestMinScore,
		Metrics:        m,
		Logger:         baseLogger,
	})

	cron := scheduler.NewCronScheduler(cfg.Scheduler.Location(), baseLogger.With("component", "cron"))
	schedule := usecase.NewScheduler(cron, pipeline, engine, usecase.ScheduleSettings{
		Ingest:     cfg.Scheduler.Ingest,
		Rescore:    cfg.Scheduler.Rescore,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, baseLogger)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		metrics:   m,
		pipeline:  pipeline,
		engine:    engine,
		cron:      cron,
		scheduler: schedule,
	}, nil
}

func newMailboxClient(cfg config.MailboxConfig, logger *slog.Logger) (ports.MailboxClient, error) {
	switch cfg.Backend {
	case "mbox":
		return mbox.NewClient(mbox.Options{Path: cfg.MboxPath}, logger)
	case "imap", "":
		return imap.NewClient(imap.Options{
			Host:               cfg.Host,
			Port:               cfg.Port,
			Username:           cfg.User,
			Password:           cfg.Password,
			UseTLS:             cfg.UseTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			DialTimeout:        cfg.DialTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown mailbox backend %q", cfg.Backend)
	}
}

func newWatermarkStore(cfg config.WatermarkConfig, db *storage.DB, logger *slog.Logger) (ports.WatermarkStore, error) {
	switch cfg.Backend {
	case "file":
		return storage.NewFileWatermarkStore(cfg.Path, logger)
	case "database", "":
		return storage.NewWatermarkRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown watermark backend %q", cfg.Backend)
	}
}

// Ingest runs one ingestion pass; maxItems <= 0 uses the configured cap.
func (a *Application) Ingest(ctx context.Context, maxItems int) (int, error) {
	return a.pipeline.Run(ctx, maxItems)
}

// Engine exposes the scoring engine for weight management.
func (a *Application) Engine() *usecase.Engine {
	return a.engine
}

// Serve starts the scheduler and the metrics listener and blocks until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	var server *http.Server
	serverErr := make(chan error, 1)
	if a.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		server = &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("metrics listener started", "addr", a.cfg.Metrics.Listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	if err := a.scheduler.Start(ctx); err != nil {
		if server != nil {
			_ = server.Close()
		}
		return fmt.Errorf("start scheduler: %w", err)
	}
	for _, job := range a.cron.Jobs() {
		a.logger.Info("job scheduled", "job", job.Name, "next", job.Next)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		runErr = fmt.Errorf("metrics listener: %w", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics listener shutdown", "error", err)
		}
	}
	a.logger.Info("service stopped")
	return runErr
}

// Close releases the record store.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
