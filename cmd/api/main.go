package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"imagine/internal/adapter/repo"
	"imagine/internal/comfy"
	"imagine/internal/http/handlers"
	"imagine/internal/http/httpapi"
	"imagine/internal/imagine"
	"imagine/internal/infra"
	"imagine/internal/ingest"
	"imagine/internal/metrics"
	"imagine/internal/registry"
	"imagine/internal/storage"
	"imagine/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, logCloser, err := infra.NewLogger(cfg.AppEnv, cfg.LogLevel, cfg.LogDir)
	if err != nil {
		panic(err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := metrics.NewPrometheusSink(promReg, logger)

	regOpts := []registry.Option{registry.WithLogger(logger)}
	var statusRepo *repo.JobStatusRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		statusRepo = repo.NewJobStatusRepository(infra.NewSQLRunner(pool, logger))
		if err := statusRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare status table")
		}
		regOpts = append(regOpts, registry.WithMirror(statusRepo))
	}
	jobs := registry.New(regOpts...)
	if statusRepo != nil {
		saved, err := statusRepo.LoadAll(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to restore job statuses")
		}
		logger.Info().Int("restored", jobs.Restore(saved)).Msg("job statuses restored")
	}

	store, err := storage.NewFileStore(cfg.ImageDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare image directory")
	}

	remote, err := comfy.NewClient(comfy.Options{Address: cfg.RemoteAddr, Timeout: cfg.RemoteTimeout})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid remote address")
	}

	svc, err := imagine.NewService(imagine.Options{
		Remote:         remote,
		Registry:       jobs,
		Store:          store,
		Template:       imagine.FileTemplate(cfg.WorkflowPath),
		ClientID:       cfg.ClientID,
		ModelFile:      cfg.ModelFile,
		ClipNames:      cfg.ClipNames,
		PromptTextPath: workflow.ParsePath(cfg.PromptTextPath),
		StepsPath:      workflow.ParsePath(cfg.StepsPath),
		Logger:         logger,
		Metrics:        sink,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build service")
	}

	ingestor, err := ingest.New(ingest.Options{
		URL:      remote.EventsURL(cfg.ClientID),
		Registry: jobs,
		Logger:   logger,
		Metrics:  sink,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build event ingestor")
	}
	backoff := ingest.DefaultBackoff()
	backoff.Initial = cfg.BackoffInitial
	backoff.Max = cfg.BackoffMax
	supervisor := ingest.NewSupervisor(ingestor, backoff, logger, sink)

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("event stream supervisor stopped")
		}
	}()

	app := &handlers.App{
		Jobs:      svc,
		Files:     store,
		Stream:    supervisor,
		Registry:  jobs,
		PublicURL: cfg.ImagePublicURL,
		Logger:    logger,
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Gatherer:        promReg,
	})
	server := infra.NewHTTPServer(cfg, router)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("client_id", cfg.ClientID).
			Str("remote", cfg.RemoteAddr).
			Msg("API listening")
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	waitStream(shutdownCtx, streamDone, logger)
	if err := jobs.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending status writes were not persisted")
	}
	logger.Info().Msg("server stopped")
}

func waitStream(ctx context.Context, done <-chan struct{}, logger zerolog.Logger) {
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn().Msg("event stream did not stop in time")
	}
}
