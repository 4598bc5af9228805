package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carstudio/internal/batch"
	"carstudio/internal/http/handlers"
	"carstudio/internal/http/httpapi"
	"carstudio/internal/infra"
	"carstudio/internal/providers/replicate"
	"carstudio/internal/registry"
	"carstudio/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	// Batch history mirror is optional; the registry runs in memory either way.
	var mirror *registry.BatchMirror
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		mirror, err = registry.NewBatchMirror(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare batch history mirror")
		}
	}

	gen := replicate.NewClient(replicate.Options{
		BaseURL:      cfg.ReplicateBaseURL,
		APIToken:     cfg.ReplicateAPIToken,
		Model:        cfg.ReplicateModel,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		PollInterval: cfg.PollInterval,
		WaitTimeout:  cfg.PredictionTimeout,
	})
	if gen.Model() == "" {
		logger.Warn().Msg("REPLICATE_MODEL is not set, batch jobs will fail until configured")
	}

	batches := registry.NewMemoryBatchRegistry()
	jobs := registry.NewMemoryJobRegistry()

	queue := batch.NewQueue(cfg.BatchWorkers, cfg.QueueCapacity, cfg.BatchTaskTimeout, logger)
	queue.Start(ctx)

	archiver := batch.NewArchiver(store, cfg.DownloadBaseURL, logger)
	processor := batch.NewProcessor(batches, jobs, gen, store, queue, archiver, mirror, logger)

	sweeper := batch.NewSweeper(store, jobs, cfg.ZipRetention, cfg.JobRetention, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	app := handlers.NewApp(logger, processor, batches, jobs)
	router := httpapi.NewRouter(app, cfg, store.DownloadsPath())
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	queue.Close()
	logger.Info().Msg("server stopped")
}
