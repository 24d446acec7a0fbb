package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/detect"
	"github.com/mide-olaore/watertrack/internal/engine"
	"github.com/mide-olaore/watertrack/internal/ingest"
	"github.com/mide-olaore/watertrack/internal/jobs"
	"github.com/mide-olaore/watertrack/internal/repository"
	"github.com/mide-olaore/watertrack/internal/rules"
	"github.com/mide-olaore/watertrack/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	classRules, err := rules.Load(cfg.Paths.RulesPath, logger)
	if err != nil {
		logger.Error("failed to load detection rules", "path", cfg.Paths.RulesPath, "error", err)
		os.Exit(1)
	}

	store, err := repository.Open(ctx, cfg.Database.DSN, cfg.Database.DialTimeout, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	jobsRepo := repository.NewJobRepository(store)
	filesRepo := repository.NewUploadFileRepository(store)

	pipeline := engine.NewPipeline(engine.Config{
		ProcessCmd:       cfg.Engine.ProcessCmd,
		DashboardCmd:     cfg.Engine.DashboardCmd,
		ProcessTimeout:   cfg.Engine.ProcessTimeout,
		DashboardTimeout: cfg.Engine.DashboardTimeout,
		OutputDir:        cfg.Paths.OutputDir,
	}, logger)

	manager := jobs.NewManager(jobs.RetryConfig{
		MaxRetries:        cfg.Jobs.MaxRetries,
		BaseDelay:         cfg.Jobs.BaseDelay,
		BackoffMultiplier: cfg.Jobs.BackoffMultiplier,
		MaxDelay:          cfg.Jobs.MaxDelay,
	}, repository.NewStatusNotifier(jobsRepo), logger,
		jobs.WithTickInterval(cfg.Jobs.TickInterval),
		jobs.WithStuckThreshold(cfg.Jobs.StuckThreshold),
	)

	detector := detect.NewDetector(classRules, logger)
	ingestSvc := ingest.NewService(filesRepo, jobsRepo, detector, manager, pipeline, logger)

	srv := server.New(
		cfg.Server.HTTPAddr,
		ingestSvc,
		manager,
		jobsRepo,
		store,
		cfg.Paths.UploadDir,
		cfg.Server.MaxUploadBytes,
		logger,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	manager.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
