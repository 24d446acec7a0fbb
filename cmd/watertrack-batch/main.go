package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/detect"
	"github.com/mide-olaore/watertrack/internal/engine"
	"github.com/mide-olaore/watertrack/internal/ingest"
	"github.com/mide-olaore/watertrack/internal/jobs"
	"github.com/mide-olaore/watertrack/internal/repository"
	"github.com/mide-olaore/watertrack/internal/rules"
)

// watertrack-batch ingests every supported file under a directory and
// processes the resulting jobs to completion, without the HTTP server.
func main() {
	_ = godotenv.Load()

	var (
		dir   = flag.String("dir", "", "directory of data files to ingest (required)")
		force = flag.Bool("force", false, "reprocess files already seen by hash")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: --dir is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	classRules, err := rules.Load(cfg.Paths.RulesPath, logger)
	if err != nil {
		logger.Error("failed to load detection rules", "error", err)
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
		jobs.WithTickInterval(time.Second),
		jobs.WithStuckThreshold(cfg.Jobs.StuckThreshold),
	)

	detector := detect.NewDetector(classRules, logger)
	ingestSvc := ingest.NewService(filesRepo, jobsRepo, detector, manager, pipeline, logger)

	var queued, skipped, failed int
	walkErr := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}

		result, ierr := ingestSvc.IngestFile(ctx, path, d.Name(), *force)
		if ierr != nil {
			logger.Error("ingest failed", "file", d.Name(), "error", ierr)
			failed++
			return nil
		}
		if result.Deduplicated {
			logger.Info("skipping duplicate", "file", d.Name(), "prior_jobs", len(result.PriorJobs))
			skipped++
			return nil
		}
		logger.Info("queued",
			"file", d.Name(),
			"job_id", result.JobID,
			"dataset_type", result.Detection.DatasetType,
			"confidence", result.Detection.Confidence,
		)
		queued++
		return nil
	})
	if walkErr != nil {
		logger.Error("directory walk failed", "dir", *dir, "error", walkErr)
		os.Exit(1)
	}

	logger.Info("ingest pass complete", "queued", queued, "skipped", skipped, "failed", failed)

	// Wait for the queue to drain before exiting.
	for {
		stats := manager.Stats()
		if stats.Queued == 0 && stats.Running == 0 && stats.Retrying == 0 {
			break
		}
		time.Sleep(time.Second)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.Shutdown(shutdownCtx)

	counts, err := jobsRepo.CountByStatus(ctx)
	if err == nil {
		logger.Info("final job totals", "counts", counts)
	}
}
