package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/jobs"
)

// stderrLimit bounds how much of a failing step's stderr ends up in the
// job's error message.
const stderrLimit = 1000

// Pipeline runs the two-step external processing chain for one job: the
// processing script over the raw upload, then the dashboard build over
// its output. It implements jobs.Handler.
type Pipeline struct {
	processCmd       string
	dashboardCmd     string
	processTimeout   time.Duration
	dashboardTimeout time.Duration
	outputDir        string
	logger           *slog.Logger
}

// Config selects the external commands and their per-step timeouts.
type Config struct {
	ProcessCmd       string
	DashboardCmd     string
	ProcessTimeout   time.Duration
	DashboardTimeout time.Duration
	OutputDir        string
}

// NewPipeline builds the processing pipeline handler.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		processCmd:       cfg.ProcessCmd,
		dashboardCmd:     cfg.DashboardCmd,
		processTimeout:   cfg.ProcessTimeout,
		dashboardTimeout: cfg.DashboardTimeout,
		outputDir:        cfg.OutputDir,
		logger:           logger,
	}
}

// Execute runs both pipeline steps for the job. Either step failing
// fails the attempt; the manager's retry policy takes it from there.
func (p *Pipeline) Execute(ctx context.Context, jc *jobs.Context) error {
	jobOut := filepath.Join(p.outputDir, jc.JobID)
	if err := os.MkdirAll(jobOut, 0o755); err != nil {
		return common.NewAppError("OUTPUT_DIR_FAILED", jobOut, err)
	}

	p.logger.Info("running processing step", "job_id", jc.JobID, "file", jc.OriginalFilename)
	if err := p.runStep(ctx, "process", p.processCmd, p.processTimeout,
		"--raw", jc.FilePath,
		"--out_dir", jobOut,
		"--job_id", jc.JobID,
	); err != nil {
		return err
	}

	p.logger.Info("running dashboard step", "job_id", jc.JobID)
	return p.runStep(ctx, "dashboard", p.dashboardCmd, p.dashboardTimeout,
		"--job_id", jc.JobID,
	)
}

// runStep launches one external command with a bounded deadline and
// folds truncated stderr into the returned error.
func (p *Pipeline) runStep(ctx context.Context, step, command string, timeout time.Duration, args ...string) error {
	if command == "" {
		return common.NewAppError("STEP_NOT_CONFIGURED", step, common.ErrInvalidInput)
	}

	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	parts := strings.Fields(command)
	cmd := exec.CommandContext(stepCtx, parts[0], append(parts[1:], args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		detail := truncate(stderr.String(), stderrLimit)
		if stepCtx.Err() == context.DeadlineExceeded {
			p.logger.Error("pipeline step timed out", "step", step, "timeout", timeout)
			return fmt.Errorf("%s step timed out after %s", step, timeout)
		}
		p.logger.Error("pipeline step failed", "step", step, "elapsed", elapsed, "error", err)
		if detail != "" {
			return fmt.Errorf("%s step failed: %w: %s", step, err, detail)
		}
		return fmt.Errorf("%s step failed: %w", step, err)
	}

	p.logger.Info("pipeline step completed", "step", step, "elapsed", elapsed)
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
