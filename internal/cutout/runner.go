package cutout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/progress"
	"github.com/skysurvey/cutouts/internal/retry"
	"github.com/skysurvey/cutouts/internal/runstore"
	"github.com/skysurvey/cutouts/internal/survey"
)

// Extension is appended to a row ID to form its cutout file name.
const Extension = ".jpg"

var (
	// ErrOutputDir means the output directory cannot be created or written.
	ErrOutputDir = errors.New("output directory unusable")
	// ErrLocalIO means a cutout could not be persisted.
	ErrLocalIO = errors.New("local I/O failure")
)

// Options fixes the parameters of a run.
type Options struct {
	Survey    string
	OutputDir string
	BuildURL  survey.URLBuilder

	// Sleep is applied after every row that made a network request.
	Sleep time.Duration

	// Retries is how many extra attempts a transient failure gets.
	Retries      int
	RetryBackoff time.Duration

	Progress progress.Reporter

	// ForceUnlock takes over an output directory lock held by another run.
	ForceUnlock bool
}

// Runner downloads one cutout per catalog row, sequentially.
type Runner struct {
	fetcher *Fetcher
	opts    Options
	sleep   func(context.Context, time.Duration) error
}

// NewRunner creates a runner; OutputDir has trailing separators stripped.
func NewRunner(fetcher *Fetcher, opts Options) *Runner {
	opts.OutputDir = CleanOutputDir(opts.OutputDir)
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Runner{
		fetcher: fetcher,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// CleanOutputDir strips trailing path separators, keeping a bare root.
func CleanOutputDir(dir string) string {
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" && dir != "" {
		return dir[:1]
	}
	return trimmed
}

// Path returns the cutout destination for id in dir.
func Path(dir, id string) string {
	return filepath.Join(dir, id+Extension)
}

// Run processes rows in order. Per-row failures are counted in the report;
// the returned error is non-nil only when the run could not continue
// (unusable output directory, local write failure, cancellation). The
// report is returned in both cases.
func (r *Runner) Run(ctx context.Context, rows []catalog.Row) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Survey:    r.opts.Survey,
		OutputDir: r.opts.OutputDir,
		Total:     len(rows),
		StartedAt: time.Now(),
	}

	err := r.run(ctx, rows, report)

	report.FinishedAt = time.Now()
	report.Elapsed = report.FinishedAt.Sub(report.StartedAt)
	if err != nil {
		report.Aborted = err.Error()
	}
	return report, err
}

func (r *Runner) run(ctx context.Context, rows []catalog.Row, report *Report) error {
	dir := r.opts.OutputDir
	if dir == "" {
		return fmt.Errorf("%w: no output directory configured", ErrOutputDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputDir, err)
	}
	if err := runstore.ProbeWritable(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputDir, err)
	}

	lock, err := runstore.AcquireRunLock(dir, report.RunID, r.opts.ForceUnlock)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputDir, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release run lock", "dir", dir, "error", err)
		}
	}()

	slog.Info("Starting cutout download", "run_id", report.RunID, "survey", r.opts.Survey, "rows", len(rows), "output", dir, "sleep", r.opts.Sleep)

	r.opts.Progress.Start(len(rows))
	defer r.opts.Progress.Finish()

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		networked, err := r.processRow(ctx, row, report)
		if err != nil {
			return err
		}

		if networked {
			if err := r.sleep(ctx, r.opts.Sleep); err != nil {
				return err
			}
		}

		report.Processed = i + 1
		r.opts.Progress.Update(report.Processed)
	}

	slog.Info("Cutout download finished",
		"run_id", report.RunID,
		"fetched", report.Fetched,
		"already_present", report.AlreadyPresent,
		"not_found", report.NotFound,
		"failed", report.Failed)

	return nil
}

// processRow handles one row and reports whether it touched the network.
func (r *Runner) processRow(ctx context.Context, row catalog.Row, report *Report) (bool, error) {
	dest := Path(r.opts.OutputDir, row.ID)

	exists, err := runstore.Exists(dest)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	if exists {
		slog.Debug("Cutout already exists, skipping", "id", row.ID, "path", dest)
		report.AlreadyPresent++
		return false, nil
	}

	url := r.opts.BuildURL(row.RA, row.Dec)
	res := r.fetch(ctx, url, report)

	switch res.Outcome {
	case OutcomeFetched:
		if err := runstore.WriteBytes(dest, res.Data); err != nil {
			return true, fmt.Errorf("%w: %v", ErrLocalIO, err)
		}
		slog.Debug("Downloaded cutout", "id", row.ID, "path", dest, "bytes", len(res.Data))
		report.Fetched++

	case OutcomeNotFound:
		slog.Debug("No cutout available", "id", row.ID, "status", res.Status)
		report.NotFound++

	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, ctxErr
		}
		slog.Warn("Failed to download cutout", "id", row.ID, "url", url, "status", res.Status, "error", res.Err)
		report.Failed++
		report.Failures = append(report.Failures, RowFailure{
			ID:     row.ID,
			URL:    url,
			Status: res.Status,
			Error:  errString(res.Err),
		})
	}

	return true, nil
}

func (r *Runner) fetch(ctx context.Context, url string, report *Report) Result {
	backoff := retry.ExponentialBackoff(r.opts.RetryBackoff, 2)
	res, err := retry.Do(ctx, r.opts.Retries, backoff, func(attempt int) (Result, error) {
		report.Requests++
		if attempt > 0 {
			slog.Debug("Retrying cutout", "url", url, "attempt", attempt+1)
		}
		res := r.fetcher.Fetch(ctx, url)
		if res.Outcome == OutcomeFailed {
			return res, res.Err
		}
		return res, nil
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
	}
	return res
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
