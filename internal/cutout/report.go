package cutout

import (
	"fmt"
	"io"
	"time"

	"github.com/skysurvey/cutouts/internal/runstore"
)

// RowFailure records a row that produced no cutout for a reason other than
// the service reporting it absent.
type RowFailure struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Status int    `yaml:"status,omitempty"`
	Error  string `yaml:"error"`
}

// Report summarizes one fetch run.
type Report struct {
	RunID     string `yaml:"run_id"`
	Survey    string `yaml:"survey,omitempty"`
	OutputDir string `yaml:"output_dir"`

	Total          int `yaml:"total"`
	Processed      int `yaml:"processed"`
	Fetched        int `yaml:"fetched"`
	AlreadyPresent int `yaml:"already_present"`
	NotFound       int `yaml:"not_found"`
	Failed         int `yaml:"failed"`

	// Requests counts HTTP attempts, including retries.
	Requests int `yaml:"requests"`

	Failures []RowFailure `yaml:"failures,omitempty"`

	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Elapsed    time.Duration `yaml:"elapsed"`

	// Aborted holds the fatal error that ended the run early, if any.
	Aborted string `yaml:"aborted,omitempty"`
}

// Save writes the report as YAML.
func (r *Report) Save(path string) error {
	if err := runstore.WriteYAML(path, r); err != nil {
		return fmt.Errorf("failed to save fetch report: %w", err)
	}
	return nil
}

// PrintSummary writes the human readable end-of-run summary.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\nCutout download complete!\n")
	fmt.Fprintf(w, "  Catalog rows:      %d\n", r.Total)
	fmt.Fprintf(w, "  Fetched:           %d\n", r.Fetched)
	fmt.Fprintf(w, "  Already present:   %d\n", r.AlreadyPresent)
	fmt.Fprintf(w, "  Not found:         %d\n", r.NotFound)
	fmt.Fprintf(w, "  Failed:            %d\n", r.Failed)
	if r.Aborted != "" {
		fmt.Fprintf(w, "  Aborted after %d rows: %s\n", r.Processed, r.Aborted)
	}
	fmt.Fprintf(w, "  Elapsed:           %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Output location:   %s\n", r.OutputDir)
	if r.Failed > 0 {
		fmt.Fprintf(w, "\nFailed rows produce no file; rerun the same command to retry them.\n")
	}
}
