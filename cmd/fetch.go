package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/cutout"
	"github.com/skysurvey/cutouts/internal/progress"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var f runFlags
	var forceUnlock bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download one cutout image per catalog row",
		Long: `Download a JPEG cutout for every galaxy in the catalog into the output
directory, named {id}.jpg.

Rows whose image already exists are skipped without any network request.
Galaxies the service has no image for are counted and skipped. After every
request the fetcher sleeps for the survey's delay to stay polite to the
public service.`,
		Example: `  # ALFALFA galaxies from the Legacy Survey viewer with preset defaults
  cutouts fetch --survey legacy

  # NIBLES galaxies from SDSS SkyServer into a custom directory
  cutouts fetch --survey sdss --cat data/NIBLES_data.csv --output images-nibles/

  # xGASS catalog with its own column names and a retry budget
  cutouts fetch --survey legacy --cat data/xGASS_representative_sample.csv \
    --id-col GASS --ra-col RA --dec-col DEC --size 224 --retries 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}

			cat, err := catalog.Open(cmd.Context(), cfg.Catalog, cfg.Columns, cfg.Limit, cfg.DownloadConfig())
			if err != nil {
				return err
			}

			build, err := cfg.URLBuilder()
			if err != nil {
				return err
			}
			style, err := progress.ParseStyle(cfg.Progress)
			if err != nil {
				return err
			}

			runner := cutout.NewRunner(cutout.NewFetcher(cfg.Timeout, cfg.UserAgent), cutout.Options{
				Survey:       cfg.Survey,
				OutputDir:    cfg.Output,
				BuildURL:     build,
				Sleep:        cfg.Sleep,
				Retries:      cfg.Retries,
				RetryBackoff: cfg.RetryBackoff,
				Progress:     progress.New(style, cmd.OutOrStdout()),
				ForceUnlock:  forceUnlock,
			})

			report, runErr := runner.Run(cmd.Context(), cat.Rows)
			if report != nil {
				report.PrintSummary(cmd.OutOrStdout())
				if cfg.Report != "" {
					if err := report.Save(cfg.Report); err != nil {
						runErr = errors.Join(runErr, fmt.Errorf("save report: %w", err))
					} else {
						slog.Info("Run report written", "path", cfg.Report)
					}
				}
			}
			return runErr
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().Float64Var(&f.values.Params.PixScale, "pixscale", 0, "Legacy: arcseconds per pixel")
	cmd.Flags().IntVar(&f.values.Params.Size, "size", 0, "Legacy: image side in pixels")
	cmd.Flags().IntVar(&f.values.Params.Width, "width", 0, "SDSS: image width in pixels")
	cmd.Flags().IntVar(&f.values.Params.Height, "height", 0, "SDSS: image height in pixels")
	cmd.Flags().StringVar(&f.values.Params.Layer, "layer", "", "Legacy: data release layer")
	cmd.Flags().StringVar(&f.values.BaseURL, "base-url", "", "Override the survey cutout endpoint")
	cmd.Flags().DurationVar(&f.values.Sleep, "sleep", 0, "Delay after each request (defaults to the survey preset)")
	cmd.Flags().DurationVar(&f.values.Timeout, "timeout", 0, "Per-request timeout")
	cmd.Flags().IntVar(&f.values.Retries, "retries", 0, "Extra attempts for transient failures")
	cmd.Flags().DurationVar(&f.values.RetryBackoff, "retry-backoff", 0, "Initial delay between retries, doubled per attempt")
	cmd.Flags().StringVar(&f.values.Progress, "progress", "", "Progress display: line, bar or none")
	cmd.Flags().StringVar(&f.values.Report, "report", "", "Write a YAML run report to this path")
	cmd.Flags().StringVar(&f.values.UserAgent, "user-agent", "", "HTTP User-Agent header")
	cmd.Flags().BoolVar(&forceUnlock, "force-unlock", false, "Take over the output directory lock left by another run")

	return cmd
}
