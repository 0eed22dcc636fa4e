package cmd

import (
	"fmt"
	"log/slog"

	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/manifest"
	"github.com/spf13/cobra"
)

func newManifestCmd() *cobra.Command {
	var f runFlags
	var out string
	var opts manifest.Options

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Join a catalog with fetched cutouts into a training manifest",
		Long: `Write one line per galaxy that has a cutout on disk and a numeric label,
with a train/validation flag. The format follows the --out extension
(.parquet or .csv).`,
		Example: `  # Gas fraction label with a random 20% validation split
  cutouts manifest --survey legacy --label logfgas --out manifest.parquet

  # xGASS: logfgas = lgMHI - lgMstar, isolated galaxies as validation
  cutouts manifest --cat data/xGASS_representative_sample.csv --id-col GASS --ra-col RA --dec-col DEC \
    --output images-xGASS --label lgMHI --label-minus lgMstar \
    --split-col env_code_B --split-value 1 --out xgass.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}

			cat, err := catalog.Open(cmd.Context(), cfg.Catalog, cfg.Columns, cfg.Limit, cfg.DownloadConfig())
			if err != nil {
				return err
			}

			entries, stats, err := manifest.Build(cat, cfg.Output, opts)
			if err != nil {
				return err
			}
			if err := manifest.Write(out, entries); err != nil {
				return err
			}

			slog.Info("Manifest written", "path", out, "kept", stats.Kept, "validation", stats.Validation)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Catalog rows:      %d\n", stats.Rows)
			fmt.Fprintf(w, "Missing image:     %d\n", stats.MissingImage)
			fmt.Fprintf(w, "Unusable label:    %d\n", stats.BadLabel)
			fmt.Fprintf(w, "Training:          %d\n", stats.Kept-stats.Validation)
			fmt.Fprintf(w, "Validation:        %d\n", stats.Validation)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&out, "out", "manifest.parquet", "Manifest path (.parquet or .csv)")
	cmd.Flags().StringVar(&opts.Label, "label", "logfgas", "Catalog column holding the regression target")
	cmd.Flags().StringVar(&opts.LabelMinus, "label-minus", "", "Column subtracted from --label")
	cmd.Flags().StringVar(&opts.SplitColumn, "split-col", "", "Use rows where this column equals --split-value as validation")
	cmd.Flags().StringVar(&opts.SplitValue, "split-value", "", "Value of --split-col marking validation rows")
	cmd.Flags().Float64Var(&opts.ValPct, "val-pct", 0.2, "Random validation fraction when --split-col is unset")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", manifest.DefaultSeed, "Random split seed")

	return cmd
}
