package cmd

import (
	"fmt"

	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/cutout"
	"github.com/skysurvey/cutouts/internal/runstore"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how much of a catalog is already downloaded",
		Long: `Load and validate the catalog, then count the rows whose cutout already
exists in the output directory. No network requests are made.`,
		Example: `  cutouts inspect --survey sdss
  cutouts inspect --cat data/xGASS_representative_sample.csv --id-col GASS --ra-col RA --dec-col DEC --output images-xGASS`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}

			cat, err := catalog.Open(cmd.Context(), cfg.Catalog, cfg.Columns, cfg.Limit, cfg.DownloadConfig())
			if err != nil {
				return err
			}

			dir := cutout.CleanOutputDir(cfg.Output)
			present := 0
			for _, row := range cat.Rows {
				ok, err := runstore.Exists(cutout.Path(dir, row.ID))
				if err != nil {
					return err
				}
				if ok {
					present++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Survey:            %s\n", cfg.Survey)
			fmt.Fprintf(out, "Catalog:           %s\n", cfg.Catalog)
			fmt.Fprintf(out, "Output directory:  %s\n", dir)
			fmt.Fprintf(out, "Rows:              %d\n", cat.Len())
			fmt.Fprintf(out, "Already present:   %d\n", present)
			fmt.Fprintf(out, "Remaining:         %d\n", cat.Len()-present)
			return nil
		},
	}

	f.register(cmd.Flags())

	return cmd
}
