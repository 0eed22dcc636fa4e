package cmd

import (
	"os"

	"github.com/skysurvey/cutouts/internal/config"
	"github.com/skysurvey/cutouts/internal/survey"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runFlags are the flags shared by every command that reads a catalog.
type runFlags struct {
	configPath string
	values     config.Config
}

func (f *runFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.configPath, "config", "", "YAML config file")
	flags.StringVar(&f.values.Survey, "survey", survey.Legacy, "Cutout service (legacy or sdss)")
	flags.StringVar(&f.values.Catalog, "cat", "", "Catalog file or http(s) URL (defaults to the survey preset)")
	flags.StringVar(&f.values.Output, "output", "", "Image directory (defaults to the survey preset)")
	flags.StringVar(&f.values.Columns.ID, "id-col", "", "Catalog column holding the galaxy identifier")
	flags.StringVar(&f.values.Columns.RA, "ra-col", "", "Catalog column holding right ascension in degrees")
	flags.StringVar(&f.values.Columns.Dec, "dec-col", "", "Catalog column holding declination in degrees")
	flags.IntVar(&f.values.Limit, "limit", 0, "Only use the first N catalog rows (0 for all)")
	flags.StringVar(&f.values.CacheDir, "cache-dir", "", "Cache directory for remote catalogs")
	flags.BoolVar(&f.values.RefreshCatalog, "refresh-catalog", false, "Download a remote catalog again even if cached")
}

// resolve layers preset defaults, the config file, CUTOUTS_* variables and
// the flags the user actually set, then validates the result.
func (f *runFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	src := config.Sources{
		File:   f.configPath,
		Lookup: os.LookupEnv,
	}
	if cmd.Flags().Changed("survey") {
		src.Survey = f.values.Survey
	}

	cfg, err := config.Load(src)
	if err != nil {
		return config.Config{}, err
	}
	name := cfg.Survey
	f.apply(cmd, &cfg)
	cfg.Survey = name

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// apply copies the flags the user set explicitly onto c. Zero values are
// applied too, so --sleep 0 disables the delay.
func (f *runFlags) apply(cmd *cobra.Command, c *config.Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	v := f.values

	set("cat", func() { c.Catalog = v.Catalog })
	set("output", func() { c.Output = v.Output })
	set("id-col", func() { c.Columns.ID = v.Columns.ID })
	set("ra-col", func() { c.Columns.RA = v.Columns.RA })
	set("dec-col", func() { c.Columns.Dec = v.Columns.Dec })
	set("limit", func() { c.Limit = v.Limit })
	set("cache-dir", func() { c.CacheDir = v.CacheDir })
	set("refresh-catalog", func() { c.RefreshCatalog = v.RefreshCatalog })

	set("pixscale", func() { c.Params.PixScale = v.Params.PixScale })
	set("size", func() { c.Params.Size = v.Params.Size })
	set("width", func() { c.Params.Width = v.Params.Width })
	set("height", func() { c.Params.Height = v.Params.Height })
	set("layer", func() { c.Params.Layer = v.Params.Layer })
	set("base-url", func() { c.BaseURL = v.BaseURL })
	set("sleep", func() { c.Sleep = v.Sleep })
	set("timeout", func() { c.Timeout = v.Timeout })
	set("retries", func() { c.Retries = v.Retries })
	set("retry-backoff", func() { c.RetryBackoff = v.RetryBackoff })
	set("progress", func() { c.Progress = v.Progress })
	set("report", func() { c.Report = v.Report })
	set("user-agent", func() { c.UserAgent = v.UserAgent })
}
