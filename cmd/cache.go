package cmd

import (
	"fmt"
	"os"

	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/config"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string
	var cacheDir string

	downloader := func(cmd *cobra.Command) (*catalog.Downloader, error) {
		cfg, err := config.Load(config.Sources{File: configPath, Lookup: os.LookupEnv})
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("cache-dir") {
			cfg.CacheDir = cacheDir
		}
		return catalog.NewDownloader(cfg.DownloadConfig()), nil
	}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the remote catalog cache",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory for remote catalogs")

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := downloader(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.CacheDir())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached remote catalog",
		Long: `Remove the cache directory holding catalogs downloaded from http(s) URLs.
The next fetch of a remote catalog downloads it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := downloader(cmd)
			if err != nil {
				return err
			}
			if err := d.ClearCache(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared catalog cache %s\n", d.CacheDir())
			return nil
		},
	})

	return cmd
}
