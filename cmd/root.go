package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "cutouts",
		Short: "Idempotent bulk downloader for galaxy cutout images",
		Long: `Cutouts downloads one JPEG image per galaxy in a catalog from a public
sky survey cutout service (DESI Legacy Imaging Surveys or SDSS SkyServer).

Runs are resumable: images already present in the output directory are never
fetched again, so an interrupted or partially failed download is completed by
simply running the same command again.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newManifestCmd())
	cmd.AddCommand(newSurveysCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
