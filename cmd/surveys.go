package cmd

import (
	"fmt"

	"github.com/skysurvey/cutouts/internal/survey"
	"github.com/spf13/cobra"
)

func newSurveysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "surveys",
		Short: "List the supported cutout services and their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, name := range survey.Names() {
				s, err := survey.Lookup(name)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s: %s\n", s.Name, s.Description)
				fmt.Fprintf(out, "  Endpoint:  %s\n", s.BaseURL)
				fmt.Fprintf(out, "  Image:     %s\n", sizeLabel(s.Defaults))
				fmt.Fprintf(out, "  Sleep:     %s\n", s.Sleep)
				fmt.Fprintf(out, "  Columns:   %s/%s/%s\n", s.Columns.ID, s.Columns.RA, s.Columns.Dec)
				fmt.Fprintf(out, "  Catalog:   %s\n", s.DefaultCatalog)
				fmt.Fprintf(out, "  Output:    %s\n", s.DefaultOutput)
			}
			return nil
		},
	}
}

func sizeLabel(p survey.Params) string {
	if p.Size > 0 {
		return fmt.Sprintf("%dpx at %g arcsec/px, layer %s", p.Size, p.PixScale, p.Layer)
	}
	return fmt.Sprintf("%dx%dpx", p.Width, p.Height)
}
