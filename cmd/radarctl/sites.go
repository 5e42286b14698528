package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the radar site registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asGeoJSON, _ := cmd.Flags().GetBool("geojson")

		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		if asGeoJSON {
			data, err := registry.GeoJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		formatSites(cmd.OutOrStdout(), registry.Sites())
		return nil
	},
}

func init() {
	sitesCmd.Flags().Bool("geojson", false, "print a GeoJSON FeatureCollection")
	rootCmd.AddCommand(sitesCmd)
}

func formatSites(w io.Writer, list []domain.RadarSite) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tLAT\tLON")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\n", s.ID, s.Name, s.State, s.Lat, s.Lon)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d sites\n", len(list))
}
