package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/geo"
	"github.com/couchcryptid/storm-radar/internal/sites"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the NEXRAD site closest to a point",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		maxKm := cfg.NearestMaxKm
		if cmd.Flags().Changed("max-km") {
			maxKm, _ = cmd.Flags().GetFloat64("max-km")
		}

		p := domain.GeoPoint{Lat: lat, Lon: lon}
		if !p.Valid() || maxKm < 0 {
			return fmt.Errorf("lat %v lon %v max-km %v: %w", lat, lon, maxKm, domain.ErrInvalidInput)
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		res, ok := registry.Nearest(p, sites.Options{MaxDistanceKm: maxKm})
		if !ok {
			return errors.New(domain.Describe(domain.ErrNoNearestSite))
		}
		formatNearest(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	nearestCmd.Flags().Float64("lat", 0, "latitude in degrees")
	nearestCmd.Flags().Float64("lon", 0, "longitude in degrees")
	nearestCmd.Flags().Float64("max-km", 0, "ignore sites farther than this (0 = no limit; default NEAREST_MAX_KM)")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(nearestCmd)
}

func formatNearest(w io.Writer, res domain.NearestSiteResult) {
	s := res.Site
	place := s.Name
	if s.State != "" {
		place += ", " + s.State
	}
	fmt.Fprintf(w, "%s  %s\n", s.ID, place)
	fmt.Fprintf(w, "  distance: %.1f km (%.1f mi)\n", res.DistanceKm, res.DistanceMi)
	fmt.Fprintf(w, "  bearing:  %.0f° %s\n", res.BearingDeg, geo.CompassPoint(res.BearingDeg))
}
