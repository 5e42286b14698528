package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
	"github.com/couchcryptid/storm-radar/internal/providers"
	"github.com/couchcryptid/storm-radar/internal/radar"
	"github.com/couchcryptid/storm-radar/internal/timeline"
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Fetch a provider manifest and print its frames",
	Long:  "Fetch a manifest from one provider, or from the national fallback chain when --provider is not set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString("provider")

		metrics := observability.NewMetrics()
		set, err := providers.Build(cfg, clockwork.NewRealClock(), metrics, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		var p *radar.Provider
		var m *domain.FrameManifest
		if id == "" {
			router, err := set.Router(cfg, metrics, logger)
			if err != nil {
				return err
			}
			res, err := router.Chain(domain.TierNational).Frames(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", domain.Describe(err), err)
			}
			p, m = res.Provider, res.Manifest
		} else {
			var ok bool
			if p, ok = set.Get(id); !ok {
				return fmt.Errorf("provider %q is not configured", id)
			}
			if m, err = p.Frames(ctx); err != nil {
				return fmt.Errorf("%s: %w", domain.Describe(err), err)
			}
		}

		templates := make([]string, m.Len())
		for i, f := range m.Frames {
			if tmpl, err := p.TileTemplate(f); err == nil {
				templates[i] = string(tmpl)
			}
		}
		formatFrames(cmd.OutOrStdout(), p.Label(), p.MaxZoom(), m, templates)
		return nil
	},
}

func init() {
	framesCmd.Flags().String("provider", "", "provider id (rainviewer, iem-scans, iem-static)")
	rootCmd.AddCommand(framesCmd)
}

func formatFrames(w io.Writer, label string, maxZoom int, m *domain.FrameManifest, templates []string) {
	fmt.Fprintf(w, "%s (%s), %d frames, max zoom %d, fetched %s\n\n",
		label, m.ProviderID, m.Len(), maxZoom, m.FetchedAt.UTC().Format(time.RFC3339))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIME (UTC)\tLABEL\tTEMPLATE")
	for i, f := range m.Frames {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, f.Time.UTC().Format("2006-01-02 15:04"), timeline.FrameLabel(m, i), templates[i])
	}
	_ = tw.Flush()
}
