// Command radarctl queries the radar site registry and providers from the
// command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-radar/internal/config"
	"github.com/couchcryptid/storm-radar/internal/sites"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "radarctl",
	Short:        "Radar site and frame tooling",
	Long:         "Look up the nearest NEXRAD site, list provider frames, export the site registry and validate site datasets.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		// Keep stdout for command output.
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadRegistry() (*sites.Registry, error) {
	if cfg.RadarSitesPath != "" {
		return sites.LoadFile(cfg.RadarSitesPath)
	}
	return sites.Default()
}
