// Command orbitctl runs the orbit pipeline from the command line, without a
// server: one-off frames, ground tracks, catalog search and view-query
// decoding.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/logging"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
)

var rootCmd = &cobra.Command{
	Use:   "orbitctl",
	Short: "Inspect satellite catalogs and render frames offline",
	Long: `
orbitctl loads element-set catalogs and runs the same propagation pipeline
the orbitview server uses.

Catalogs come from --catalog (comma separated or repeated). Without it the
newest snapshot in --snapshot-dir is used.

Examples:
  orbitctl search starlink --catalog active.txt
  orbitctl describe 25544 --catalog stations.txt --at 2024-04-09T12:00:00Z
  orbitctl track 25544 --catalog stations.txt --minutes 90 --geojson
  orbitctl frame --catalog active.txt --color altitude --group starlink
  orbitctl url "?zoom=8&color=velocity&selected=25544"
`,
	SilenceUsage: true,
}

var (
	catalogFiles []string
	snapshotDir  string
	logLevel     string
	atFlag       string
)

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&catalogFiles, "catalog", nil, "Catalog text files (3-line or 2-line element sets)")
	rootCmd.PersistentFlags().StringVar(&snapshotDir, "snapshot-dir", "/tmp/orbitview/catalog", "Snapshot directory used when no --catalog is given")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&atFlag, "at", "", "Instant to evaluate at: RFC3339, YYYY-MM-DD or epoch ms (default: now)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	logger, _ := logging.New(logging.Config{Level: logLevel})
	return logger
}

// instant resolves --at.
func instant() (time.Time, error) {
	if atFlag == "" {
		return time.Now().UTC(), nil
	}
	t, ok := state.ParseDate(atFlag)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --at value %q", atFlag)
	}
	return t, nil
}

// loadCatalog ingests --catalog, or falls back to the latest snapshot.
func loadCatalog(ctx context.Context, logger *slog.Logger) (*catalog.Catalog, error) {
	store := catalog.NewStore(logger)
	if len(catalogFiles) > 0 {
		sources, err := catalog.LoadFiles(catalogFiles)
		if err != nil {
			return nil, err
		}
		return store.Ingest(ctx, sources...)
	}

	cat, err := catalog.NewSnapshotCache(snapshotDir, 0).LoadLatest()
	if errors.Is(err, catalog.ErrNoSnapshot) {
		return nil, fmt.Errorf("no --catalog given and no snapshot in %s", snapshotDir)
	}
	if err != nil {
		return nil, err
	}
	return store.Set(cat), nil
}
