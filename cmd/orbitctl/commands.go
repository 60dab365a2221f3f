package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/catalog"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/geometry"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/pipeline"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/propagation"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/state"
	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/transform"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Render one frame and print its statistics or write the packed buffer",
	Long: `
Runs one pipeline tick over the catalog at --at and prints the tick statistics
as JSON. With --out the packed binary frame (uint32 count, int64 Unix ms, then
count*6 float32 values) is written to the file.
`,
	Args: cobra.NoArgs,
	RunE: runFrame,
}

var trackCmd = &cobra.Command{
	Use:   "track <id>",
	Short: "Print the ground track of one object",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog by name, id, group, operator, mission or country",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

var describeCmd = &cobra.Command{
	Use:   "describe <id>",
	Short: "Propagate one object and print its state and mean elements",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

var urlCmd = &cobra.Command{
	Use:   "url <query>",
	Short: "Decode a view query string and print the state and its canonical form",
	Long: `
Decodes a view query string (pitch, yaw, zoom, color, ecf, date, selected, q)
on top of the default view and prints the resulting state as JSON along with
the canonical query the server would write for it. Invalid values fall back to
the defaults.
`,
	Args: cobra.ExactArgs(1),
	RunE: runURL,
}

var (
	frameOut      string
	frameFrame    string
	frameColor    string
	frameGroup    string
	frameMax      int
	frameActive   bool
	trackMinutes  int
	trackSamples  int
	trackGeoJSON  bool
	searchLimit   int
	describeFrame string
)

func init() {
	rootCmd.AddCommand(frameCmd, trackCmd, searchCmd, describeCmd, urlCmd)

	frameCmd.Flags().StringVar(&frameOut, "out", "", "Write the packed binary frame to this file")
	frameCmd.Flags().StringVar(&frameFrame, "frame", "inertial", "Reference frame (inertial, fixed)")
	frameCmd.Flags().StringVar(&frameColor, "color", "group", "Color mode (group, altitude, velocity, operator, mission, country)")
	frameCmd.Flags().StringVar(&frameGroup, "group", "all", "Only draw this group")
	frameCmd.Flags().IntVar(&frameMax, "max", pipeline.DefaultMaxInstances, "Maximum instances")
	frameCmd.Flags().BoolVar(&frameActive, "active-only", false, "Hide debris and rocket bodies")

	trackCmd.Flags().IntVar(&trackMinutes, "minutes", 120, "Track duration in minutes")
	trackCmd.Flags().IntVar(&trackSamples, "samples", 0, "Sample count (default 180)")
	trackCmd.Flags().BoolVar(&trackGeoJSON, "geojson", false, "Print a GeoJSON feature")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum rows (0 = all)")

	describeCmd.Flags().StringVar(&describeFrame, "frame", "inertial", "Reference frame for the reported position")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runFrame(cmd *cobra.Command, args []string) error {
	frame, ok := transform.ParseFrame(frameFrame)
	if !ok {
		return fmt.Errorf("unknown frame %q", frameFrame)
	}
	mode, ok := pipeline.ParseColorMode(frameColor)
	if !ok {
		return fmt.Errorf("unknown color mode %q", frameColor)
	}
	group, ok := catalog.ParseGroup(frameGroup)
	if !ok {
		return fmt.Errorf("unknown group %q", frameGroup)
	}
	t, err := instant()
	if err != nil {
		return err
	}

	logger := newLogger()
	cat, err := loadCatalog(cmd.Context(), logger)
	if err != nil {
		return err
	}

	prop := propagation.New(propagation.DefaultCacheSize, logger)
	pipe := pipeline.New(prop, propagation.NewWorkerPool(0, logger), frameMax, logger)
	buf := pipeline.NewBuffer(pipe.MaxInstances())

	filters := pipeline.DefaultFilters()
	filters.Group = group
	filters.ActiveOnly = frameActive
	stats, err := pipe.Run(cmd.Context(), cat, pipeline.Input{Time: t, Frame: frame, ColorMode: mode, Filters: filters}, buf)
	if err != nil {
		return err
	}

	if frameOut != "" {
		f, err := os.Create(frameOut)
		if err != nil {
			return fmt.Errorf("creating frame file: %w", err)
		}
		if _, err := buf.WriteTo(f); err != nil {
			f.Close()
			return fmt.Errorf("writing frame: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing frame file: %w", err)
		}
	}

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"time":            t,
		"frame":           frame.String(),
		"color_mode":      mode,
		"catalog_version": cat.Version,
		"records":         cat.Len(),
		"stats":           stats,
	})
}

func lookup(cmd *cobra.Command, id string) (*catalog.Record, *propagation.Propagator, time.Time, error) {
	t, err := instant()
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	logger := newLogger()
	cat, err := loadCatalog(cmd.Context(), logger)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	rec, ok := cat.ByID(id)
	if !ok {
		return nil, nil, time.Time{}, fmt.Errorf("object %s not in catalog", id)
	}
	return &rec, propagation.New(16, logger), t, nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	if trackMinutes < 1 || trackMinutes > 1440 {
		return fmt.Errorf("--minutes must be 1-1440")
	}
	rec, prop, t, err := lookup(cmd, args[0])
	if err != nil {
		return err
	}

	segs := geometry.GroundTrack(prop, rec, t, geometry.TrackOptions{
		Duration: time.Duration(trackMinutes) * time.Minute,
		Samples:  trackSamples,
	})
	if trackGeoJSON {
		data, err := geometry.GroundTrackGeoJSON(rec, segs).MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEG\tTIME\tLAT\tLON\tALT_KM")
	for i, seg := range segs {
		for _, pt := range seg {
			fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\t%.1f\n", i, pt.Time.Format(time.RFC3339), pt.Lat, pt.Lon, pt.Altitude)
		}
	}
	return w.Flush()
}

func runSearch(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(cmd.Context(), newLogger())
	if err != nil {
		return err
	}
	q := ""
	if len(args) > 0 {
		q = args[0]
	}
	matches := cat.Search(q)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tGROUP\tOPERATOR\tPERIOD_MIN\tINCL_DEG")
	for i, rec := range matches {
		if searchLimit > 0 && i >= searchLimit {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%.2f\n",
			rec.ID, rec.Name, rec.Group, rec.Operator, rec.Elements.PeriodMinutes(), rec.Elements.Inclination)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if searchLimit > 0 && len(matches) > searchLimit {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d matches shown\n", searchLimit, len(matches))
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	frame, ok := transform.ParseFrame(describeFrame)
	if !ok {
		return fmt.Errorf("unknown frame %q", describeFrame)
	}
	rec, prop, t, err := lookup(cmd, args[0])
	if err != nil {
		return err
	}
	d, err := prop.Describe(rec, t)
	if err != nil {
		return err
	}
	pos, _ := prop.PositionForFrame(rec, t, frame)
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"details":  d,
		"frame":    frame.String(),
		"position": [3]float64{pos.X, pos.Y, pos.Z},
	})
}

func runURL(cmd *cobra.Command, args []string) error {
	values, err := url.ParseQuery(strings.TrimPrefix(args[0], "?"))
	if err != nil {
		return fmt.Errorf("parsing query: %w", err)
	}
	t, err := instant()
	if err != nil {
		return err
	}
	defaults := state.Defaults(t)
	st := state.DecodeQuery(values, defaults)
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"state": st,
		"query": state.EncodeQuery(st, defaults),
	})
}
