package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/osmnode"
	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/pbf"
	"github.com/hupe1980/osmnode/schema"
)

var (
	buildPBF       string
	buildOut       string
	buildFormat    string
	buildFeatures  string
	buildTmp       string
	buildThreshold int
	buildProcs     int
	buildVerbose   bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build indices from a PBF file",
	Example: `  osmnode build --pbf region.osm.pbf --out ./indices
  osmnode build --pbf region.osm.pbf --out ./indices --format roar --features signals,stops`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildPBF, "pbf", "", "path to the OSM PBF file (required)")
	buildCmd.Flags().StringVar(&buildOut, "out", "", "output directory for index files (required)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "both", "index format to generate: u64, roar or both")
	buildCmd.Flags().StringVar(&buildFeatures, "features", "signals,stops,calming", "comma-separated feature names to extract")
	buildCmd.Flags().StringVar(&buildTmp, "tmp", "", "temporary directory for spill runs (default: system temp)")
	buildCmd.Flags().IntVar(&buildThreshold, "flush-threshold", 0, "ids per feature buffered before spilling to disk")
	buildCmd.Flags().IntVar(&buildProcs, "procs", 0, "PBF decoder goroutines (default: GOMAXPROCS)")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "enable debug logging")
	_ = buildCmd.MarkFlagRequired("pbf")
	_ = buildCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(buildCmd)
}

func parseFormats(s string) ([]index.Format, error) {
	switch s {
	case "u64":
		return []index.Format{index.FormatSorted}, nil
	case "roar":
		return []index.Format{index.FormatBitmap}, nil
	case "both":
		return []index.Format{index.FormatSorted, index.FormatBitmap}, nil
	default:
		return nil, fmt.Errorf("invalid format %q, expected u64, roar or both", s)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runBuild(cmd *cobra.Command, _ []string) error {
	formats, err := parseFormats(buildFormat)
	if err != nil {
		return err
	}

	specs, err := schema.Lookup(splitList(buildFeatures))
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if buildVerbose {
		level = slog.LevelDebug
	}
	logger := osmnode.NewTextLogger(level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := pbf.Open(ctx, buildPBF, buildProcs)
	if err != nil {
		return err
	}
	defer src.Close()

	builder := osmnode.NewBuilder(
		osmnode.WithLogger(logger),
		osmnode.WithFeatures(specs),
		osmnode.WithFormats(formats...),
		osmnode.WithTempDir(buildTmp),
		osmnode.WithFlushThreshold(buildThreshold),
	)

	report, err := builder.Run(ctx, src, buildOut)
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d nodes, matched %d\n", report.NodesScanned, report.NodesMatched)
	for _, fr := range report.Features {
		fmt.Printf("  %s: %d unique nodes\n", fr.Name, fr.Unique)
		for _, path := range fr.Files {
			fmt.Printf("    -> %s\n", path)
		}
	}
	return nil
}
