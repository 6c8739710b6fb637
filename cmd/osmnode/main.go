// Command osmnode builds and inspects control-node indices from OSM PBF
// extracts.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "osmnode",
	Short: "Extract and index control nodes from OSM PBF files",
	Long: `osmnode streams an OSM PBF extract, collects the node ids of control
features (traffic signals, stop signs, traffic calming, ...) and writes
per-feature membership indices in two formats: a flat sorted uint64 array
(.u64, memory-mapped binary search) and a roaring bitmap (.roar).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
