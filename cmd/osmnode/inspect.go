package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/osmnode"
)

var inspectDir string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect index files in a directory",
	RunE: func(_ *cobra.Command, _ []string) error {
		stats, err := osmnode.Inspect(inspectDir)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("No index files found.")
			return nil
		}
		for _, stat := range stats {
			fmt.Printf("%s [%s]: %s nodes, %s\n",
				stat.Feature,
				stat.Format,
				humanize.Comma(int64(stat.Cardinality)),
				humanize.IBytes(uint64(stat.SizeBytes)),
			)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDir, "dir", "", "directory containing index files (required)")
	_ = inspectCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(inspectCmd)
}
