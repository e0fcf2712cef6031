/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/snapshotetl/pkg/config"
	"github.com/ssargent/snapshotetl/pkg/pipeline"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report record counts and unread bytes per container",
	Long: `Walk every container of the containers directory and report how many
records it holds, its logical length and capacity, and how many bytes
follow the last complete record. Nothing is written.

Examples:
  snapshot-etl inspect --containers ./accounts
  snapshot-etl inspect --containers ./accounts --manifest ./manifest.yaml --workers 8 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("containers") {
			cfg.ContainersDir, _ = cmd.Flags().GetString("containers")
		}
		if cmd.Flags().Changed("manifest") {
			cfg.Manifest, _ = cmd.Flags().GetString("manifest")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Inspect.Workers, _ = cmd.Flags().GetInt("workers")
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		stats, err := runInspect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return printStats(cmd.OutOrStdout(), stats, asJSON)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("containers", "", "Directory holding the account containers")
	inspectCmd.Flags().String("manifest", "", "Yaml manifest of container logical lengths")
	inspectCmd.Flags().Int("workers", 0, "Number of containers walked concurrently")
	inspectCmd.Flags().Bool("json", false, "Print one JSON object per container")
}

func runInspect(ctx context.Context, cfg *config.Config) ([]pipeline.Stats, error) {
	if err := requireContainer(); err != nil {
		return nil, err
	}
	if cfg.ContainersDir == "" {
		return nil, fmt.Errorf("containers directory is required")
	}

	seq, err := container.GetSourceFactory()(cfg.ContainersDir, cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to open containers: %w", err)
	}
	defer seq.Close()

	return pipeline.Inspect(ctx, seq, cfg.Inspect.Workers)
}

func printStats(w io.Writer, stats []pipeline.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, st := range stats {
			if err := enc.Encode(st); err != nil {
				return err
			}
		}
		return nil
	}

	var records, unread int
	for _, st := range stats {
		fmt.Fprintf(w, "%s\trecords=%d\tlength=%d\tcapacity=%d\tunread=%d\n",
			st.Name, st.Records, st.Length, st.Capacity, st.Unread)
		records += st.Records
		unread += st.Unread
	}
	fmt.Fprintf(w, "%d containers, %d records, %d unread bytes\n", len(stats), records, unread)
	return nil
}
