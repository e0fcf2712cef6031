/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/config"
	"github.com/ssargent/snapshotetl/pkg/logging"
	"github.com/ssargent/snapshotetl/pkg/pipeline"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Copy the accounts of one program into the destination store",
	Long: `Walk every container of the containers directory in lexical order and
insert each account owned by the given program into the destination store.

All inserts of a run share one transaction: a container that cannot be
opened or a failed write leaves the destination untouched. Keys that are
already present keep their first stored value.

Examples:
  snapshot-etl extract --owner TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA --containers ./accounts
  snapshot-etl extract --config ./etl.yaml --sink pebble --db ./accounts.pebble`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		applyExtractFlags(cmd, cfg)

		res, err := runExtract(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		cmd.Printf("Run %s: %d containers, %d records scanned, %d matched, %d inserted\n",
			res.RunID, res.Containers, res.Scanned, res.Accepted, res.Inserted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("owner", "", "Base58 program id whose accounts are extracted")
	extractCmd.Flags().String("containers", "", "Directory holding the account containers")
	extractCmd.Flags().String("manifest", "", "Yaml manifest of container logical lengths")
	extractCmd.Flags().String("sink", "", "Destination backend: sqlite or pebble")
	extractCmd.Flags().String("db", "", "Destination path")
	extractCmd.Flags().String("metrics-textfile", "", "Write run metrics to this file in the Prometheus text format")
}

func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	override := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	override("owner", &cfg.Owner)
	override("containers", &cfg.ContainersDir)
	override("manifest", &cfg.Manifest)
	override("sink", &cfg.Sink.Backend)
	override("db", &cfg.Sink.Path)
	override("metrics-textfile", &cfg.Metrics.Textfile)
}

// runExtract performs one extraction run described by cfg. Closing the sink
// is part of persisting the run, so a close failure fails the run.
func runExtract(ctx context.Context, cfg *config.Config) (res pipeline.Result, err error) {
	if err := requireContainer(); err != nil {
		return pipeline.Result{}, err
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Result{}, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(container.GetLogOutput(), cfg.Logging.Level)
	if err != nil {
		return pipeline.Result{}, err
	}
	owner, err := codec.ParsePubkey(cfg.Owner)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("invalid owner: %w", err)
	}

	seq, err := container.GetSourceFactory()(cfg.ContainersDir, cfg.Manifest)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("failed to open containers: %w", err)
	}
	defer seq.Close()

	s, err := container.GetSinkFactory()(cfg.Sink.Backend, cfg.Sink.Path)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("failed to open sink: %w", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			level.Error(logger).Log("msg", "failed to close sink", "err", closeErr)
			if err == nil {
				err = fmt.Errorf("close sink: %w", closeErr)
			}
		}
	}()

	reg := prometheus.NewRegistry()
	res, runErr := pipeline.New(logger, reg, s, owner).Run(ctx, seq)
	if runErr != nil {
		level.Error(logger).Log("msg", "extraction failed", "run", res.RunID.String(), "err", runErr)
	}

	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			level.Warn(logger).Log("msg", "failed to write metrics textfile", "path", cfg.Metrics.Textfile, "err", err)
		}
	}

	return res, runErr
}
