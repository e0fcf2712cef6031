/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the snapshot-etl configuration file",
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file holding the default settings.

Examples:
  snapshot-etl config init
  snapshot-etl config init --config ./etl.yaml --owner TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		owner, _ := cmd.Flags().GetString("owner")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if err := initConfig(configPath, owner, force); err != nil {
			return err
		}
		cmd.Printf("✅ Configuration written to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().String("owner", "", "Base58 program id to extract by default")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
}

func initConfig(configPath, owner string, force bool) error {
	if config.ConfigExists(configPath) && !force {
		return fmt.Errorf("config already exists at %s, use --force to overwrite", configPath)
	}

	cfg := config.DefaultConfig()
	if owner != "" {
		if _, err := codec.ParsePubkey(owner); err != nil {
			return fmt.Errorf("invalid owner: %w", err)
		}
		cfg.Owner = owner
	}
	return config.SaveConfig(cfg, configPath)
}
