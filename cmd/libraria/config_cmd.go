package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/libraria/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default configuration file",
	Long: `Write the default configuration to PATH (default: libraria.yaml).
An existing file is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "libraria.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s wrote %s\n", color.GreenString("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Summary.APIKey != "" {
			cfg.Summary.APIKey = "********"
		}
		if cfg.Store.PathstoreAPIKey != "" {
			cfg.Store.PathstoreAPIKey = "********"
		}
		return writeOutput(os.Stdout, outputFormat, cfg)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}
