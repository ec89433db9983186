package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

var (
	// Version is set at build time.
	Version = "dev"

	configFile    string
	inventoryFile string
	verbose       bool
	jsonOutput    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nexuscli",
	Short: "Run CLI commands on network switches over SSH",
	Long: `nexuscli executes show and configuration commands on switches from an
inventory file. Commands are grouped into interface blocks, failed commands
are retried with the platform's corrected syntax, and every run produces a
per-device report.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&inventoryFile, "inventory", "i", "", "switch inventory file (overrides server.inventory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(platformsCmd)
}

func setup() error {
	// .env 可选
	_ = godotenv.Load()

	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if p := strings.TrimSpace(inventoryFile); p != "" {
		c.Server.Inventory = p
	}
	cfg = c

	level := c.Log.Level
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{
		Level:      level,
		Format:     c.Log.Format,
		Output:     c.Log.Output,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
