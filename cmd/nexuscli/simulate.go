package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/pkg/logger"
	"github.com/netshellpro/netshellpro/simulate"
)

var simulateListen string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Start the built-in switch simulator",
	Long: `Start an SSH server that behaves like an NX-OS switch. Devices are read
from server.simulate_config; the default device accepts admin/admin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := simulate.LoadConfig(cfg.Server.SimulateConfig)
		if err != nil {
			logger.Warn("Simulate: using default devices", "path", cfg.Server.SimulateConfig, "error", err)
			sc = simulate.DefaultConfig()
		}
		if l := strings.TrimSpace(simulateListen); l != "" {
			sc.Listen = l
		}
		srv, err := simulate.Start(sc)
		if err != nil {
			return err
		}
		defer srv.Stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Simulator listening on %s (Ctrl+C to stop)\n", srv.Addr())
		for user, dev := range sc.Devices {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s@%s  hostname=%s\n", user, srv.Addr(), dev.Hostname)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		return nil
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platform dialects",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range dialect.Names() {
			marker := " "
			if strings.EqualFold(name, cfg.Executor.Platform) {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateListen, "listen", "", "listen address (overrides simulate config)")
}
