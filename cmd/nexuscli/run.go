package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/internal/database"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/internal/service"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

var (
	switchNames []string
	allSwitches bool
	interactive bool
	assumeYes   bool
)

var runCmd = &cobra.Command{
	Use:   "run [commands]",
	Short: "Execute commands on one or more switches",
	Long: `Execute commands on the selected switches. Commands are separated by
newlines or semicolons, for example:

  nexuscli run --switch leaf-01 "show vlan brief; show ip bgp summary"
  nexuscli run --all "interface ethernet1/1; description uplink"

Configuration changes are shown for confirmation before any command is sent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommands,
}

func init() {
	runCmd.Flags().StringSliceVarP(&switchNames, "switch", "s", nil, "target switch name or address (repeatable)")
	runCmd.Flags().BoolVar(&allSwitches, "all", false, "run on every switch in the inventory")
	runCmd.Flags().BoolVar(&interactive, "interactive", false, "ask before running corrected commands")
	runCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "apply changes and corrections without asking")
}

func runCommands(cmd *cobra.Command, args []string) error {
	devices, err := selectDevices(cfg.Server.Inventory, switchNames, allSwitches)
	if err != nil {
		return err
	}

	if cfg.Database.SQLite.Enabled {
		if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("Received signal, cancelling run", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	var confirmer service.Confirmer
	if assumeYes {
		confirmer = service.AutoConfirmer{ApproveChanges: true, ApproveRetry: true}
	} else {
		rules := service.LoadRules(cfg.Executor.Platform, cfg.Executor.DeviceDefaults)
		confirmer = newPromptConfirmer(os.Stdin, cmd.OutOrStdout(), rules)
	}
	opts := service.EngineOptions{Confirmer: confirmer}
	if cmd.Flags().Changed("interactive") {
		opts.Interactive = &interactive
	}
	engine := service.NewEngine(cfg, opts)
	defer engine.Close()

	request := strings.Join(args, " ")
	res, err := engine.Pipeline.Run(ctx, request, devices)
	if errors.Is(err, service.ErrClarificationNeeded) {
		return fmt.Errorf("no commands found in %q", request)
	}
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), res, jsonOutput); err != nil {
		return err
	}
	for _, d := range res.Devices {
		if d.Status != model.RunStatusSuccess {
			return fmt.Errorf("run %s finished with failures", res.RunID)
		}
	}
	return nil
}

// selectDevices 按名称或地址从清单中选出目标设备
func selectDevices(path string, names []string, all bool) ([]model.Device, error) {
	if !all && len(names) == 0 {
		return nil, errors.New("no target switches: use --switch or --all")
	}
	inventory, err := config.LoadInventory(path)
	if err != nil {
		return nil, err
	}
	if all {
		if len(inventory) == 0 {
			return nil, fmt.Errorf("inventory %s is empty", path)
		}
		return inventory, nil
	}
	devices := make([]model.Device, 0, len(names))
	for _, n := range names {
		d, ok := config.FindDevice(inventory, n)
		if !ok {
			return nil, fmt.Errorf("switch %q not found in %s", n, path)
		}
		devices = append(devices, d)
	}
	return devices, nil
}
