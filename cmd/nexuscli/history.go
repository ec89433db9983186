package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/netshellpro/netshellpro/internal/database"
	"github.com/netshellpro/netshellpro/internal/service"
)

var (
	historyDevice string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show persisted command history",
	Long:  `Show command history saved in the SQLite database (database.sqlite.enabled must be true).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Database.SQLite.Enabled {
			fmt.Fprintln(cmd.OutOrStdout(), "History persistence is disabled (database.sqlite.enabled=false).")
			return nil
		}
		if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()

		entries, err := service.NewGormHistoryStore(database.GetDB()).List(context.Background(), historyDevice, historyLimit)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), entries, jsonOutput)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyDevice, "switch", "s", "", "only show history of this switch")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
}

func printHistory(w io.Writer, entries []service.HistoryEntry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSWITCH\tCOMMAND\tRESULT")
	for _, e := range entries {
		result := "ok"
		switch {
		case e.Incomplete:
			result = "incomplete"
		case !e.Success:
			result = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Hostname, e.Command, result)
	}
	return tw.Flush()
}
