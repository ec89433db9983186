package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/netshellpro/netshellpro/internal/service"
)

// printResult 按设备输出执行结果
func printResult(w io.Writer, res *service.PipelineResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "Run %s\n", res.RunID)
	for _, d := range res.Devices {
		fmt.Fprintf(w, "\n=== %s (%s) [%s] ===\n", d.Device, d.Address, d.Status)
		if d.Result != nil {
			for _, e := range d.Result.Entries {
				fmt.Fprintf(w, "--- %s (%s) ---\n", e.Command, entryStatus(e))
				if e.Retried {
					fmt.Fprintf(w, "corrected from: %s\n", e.Original)
				}
				if out := strings.TrimRight(e.Output, "\r\n"); out != "" {
					fmt.Fprintln(w, out)
				}
			}
		}
		if d.Error != "" {
			fmt.Fprintf(w, "error: %s\n", d.Error)
		}
		if d.Analysis != "" {
			fmt.Fprintf(w, "\n%s\n", d.Analysis)
		}
		if d.ReportURI != "" {
			fmt.Fprintf(w, "report: %s\n", d.ReportURI)
		}
	}
	return nil
}

func entryStatus(e service.ResultEntry) string {
	switch {
	case e.Incomplete:
		return "incomplete"
	case e.Failed:
		return "failed"
	default:
		return "ok"
	}
}
