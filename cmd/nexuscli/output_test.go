package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netshellpro/netshellpro/internal/service"
)

func sampleResult() *service.PipelineResult {
	return &service.PipelineResult{
		RunID:    "run-7",
		Request:  "show ip bgp summary",
		Commands: []string{"show ip bgp summary"},
		Devices: []service.DeviceReport{
			{
				Device:  "leaf-01",
				Address: "10.0.0.1",
				Status:  "success",
				Result: &service.ExecutionResult{Entries: []service.ResultEntry{
					{Command: "show bgp l2vpn evpn summary", Original: "show ip bgp summary", Retried: true, Output: "BGP router identifier 10.0.0.1\r\n"},
				}},
				Analysis:  "Executed 1 command(s) on leaf-01, 0 failed.",
				ReportURI: "file:///tmp/report.md",
			},
			{Device: "leaf-02", Address: "10.0.0.2", Status: "failed", Error: "connection refused"},
		},
	}
}

func TestPrintResultText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, sampleResult(), false))
	out := buf.String()

	assert.Contains(t, out, "Run run-7")
	assert.Contains(t, out, "=== leaf-01 (10.0.0.1) [success] ===")
	assert.Contains(t, out, "--- show bgp l2vpn evpn summary (ok) ---")
	assert.Contains(t, out, "corrected from: show ip bgp summary")
	assert.Contains(t, out, "report: file:///tmp/report.md")
	assert.Contains(t, out, "error: connection refused")
}

func TestPrintResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, sampleResult(), true))

	var decoded service.PipelineResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-7", decoded.RunID)
	require.Len(t, decoded.Devices, 2)
	assert.Equal(t, "failed", decoded.Devices[1].Status)
}

func TestEntryStatus(t *testing.T) {
	assert.Equal(t, "ok", entryStatus(service.ResultEntry{}))
	assert.Equal(t, "failed", entryStatus(service.ResultEntry{Failed: true}))
	assert.Equal(t, "incomplete", entryStatus(service.ResultEntry{Failed: true, Incomplete: true}), "未完成优先于失败")
}
