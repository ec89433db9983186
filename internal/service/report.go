package service

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReportInput 生成报告所需的数据
type ReportInput struct {
	RunID    string
	Request  string
	Device   string
	Address  string
	Commands []string
	Analysis string
	Result   *ExecutionResult
	Time     time.Time
}

// BuildReport 生成 markdown 格式的执行报告
func BuildReport(in ReportInput) string {
	ts := in.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString("# Network Command Report\n\n")
	fmt.Fprintf(&b, "- Time: %s\n", ts.Format("2006-01-02 15:04:05"))
	if in.RunID != "" {
		fmt.Fprintf(&b, "- Run: %s\n", in.RunID)
	}
	fmt.Fprintf(&b, "- Device: %s", in.Device)
	if in.Address != "" {
		fmt.Fprintf(&b, " (%s)", in.Address)
	}
	b.WriteString("\n\n")

	b.WriteString("## Request\n\n")
	b.WriteString(strings.TrimSpace(in.Request))
	b.WriteString("\n\n## Commands\n\n")
	for _, c := range in.Commands {
		fmt.Fprintf(&b, "- `%s`\n", c)
	}

	b.WriteString("\n## Analysis\n\n")
	b.WriteString(strings.TrimSpace(in.Analysis))
	b.WriteString("\n\n## Raw Output\n")
	if in.Result != nil {
		for _, e := range in.Result.Entries {
			status := "ok"
			switch {
			case e.Failed:
				status = "failed"
			case e.Incomplete:
				status = "incomplete"
			}
			fmt.Fprintf(&b, "\n### %s (%s)\n", e.Command, status)
			if e.Retried {
				fmt.Fprintf(&b, "\nCorrected from `%s`.\n", e.Original)
			}
			b.WriteString("\n```\n")
			b.WriteString(strings.Trim(e.Output, "\n"))
			b.WriteString("\n```\n")
		}
	}
	return b.String()
}

// ReportWriter 通过存储写入器保存报告
type ReportWriter struct {
	storage StorageWriter
	backend string
}

// NewReportWriter 创建报告写入器，backend 为 local 或 minio
func NewReportWriter(storage StorageWriter, backend string) *ReportWriter {
	if backend == "" {
		backend = "local"
	}
	return &ReportWriter{storage: storage, backend: backend}
}

// Write 保存一份设备报告；MinIO 回退本地成功时同时返回对象与预警错误
func (w *ReportWriter) Write(ctx context.Context, in ReportInput, content string) (StoredObject, error) {
	ts := in.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	meta := StorageMeta{
		DateYYYYMMDD: ts.Format("20060102"),
		TimeHHMMSS:   ts.Format("150405"),
		RunID:        in.RunID,
		DeviceName:   in.Device,
		DeviceIP:     in.Address,
		Name:         "report.md",
		Backend:      w.backend,
	}
	return w.storage.Write(ctx, meta, content, "text/markdown; charset=utf-8")
}
