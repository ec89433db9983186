package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// RunStore 执行记录持久化
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// PipelineConfig 流水线依赖；Reports 与 Runs 可为 nil
type PipelineConfig struct {
	Translator    Translator
	Analyzer      Analyzer
	Reports       *ReportWriter
	Runs          RunStore
	AnalysisLimit int
}

// DeviceReport 单台设备的流水线结果
type DeviceReport struct {
	Device    string           `json:"device"`
	Address   string           `json:"address"`
	Status    string           `json:"status"`
	Result    *ExecutionResult `json:"result,omitempty"`
	Analysis  string           `json:"analysis"`
	ReportURI string           `json:"report_uri,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// PipelineResult 一次请求的完整结果
type PipelineResult struct {
	RunID    string         `json:"run_id"`
	Request  string         `json:"request"`
	Commands []string       `json:"commands"`
	Devices  []DeviceReport `json:"devices"`
}

// Pipeline 翻译、执行、分析、生成报告并记录笔记
type Pipeline struct {
	runner *Runner
	orch   *Orchestrator
	cfg    PipelineConfig
}

// NewPipeline 创建请求流水线
func NewPipeline(runner *Runner, orch *Orchestrator, cfg PipelineConfig) *Pipeline {
	if cfg.Translator == nil {
		cfg.Translator = CommandListTranslator{}
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = SummaryAnalyzer{}
	}
	if cfg.AnalysisLimit <= 0 {
		cfg.AnalysisLimit = 2000
	}
	return &Pipeline{runner: runner, orch: orch, cfg: cfg}
}

// Run 处理一次请求；请求无法翻译时返回 ErrClarificationNeeded
func (p *Pipeline) Run(ctx context.Context, request string, devices []model.Device) (*PipelineResult, error) {
	commands, err := p.cfg.Translator.Translate(ctx, request)
	if err != nil {
		return nil, err
	}
	if len(commands) == 0 {
		return nil, ErrClarificationNeeded
	}
	return p.RunCommands(ctx, request, commands, devices)
}

// RunCommands 跳过翻译直接执行已知命令
func (p *Pipeline) RunCommands(ctx context.Context, request string, commands []string, devices []model.Device) (*PipelineResult, error) {
	if len(devices) == 0 {
		return nil, errors.New("no target devices")
	}
	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)
	res := &PipelineResult{RunID: runID, Request: request, Commands: commands}
	started := time.Now()

	logger.Info("Pipeline started", "run_id", runID, "devices", len(devices), "commands", len(commands))
	outcomes := p.runner.ExecuteAll(ctx, devices, commands)

	var findings []string
	for _, oc := range outcomes {
		dr := p.finish(ctx, runID, request, commands, oc, started)
		res.Devices = append(res.Devices, dr)
		if dr.Analysis != "" {
			findings = append(findings, firstLine(dr.Analysis))
		}
	}

	p.orch.Context().AddNote(request, commands, strings.Join(findings, "; "))
	logger.Info("Pipeline finished", "run_id", runID, "elapsed", time.Since(started).String())
	return res, nil
}

func (p *Pipeline) finish(ctx context.Context, runID, request string, commands []string, oc DeviceOutcome, started time.Time) DeviceReport {
	dr := DeviceReport{Device: oc.Device.Label(), Address: oc.Device.Address, Result: oc.Result}
	dr.Status = statusOf(oc)
	if oc.Err != nil {
		dr.Error = oc.Err.Error()
	}

	if oc.Result != nil && len(oc.Result.Entries) > 0 {
		in := BuildAnalysisInput(request, dr.Device, oc.Result, p.cfg.AnalysisLimit)
		dr.Analysis = AnalyzeWithFallback(ctx, p.cfg.Analyzer, in)
	}

	if p.cfg.Reports != nil && oc.Result != nil {
		rin := ReportInput{
			RunID:    runID,
			Request:  request,
			Device:   dr.Device,
			Address:  dr.Address,
			Commands: commands,
			Analysis: dr.Analysis,
			Result:   oc.Result,
			Time:     started,
		}
		obj, err := p.cfg.Reports.Write(ctx, rin, BuildReport(rin))
		if err != nil {
			logger.Warn("Report write reported a problem", "device", dr.Device, "error", err)
		}
		dr.ReportURI = obj.URI
	}

	if p.cfg.Runs != nil {
		run := &model.Run{
			ID:        runID + "-" + slug(dr.Device),
			Request:   request,
			Hostname:  dr.Device,
			Address:   dr.Address,
			Commands:  strings.Join(commands, "\n"),
			Status:    dr.Status,
			ReportURI: dr.ReportURI,
			ErrorMsg:  dr.Error,
			StartTime: started,
			EndTime:   time.Now(),
		}
		run.Duration = run.EndTime.Sub(started).Milliseconds()
		if err := p.cfg.Runs.SaveRun(ctx, run); err != nil {
			logger.Warn("Failed to persist run", "run_id", runID, "error", err)
		}
	}
	return dr
}

func statusOf(oc DeviceOutcome) string {
	switch {
	case errors.Is(oc.Err, ErrCancelled):
		return model.RunStatusCancelled
	case oc.Err != nil && oc.Result != nil && len(oc.Result.Entries) > 0:
		return model.RunStatusPartial
	case oc.Err != nil:
		return model.RunStatusFailed
	case oc.Result != nil && oc.Result.FailedCount() > 0:
		return model.RunStatusPartial
	default:
		return model.RunStatusSuccess
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
