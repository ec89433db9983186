package service

import (
	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/internal/database"
	"github.com/netshellpro/netshellpro/internal/metrics"
	"github.com/netshellpro/netshellpro/pkg/logger"
	"github.com/netshellpro/netshellpro/pkg/ssh"
)

// EngineOptions 装配时可替换的依赖
type EngineOptions struct {
	// Dialer 为空时使用按 SSH 配置创建的客户端
	Dialer    ssh.Dialer
	Confirmer Confirmer
	// Interactive 覆盖配置中的交互模式
	Interactive *bool
	Translator  Translator
	Analyzer    Analyzer
}

// Engine 按配置装配好的执行引擎
type Engine struct {
	Pool         *ssh.Pool
	Orchestrator *Orchestrator
	Runner       *Runner
	Pipeline     *Pipeline
	Metrics      *metrics.Metrics
	// HistoryStore 未启用数据库时为 nil
	HistoryStore *GormHistoryStore
}

// NewEngine 根据配置创建连接池、执行器与流水线；数据库需由调用方提前初始化
func NewEngine(cfg *config.Config, opts EngineOptions) *Engine {
	e := &Engine{}
	if cfg.Metrics.Enabled {
		e.Metrics = metrics.New()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = ssh.NewClient(&ssh.Config{
			ConnectTimeout: cfg.SSH.ConnectTimeout,
			KeepAlive:      cfg.SSH.KeepAliveInterval,
			TermTypes:      cfg.SSH.TermTypes,
		})
	}
	e.Pool = ssh.NewPool(&ssh.PoolConfig{MaxSessions: cfg.SSH.MaxSessions}, dialer)
	e.Metrics.RegisterActiveSessions(e.Pool.ActiveCount)

	var historyStore HistoryStore
	var runStore RunStore
	if cfg.Database.SQLite.Enabled {
		if db := database.GetDB(); db != nil {
			e.HistoryStore = NewGormHistoryStore(db)
			historyStore = e.HistoryStore
			runStore = NewGormRunStore(db)
		} else {
			logger.Warn("SQLite enabled but not initialized; history kept in memory only")
		}
	}

	interactive := cfg.Executor.Interactive
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	}
	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = ContextConfirmer{ApproveRetry: cfg.Executor.AutoRetry}
	}

	rules := LoadRules(cfg.Executor.Platform, cfg.Executor.DeviceDefaults)
	e.Orchestrator = NewOrchestrator(e.Pool, OrchestratorConfig{
		Rules: rules,
		Framer: ssh.FramerOptions{
			PollTimeout:  cfg.SSH.PollTimeout,
			MaxIdlePolls: cfg.SSH.MaxIdlePolls,
			SendDelay:    cfg.SSH.SendDelay,
		},
		Confirmer:   confirmer,
		History:     NewHistory(cfg.Executor.HistorySize, cfg.Executor.HistoryRecent, cfg.Executor.OutputPreview, historyStore),
		Context:     NewSessionContext(cfg.Executor.NoteLimit),
		Metrics:     e.Metrics,
		Interactive: interactive,
		AutoRetry:   cfg.Executor.AutoRetry,
	})
	e.Runner = NewRunner(e.Orchestrator, cfg.Executor.Concurrent)

	e.Pipeline = NewPipeline(e.Runner, e.Orchestrator, PipelineConfig{
		Translator:    opts.Translator,
		Analyzer:      opts.Analyzer,
		Reports:       NewReportWriter(NewStorageWriter(cfg), cfg.Report.Backend),
		Runs:          runStore,
		AnalysisLimit: cfg.Executor.AnalysisLimit,
	})

	logger.Info("Execution engine ready",
		"platform", rules.Name,
		"max_sessions", cfg.SSH.MaxSessions,
		"concurrent", cfg.Executor.Concurrent,
		"interactive", interactive,
		"report_backend", cfg.Report.Backend)
	return e
}

// Close 关闭所有会话
func (e *Engine) Close() error {
	return e.Pool.Close()
}
