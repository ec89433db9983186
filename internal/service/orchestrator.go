package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/internal/metrics"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/pkg/logger"
	"github.com/netshellpro/netshellpro/pkg/ssh"
)

// ErrCancelled 配置变更确认被拒绝，未向设备发送任何命令
var ErrCancelled = errors.New("execution cancelled: configuration change not confirmed")

// ExecError 批次执行中途发生传输故障，Partial 为已完成块的结果
type ExecError struct {
	Device  string
	Block   string
	Err     error
	Partial *ExecutionResult
}

func (e *ExecError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("device %s: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("device %s: block %s: %v", e.Device, e.Block, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ResultEntry 一个块的执行结果
type ResultEntry struct {
	// Command 实际执行的命令键；修正重试后为修正命令
	Command    string        `json:"command"`
	BlockID    string        `json:"block_id"`
	Output     string        `json:"output"`
	Failed     bool          `json:"failed"`
	Incomplete bool          `json:"incomplete"`
	Retried    bool          `json:"retried"`
	Original   string        `json:"original,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ExecutionResult 按块顺序排列的执行结果
type ExecutionResult struct {
	Device     string        `json:"device"`
	Entries    []ResultEntry `json:"entries"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Map 命令键到输出的映射
func (r *ExecutionResult) Map() map[string]string {
	m := make(map[string]string, len(r.Entries))
	for _, e := range r.Entries {
		m[e.Command] = e.Output
	}
	return m
}

// Outputs 按执行顺序的输出
func (r *ExecutionResult) Outputs() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Output)
	}
	return out
}

// Commands 按执行顺序的命令键
func (r *ExecutionResult) Commands() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Command)
	}
	return out
}

// FailedCount 失败块数量
func (r *ExecutionResult) FailedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Failed {
			n++
		}
	}
	return n
}

// OrchestratorConfig 执行器依赖与策略；未设置的依赖使用默认实现
type OrchestratorConfig struct {
	Rules      *dialect.Rules
	Framer     ssh.FramerOptions
	Classifier Classifier
	Confirmer  Confirmer
	History    *History
	Context    *SessionContext
	Metrics    *metrics.Metrics
	// Interactive 为 true 时修正重试需经 Confirmer 确认
	Interactive bool
	// AutoRetry 非交互模式下是否自动执行修正命令
	AutoRetry bool
}

// Orchestrator 在单个设备会话上按块顺序执行命令
type Orchestrator struct {
	pool       *ssh.Pool
	rules      *dialect.Rules
	normalizer *Normalizer
	classifier Classifier
	confirmer  Confirmer
	history    *History
	context    *SessionContext
	metrics    *metrics.Metrics
	framerOpts ssh.FramerOptions
	cfg        OrchestratorConfig
}

// NewOrchestrator 创建执行器
func NewOrchestrator(pool *ssh.Pool, cfg OrchestratorConfig) *Orchestrator {
	rules := cfg.Rules
	if rules == nil {
		rules = dialect.Get("default").Rules()
	}
	o := &Orchestrator{
		pool:       pool,
		rules:      rules,
		normalizer: NewNormalizer(rules),
		classifier: cfg.Classifier,
		confirmer:  cfg.Confirmer,
		history:    cfg.History,
		context:    cfg.Context,
		metrics:    cfg.Metrics,
		framerOpts: cfg.Framer,
		cfg:        cfg,
	}
	if o.classifier == nil {
		o.classifier = NewRuleClassifier(rules)
	}
	if o.confirmer == nil {
		o.confirmer = AutoConfirmer{ApproveChanges: true, ApproveRetry: true}
	}
	if o.history == nil {
		o.history = NewHistory(0, 0, 0, nil)
	}
	if o.context == nil {
		o.context = NewSessionContext(0)
	}
	if o.framerOpts.PromptPattern == nil {
		o.framerOpts.PromptPattern = rules.PromptPattern
	}
	if o.framerOpts.PagingMarker == "" {
		o.framerOpts.PagingMarker = rules.PagingMarker
	}
	return o
}

func (o *Orchestrator) Rules() *dialect.Rules { return o.rules }

func (o *Orchestrator) History() *History { return o.history }

func (o *Orchestrator) Context() *SessionContext { return o.context }

func (o *Orchestrator) Pool() *ssh.Pool { return o.pool }

func (o *Orchestrator) Metrics() *metrics.Metrics { return o.metrics }

// Execute 分组、确认、获取会话并逐块执行
//
// 连接失败返回 *ssh.ConnectError 且结果为 nil；执行中途的传输故障返回 *ExecError，
// 同时返回已完成部分的结果。
func (o *Orchestrator) Execute(ctx context.Context, device model.Device, commands []string) (*ExecutionResult, error) {
	blocks := GroupCommands(commands, o.rules)
	result := &ExecutionResult{Device: device.Label(), StartedAt: time.Now()}
	if len(blocks) == 0 {
		result.FinishedAt = time.Now()
		return result, nil
	}

	if RequiresConfirmation(blocks, o.rules) {
		ok, err := o.confirmer.ConfirmChanges(ctx, device.Label(), UserCommands(blocks))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		if !ok {
			logger.Info("Configuration change declined", "device", device.Label())
			return nil, ErrCancelled
		}
	}

	info := &ssh.ConnectionInfo{
		Host:     device.Address,
		Port:     device.Port,
		Username: device.Username,
		Password: device.Password,
	}
	lease, err := o.pool.Acquire(ctx, info)
	if err != nil {
		var ce *ssh.ConnectError
		if errors.As(err, &ce) {
			o.metrics.IncConnectFailure()
		}
		logger.Error("Failed to acquire device session", "device", device.Label(), "error", err)
		return nil, err
	}
	defer func() {
		if rerr := lease.Release(); rerr != nil {
			logger.Debug("Session release error", "device", device.Label(), "error", rerr)
		}
	}()

	framer := ssh.NewFramer(lease.Shell(), o.framerOpts)
	mode := NewModeController(framer, o.rules)
	bs := &blockSession{o: o, framer: framer, mode: mode, host: device.Label()}

	// 读取登录 banner 至首个提示符
	if banner, err := framer.ReadFrame(); err != nil {
		result.FinishedAt = time.Now()
		return result, &ExecError{Device: device.Label(), Err: err, Partial: result}
	} else if !banner.Complete {
		logger.Warn("Login prompt not detected, continuing", "device", device.Label())
	}
	if err := mode.EnsurePagingDisabled(); err != nil {
		result.FinishedAt = time.Now()
		return result, &ExecError{Device: device.Label(), Err: err, Partial: result}
	}

	logger.Info("Executing command blocks", "device", device.Label(), "blocks", len(blocks))
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			result.FinishedAt = time.Now()
			return result, &ExecError{Device: device.Label(), Block: block.ID, Err: err, Partial: result}
		}

		start := time.Now()
		var entry ResultEntry
		var execErr error
		if block.Kind == BlockInterface {
			entry, execErr = bs.runNamed(block)
		} else {
			entry, execErr = bs.runIndividual(ctx, block)
		}
		entry.BlockID = block.ID
		entry.Duration = time.Since(start)
		if execErr != nil {
			entry.Failed = true
			entry.Incomplete = true
		}

		result.Entries = append(result.Entries, entry)
		o.record(ctx, device, entry)
		o.metrics.ObserveBlock(string(block.Kind), outcome(entry, execErr), entry.Duration)

		if execErr != nil {
			logger.Error("Transport fault during block", "device", device.Label(), "block", block.ID, "error", execErr)
			result.FinishedAt = time.Now()
			return result, &ExecError{Device: device.Label(), Block: block.ID, Err: execErr, Partial: result}
		}
	}

	if mode.Mode() == ModeConfiguring {
		if _, err := mode.Exit(); err != nil {
			logger.Warn("Failed to leave configuration mode", "device", device.Label(), "error", err)
		}
	}
	result.FinishedAt = time.Now()
	logger.Info("Command blocks finished", "device", device.Label(), "blocks", len(result.Entries), "failed", result.FailedCount())
	return result, nil
}

// blockSession 单次 Execute 内的会话状态
type blockSession struct {
	o      *Orchestrator
	framer *ssh.Framer
	mode   *ModeController
	host   string
}

// runIndividual 单条命令：按需进入配置模式，失败时最多重试一次修正命令
func (b *blockSession) runIndividual(ctx context.Context, block CommandBlock) (ResultEntry, error) {
	o := b.o
	original := block.Commands[0]
	cmd := o.normalizer.Normalize(original)
	entry := ResultEntry{Command: cmd}
	if cmd != original {
		entry.Original = original
	}

	frame, err := b.exchange(cmd)
	entry.Output = frame.Text
	entry.Incomplete = !frame.Complete
	if err != nil {
		return entry, err
	}

	entry.Failed = o.classifier.IsFailure(frame.Text)
	if !entry.Failed {
		return entry, nil
	}

	suggestion, ok := o.classifier.Suggest(cmd)
	if !ok {
		return entry, nil
	}
	if !o.retryAllowed(ctx, cmd, suggestion) {
		logger.Info("Suggested correction not applied", "device", b.host, "command", cmd, "suggestion", suggestion)
		return entry, nil
	}

	logger.Info("Retrying with corrected command", "device", b.host, "command", cmd, "suggestion", suggestion)
	o.metrics.IncRetry()
	retry, err := b.exchange(suggestion)
	entry = ResultEntry{
		Command:    suggestion,
		Original:   original,
		Output:     retry.Text,
		Incomplete: !retry.Complete,
		Retried:    true,
	}
	if err != nil {
		return entry, err
	}
	entry.Failed = o.classifier.IsFailure(retry.Text)
	return entry, nil
}

func (o *Orchestrator) retryAllowed(ctx context.Context, failed, suggestion string) bool {
	if !o.cfg.Interactive {
		return o.cfg.AutoRetry
	}
	ok, err := o.confirmer.ConfirmRetry(ctx, failed, suggestion)
	if err != nil {
		logger.Warn("Retry confirmation failed", "command", failed, "error", err)
		return false
	}
	return ok
}

// exchange 执行单条命令；配置类命令包裹在进入/退出配置模式之间
func (b *blockSession) exchange(cmd string) (ssh.Frame, error) {
	if !b.mode.IsConfigClass(cmd) {
		return b.send(cmd)
	}
	if _, err := b.mode.Enter(); err != nil {
		return ssh.Frame{}, err
	}
	frame, err := b.send(cmd)
	if err != nil {
		return frame, err
	}
	if _, err := b.mode.Exit(); err != nil {
		return frame, err
	}
	return frame, nil
}

func (b *blockSession) send(cmd string) (ssh.Frame, error) {
	frame, err := b.framer.Exchange(cmd)
	logger.DebugTranscript(b.host, cmd, frame.Text, 0)
	return frame, err
}

// runNamed 接口块：一次连续会话内执行，每条命令前输出标记行，不做修正重试
func (b *blockSession) runNamed(block CommandBlock) (ResultEntry, error) {
	o := b.o
	entry := ResultEntry{Command: "Interface Config: " + block.Interface}
	var out strings.Builder
	complete := true

	enterFrame, err := b.mode.Enter()
	out.WriteString(commandMarker(o.rules.ConfigEnter))
	out.WriteString(enterFrame.Text)
	if err != nil {
		entry.Output = out.String()
		return entry, err
	}
	complete = complete && enterFrame.Complete

	for _, raw := range block.UserCommands() {
		cmd := o.normalizer.Normalize(raw)
		frame, err := b.send(cmd)
		out.WriteString(commandMarker(cmd))
		out.WriteString(frame.Text)
		complete = complete && frame.Complete
		if err != nil {
			entry.Output = out.String()
			return entry, err
		}
	}

	exitFrame, err := b.mode.Exit()
	out.WriteString(commandMarker(o.rules.ConfigExit))
	out.WriteString(exitFrame.Text)
	entry.Output = out.String()
	if err != nil {
		return entry, err
	}
	complete = complete && exitFrame.Complete

	entry.Incomplete = !complete
	entry.Failed = o.classifier.IsFailure(entry.Output)
	return entry, nil
}

func commandMarker(cmd string) string {
	return "\n--- Command: " + cmd + " ---\n"
}

func (o *Orchestrator) record(ctx context.Context, device model.Device, entry ResultEntry) {
	o.history.Append(ctx, HistoryEntry{
		RunID:      RunIDFromContext(ctx),
		Hostname:   device.Label(),
		Command:    entry.Command,
		Output:     entry.Output,
		Success:    !entry.Failed,
		Incomplete: entry.Incomplete,
	})
	o.context.Update(entry.Command, entry.Output)
}

func outcome(e ResultEntry, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeFault
	case e.Failed:
		return metrics.OutcomeFailed
	case e.Incomplete:
		return metrics.OutcomeIncomplete
	default:
		return metrics.OutcomeSuccess
	}
}

type runIDKey struct{}

// WithRunID 在上下文中携带执行批次 ID，写入历史记录
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext 读取执行批次 ID
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
