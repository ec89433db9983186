package service

import (
	"context"
	"strings"

	"github.com/netshellpro/netshellpro/addone/dialect"
)

// Confirmer 由调用方提供的确认能力（命令行交互、API 策略等）
type Confirmer interface {
	// ConfirmChanges 执行配置变更前确认，返回 false 表示取消
	ConfirmChanges(ctx context.Context, device string, commands []string) (bool, error)
	// ConfirmRetry 交互模式下确认是否执行修正后的命令
	ConfirmRetry(ctx context.Context, failed, suggestion string) (bool, error)
}

// AutoConfirmer 固定策略的确认器
type AutoConfirmer struct {
	ApproveChanges bool
	ApproveRetry   bool
}

func (a AutoConfirmer) ConfirmChanges(context.Context, string, []string) (bool, error) {
	return a.ApproveChanges, nil
}

func (a AutoConfirmer) ConfirmRetry(context.Context, string, string) (bool, error) {
	return a.ApproveRetry, nil
}

// RequiresConfirmation 任一块为接口配置块或包含变更关键字时需要确认
func RequiresConfirmation(blocks []CommandBlock, rules *dialect.Rules) bool {
	for _, b := range blocks {
		if b.Kind == BlockInterface {
			return true
		}
		for _, cmd := range b.UserCommands() {
			if IsChangeCommand(cmd, rules) {
				return true
			}
		}
	}
	return false
}

// IsChangeCommand 非查询类且命中确认关键字
func IsChangeCommand(command string, rules *dialect.Rules) bool {
	lower := strings.ToLower(strings.TrimSpace(command))
	if lower == "" || hasVerbPrefix(lower, rules.QueryPrefixes) {
		return false
	}
	return containsAny(lower, rules.ConfirmKeywords) || containsAny(lower, rules.ConfigKeywords)
}

// highlightKeywords 确认提示中需要突出显示的命令关键字
var highlightKeywords = []string{"configure", "interface", "router", "vlan", "snmp-server"}

// HighlightChanges 返回需要确认的命令，配置类命令标记为 true
func HighlightChanges(blocks []CommandBlock) []ChangeLine {
	var lines []ChangeLine
	for _, cmd := range UserCommands(blocks) {
		lines = append(lines, ChangeLine{Command: cmd, Highlight: containsAny(strings.ToLower(cmd), highlightKeywords)})
	}
	return lines
}

// ChangeLine 确认提示中的一行
type ChangeLine struct {
	Command   string
	Highlight bool
}

type approvalKey struct{}

// WithApproval 在上下文中携带调用方对配置变更的预先确认
func WithApproval(ctx context.Context, approved bool) context.Context {
	return context.WithValue(ctx, approvalKey{}, approved)
}

// ApprovalFromContext 读取预先确认，未设置时为 false
func ApprovalFromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(approvalKey{}).(bool)
	return ok
}

// ContextConfirmer 按请求上下文中的预先确认决定是否执行变更，用于 HTTP 接口
type ContextConfirmer struct {
	ApproveRetry bool
}

func (c ContextConfirmer) ConfirmChanges(ctx context.Context, _ string, _ []string) (bool, error) {
	return ApprovalFromContext(ctx), nil
}

func (c ContextConfirmer) ConfirmRetry(context.Context, string, string) (bool, error) {
	return c.ApproveRetry, nil
}
