package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/netshellpro/netshellpro/internal/util"
)

// ErrClarificationNeeded 请求无法解析为任何命令
var ErrClarificationNeeded = errors.New("request could not be resolved to commands, clarification needed")

// Translator 将自然语言请求翻译为有序命令列表；空列表表示需要澄清
type Translator interface {
	Translate(ctx context.Context, text string) ([]string, error)
}

// CommandListTranslator 离线实现：按分号与换行拆分，去掉空项并保持顺序
type CommandListTranslator struct{}

func (CommandListTranslator) Translate(_ context.Context, text string) ([]string, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == '\n' || r == '\r' })
	cmds := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			cmds = append(cmds, f)
		}
	}
	return cmds, nil
}

// AnalysisOutput 单条命令及其截断后的输出
type AnalysisOutput struct {
	Command string `json:"command"`
	Output  string `json:"output"`
	Failed  bool   `json:"failed"`
}

// AnalysisInput 输出分析的输入
type AnalysisInput struct {
	Request  string           `json:"request"`
	Device   string           `json:"device"`
	Commands []string         `json:"commands"`
	Outputs  []AnalysisOutput `json:"outputs"`
}

// BuildAnalysisInput 组装分析输入，每条输出超过 limit 时截断
func BuildAnalysisInput(request, device string, result *ExecutionResult, limit int) AnalysisInput {
	in := AnalysisInput{Request: request, Device: device}
	if result == nil {
		return in
	}
	for _, e := range result.Entries {
		in.Commands = append(in.Commands, e.Command)
		in.Outputs = append(in.Outputs, AnalysisOutput{
			Command: e.Command,
			Output:  util.Truncate(e.Output, limit),
			Failed:  e.Failed,
		})
	}
	return in
}

// Analyzer 对命令输出进行分析
type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (string, error)
}

// SummaryAnalyzer 离线实现：统计失败命令并提取 VLAN 信息；
// 请求中提到接口时回答该接口所属的 VLAN
type SummaryAnalyzer struct{}

func (SummaryAnalyzer) Analyze(_ context.Context, in AnalysisInput) (string, error) {
	if len(in.Outputs) == 0 {
		return "", errors.New("no command output to analyze")
	}
	var b strings.Builder
	failed := 0
	for _, o := range in.Outputs {
		if o.Failed {
			failed++
		}
	}
	fmt.Fprintf(&b, "Executed %d command(s) on %s, %d failed.\n", len(in.Outputs), in.Device, failed)
	for _, o := range in.Outputs {
		if o.Failed {
			fmt.Fprintf(&b, "- Failed: %s\n", o.Command)
		}
	}
	iface, asked := InterfaceInRequest(in.Request)
	for _, o := range in.Outputs {
		vlans := ParseVLANBrief(o.Output)
		if len(vlans) == 0 {
			continue
		}
		b.WriteString("\nVLANs:\n")
		for _, v := range SortedVLANs(vlans) {
			fmt.Fprintf(&b, "- VLAN %d %s (%s): %s\n", v.ID, v.Name, v.Status, strings.Join(v.Ports, ", "))
		}
		if !asked {
			continue
		}
		if v, ok := FindInterfaceVLAN(o.Output, iface); ok {
			fmt.Fprintf(&b, "Interface %s is assigned to VLAN %d %s (%s).\n", iface, v.ID, v.Name, v.Status)
		} else {
			fmt.Fprintf(&b, "Interface %s was not found in any VLAN; it may be a trunk or routed port.\n", iface)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// AnalyzeWithFallback 分析失败时返回带原始输出的兜底文本
func AnalyzeWithFallback(ctx context.Context, a Analyzer, in AnalysisInput) string {
	text, err := a.Analyze(ctx, in)
	if err == nil {
		return text
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis failed: %v\n\nRaw command outputs:\n", err)
	for _, o := range in.Outputs {
		fmt.Fprintf(&b, "\n$ %s\n%s\n", o.Command, o.Output)
	}
	return b.String()
}

// DefaultSuggestions 无上下文或建议服务不可用时的默认建议
var DefaultSuggestions = []string{
	"Check interface status",
	"Show system health",
	"Get BGP status",
	"Look for recent errors",
	"Check EVPN neighbors",
}

// SuggestionSource 根据会话上下文给出后续操作建议
type SuggestionSource interface {
	Suggest(ctx context.Context, snap ContextSnapshot) ([]string, error)
}

// ContextSuggestionSource 离线实现：按最近一条命令的主题给出建议
type ContextSuggestionSource struct{}

func (ContextSuggestionSource) Suggest(_ context.Context, snap ContextSnapshot) ([]string, error) {
	last := strings.ToLower(snap.LastCommand)
	switch {
	case last == "":
		return nil, nil
	case strings.Contains(last, "bgp"):
		return []string{"Check EVPN neighbors", "Show BGP routes", "Look for recent errors"}, nil
	case strings.Contains(last, "interface"):
		return []string{"Check interface counters", "Show VLAN membership", "Check interface status"}, nil
	case strings.Contains(last, "vlan"):
		return []string{"Show VLAN membership", "Check interface status"}, nil
	}
	return nil, nil
}

// Suggestions 获取建议，失败或为空时返回默认列表
func Suggestions(ctx context.Context, src SuggestionSource, snap ContextSnapshot) []string {
	if src != nil {
		out, err := src.Suggest(ctx, snap)
		if err == nil && len(out) > 0 {
			return out
		}
	}
	return append([]string(nil), DefaultSuggestions...)
}
