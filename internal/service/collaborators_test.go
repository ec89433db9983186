package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandListTranslator(t *testing.T) {
	cmds, err := CommandListTranslator{}.Translate(context.Background(), " show version ;\nshow vlan brief\r\n; ;")
	require.NoError(t, err)
	assert.Equal(t, []string{"show version", "show vlan brief"}, cmds)

	cmds, err = CommandListTranslator{}.Translate(context.Background(), " ; ")
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestBuildAnalysisInputTruncates(t *testing.T) {
	res := &ExecutionResult{Entries: []ResultEntry{
		{Command: "show version", Output: strings.Repeat("a", 50)},
		{Command: "show foo", Output: invalidCommand, Failed: true},
	}}
	in := BuildAnalysisInput("check", "leaf-01", res, 10)
	assert.Equal(t, []string{"show version", "show foo"}, in.Commands)
	assert.Equal(t, "aaaaaaaaaa...", in.Outputs[0].Output)
	assert.True(t, in.Outputs[1].Failed)

	empty := BuildAnalysisInput("check", "leaf-01", nil, 10)
	assert.Empty(t, empty.Outputs)
}

func TestSummaryAnalyzer(t *testing.T) {
	in := AnalysisInput{Device: "leaf-01", Outputs: []AnalysisOutput{
		{Command: "show vlan brief", Output: vlanBrief},
		{Command: "show foo", Output: invalidCommand, Failed: true},
	}}
	text, err := SummaryAnalyzer{}.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Executed 2 command(s) on leaf-01, 1 failed."))
	assert.Contains(t, text, "- Failed: show foo")
	assert.Contains(t, text, "- VLAN 10 SERVERS (active): Eth1/1, Eth1/2, Eth1/6")

	_, err = SummaryAnalyzer{}.Analyze(context.Background(), AnalysisInput{})
	assert.Error(t, err)
}

func TestSummaryAnalyzerAnswersInterfaceVLAN(t *testing.T) {
	outputs := []AnalysisOutput{{Command: "show vlan brief", Output: vlanBrief}}

	text, err := SummaryAnalyzer{}.Analyze(context.Background(), AnalysisInput{
		Request: "which vlan is e1/6 assigned to", Device: "leaf-01", Outputs: outputs,
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Interface e1/6 is assigned to VLAN 10 SERVERS (active).", "e1/6 写法应匹配续行中的 Eth1/6")

	text, err = SummaryAnalyzer{}.Analyze(context.Background(), AnalysisInput{
		Request: "show vlan brief; which VLAN is Ethernet1/5 on", Device: "leaf-01", Outputs: outputs,
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Interface Ethernet1/5 is assigned to VLAN 20 STORAGE (active).")

	text, err = SummaryAnalyzer{}.Analyze(context.Background(), AnalysisInput{
		Request: "what vlan is e1/48 on", Device: "leaf-01", Outputs: outputs,
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Interface e1/48 was not found in any VLAN")

	text, err = SummaryAnalyzer{}.Analyze(context.Background(), AnalysisInput{
		Request: "show vlan brief", Device: "leaf-01", Outputs: outputs,
	})
	require.NoError(t, err)
	assert.NotContains(t, text, "Interface ", "请求未提到接口时不输出接口结论")
}

type brokenAnalyzer struct{}

func (brokenAnalyzer) Analyze(context.Context, AnalysisInput) (string, error) {
	return "", errors.New("service unavailable")
}

func TestAnalyzeWithFallback(t *testing.T) {
	in := AnalysisInput{Outputs: []AnalysisOutput{{Command: "show clock", Output: "12:00:00"}}}
	text := AnalyzeWithFallback(context.Background(), brokenAnalyzer{}, in)
	assert.True(t, strings.HasPrefix(text, "Analysis failed: service unavailable"))
	assert.Contains(t, text, "$ show clock\n12:00:00")
}

type erroringSource struct{}

func (erroringSource) Suggest(context.Context, ContextSnapshot) ([]string, error) {
	return nil, errors.New("timeout")
}

func TestSuggestions(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, DefaultSuggestions, Suggestions(ctx, nil, ContextSnapshot{}))
	assert.Equal(t, DefaultSuggestions, Suggestions(ctx, erroringSource{}, ContextSnapshot{LastCommand: "show bgp summary"}))
	assert.Equal(t, DefaultSuggestions, Suggestions(ctx, ContextSuggestionSource{}, ContextSnapshot{}))

	got := Suggestions(ctx, ContextSuggestionSource{}, ContextSnapshot{LastCommand: "show bgp l2vpn evpn summary"})
	assert.Contains(t, got, "Check EVPN neighbors")
	got = Suggestions(ctx, ContextSuggestionSource{}, ContextSnapshot{LastCommand: "Interface Config: ethernet1/1"})
	assert.Contains(t, got, "Check interface counters")

	out := Suggestions(ctx, nil, ContextSnapshot{})
	out[0] = "changed"
	assert.Equal(t, "Check interface status", DefaultSuggestions[0], "返回副本")
}
