package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netshellpro/netshellpro/internal/metrics"
	"github.com/netshellpro/netshellpro/pkg/ssh"
)

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func singleDevice(dev *fakeDevice) *fakeDialer {
	return &fakeDialer{devices: map[string]*fakeDevice{"10.0.0.1": dev}}
}

func TestExecuteImmediatePrompt(t *testing.T) {
	dev := newFakeDevice(map[string]string{"show version": "NXOS: version 10.2(3)"})
	cls := &countingClassifier{inner: NewRuleClassifier(nxosRules())}
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{Classifier: cls, AutoRetry: true})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"show version"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	assert.Equal(t, "show version", e.Command)
	assert.Contains(t, e.Output, "version 10.2(3)")
	assert.False(t, e.Failed)
	assert.False(t, e.Incomplete)
	assert.False(t, e.Retried)
	assert.Equal(t, 1, cls.failureCalls, "成功输出只分类一次")
	assert.Equal(t, 0, cls.suggestCalls)
	assert.Equal(t, []string{"terminal length 0", "show version"}, dev.sentCommands())
	assert.Equal(t, 1, dev.closed, "执行结束释放会话")
	assert.Equal(t, 0, o.Pool().ActiveCount())
}

func TestExecuteAutoRetryWithSuggestion(t *testing.T) {
	dev := newFakeDevice(map[string]string{
		"show bgp l2vpn evpn summary": "BGP summary information for VRF default, address family L2VPN EVPN",
	})
	m := metrics.New()
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{AutoRetry: true, Metrics: m})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"show ip bgp summary"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	assert.Equal(t, "show bgp l2vpn evpn summary", e.Command, "结果键为修正后的命令")
	assert.Equal(t, "show ip bgp summary", e.Original)
	assert.True(t, e.Retried)
	assert.False(t, e.Failed)
	assert.Contains(t, e.Output, "L2VPN EVPN")
	assert.Equal(t, []string{
		"terminal length 0",
		"show bgp ipv4 unicast summary",
		"show bgp l2vpn evpn summary",
	}, dev.sentCommands(), "先发送规范化命令，失败后发送建议命令")
	assert.Equal(t, 1.0, counterValue(t, m, "netshell_retries_total"))
}

func TestExecuteRetriesAtMostOnce(t *testing.T) {
	dev := newFakeDevice(nil)
	cls := &countingClassifier{inner: NewRuleClassifier(nxosRules())}
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{AutoRetry: true, Classifier: cls})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"show ip bgp summary"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.True(t, res.Entries[0].Failed, "修正命令同样失败")
	assert.True(t, res.Entries[0].Retried)
	assert.Len(t, dev.sentCommands(), 3)
	assert.Equal(t, 1, cls.suggestCalls, "修正命令失败后不再请求建议")
	assert.Equal(t, 1, res.FailedCount())
}

func TestExecuteInteractiveRetryDeclined(t *testing.T) {
	dev := newFakeDevice(nil)
	conf := &recordingConfirmer{approveChanges: true}
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{Interactive: true, Confirmer: conf})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"show ip bgp summary"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	assert.Equal(t, 1, conf.retryCalls)
	assert.Equal(t, 0, conf.changeCalls, "查询命令无需确认")
	assert.True(t, e.Failed)
	assert.False(t, e.Retried)
	assert.Equal(t, "show bgp ipv4 unicast summary", e.Command)
	assert.Equal(t, "show ip bgp summary", e.Original)
	assert.Contains(t, e.Output, "Invalid command")
	assert.Equal(t, 0, dev.count("show bgp l2vpn evpn summary"))
}

func TestExecuteNoRetryWhenAutoRetryDisabled(t *testing.T) {
	dev := newFakeDevice(nil)
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{AutoRetry: false})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"show processes cpu"})
	require.NoError(t, err)
	assert.True(t, res.Entries[0].Failed)
	assert.False(t, res.Entries[0].Retried)
	assert.Equal(t, []string{"terminal length 0", "show system resources"}, dev.sentCommands())
}

func TestExecuteInterfaceBlock(t *testing.T) {
	dev := newFakeDevice(map[string]string{"show vlan brief": "10   SERVERS   active   Eth1/1"})
	conf := &recordingConfirmer{approveChanges: true}
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{Confirmer: conf})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{
		"show vlan brief",
		"interface ethernet1/1",
		"description uplink",
		"no shutdown",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, conf.changeCalls)
	require.Len(t, res.Entries, 2)

	named := res.Entries[1]
	assert.Equal(t, "Interface Config: ethernet1/1", named.Command)
	assert.Equal(t, "ethernet1/1", named.BlockID)
	assert.False(t, named.Failed)
	assert.False(t, named.Incomplete)
	for _, marker := range []string{
		"--- Command: configure terminal ---",
		"--- Command: interface ethernet1/1 ---",
		"--- Command: description uplink ---",
		"--- Command: no shutdown ---",
		"--- Command: end ---",
	} {
		assert.Contains(t, named.Output, marker)
	}
	assert.Equal(t, []string{
		"terminal length 0",
		"show vlan brief",
		"configure terminal",
		"interface ethernet1/1",
		"description uplink",
		"no shutdown",
		"end",
	}, dev.sentCommands())
	assert.Contains(t, res.Map(), "Interface Config: ethernet1/1")
}

func TestExecuteConfigCommandWrappedInConfigMode(t *testing.T) {
	dev := newFakeDevice(nil)
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"hostname leaf-99"})
	require.NoError(t, err)
	assert.False(t, res.Entries[0].Failed)
	assert.Equal(t, []string{"terminal length 0", "configure terminal", "hostname leaf-99", "end"}, dev.sentCommands())
}

func TestExecuteDeclinedChangesSendNothing(t *testing.T) {
	dev := newFakeDevice(nil)
	dialer := singleDevice(dev)
	conf := &recordingConfirmer{approveChanges: false}
	o := newTestOrchestrator(dialer, OrchestratorConfig{Confirmer: conf})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"interface ethernet1/1", "shutdown"})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, 0, dialer.dials, "拒绝确认时不建立连接")
	assert.Empty(t, dev.sentCommands())
}

func TestExecuteSilentDeviceIsIncomplete(t *testing.T) {
	dev := newFakeDevice(nil)
	dev.silent = true
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{})

	ctx := WithRunID(context.Background(), "run-42")
	res, err := o.Execute(ctx, testDevice("10.0.0.1"), []string{"show version"})
	require.NoError(t, err, "无提示符不是传输故障")
	require.Len(t, res.Entries, 1)
	assert.True(t, res.Entries[0].Incomplete)
	assert.False(t, res.Entries[0].Failed)

	recent := o.History().Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "show version", recent[0].Command)
	assert.Equal(t, "run-42", recent[0].RunID)
	assert.True(t, recent[0].Incomplete)
	assert.Equal(t, "show version", o.Context().Snapshot().LastCommand)
}

func TestExecuteTransportFaultReturnsPartial(t *testing.T) {
	dev := newFakeDevice(map[string]string{"show version": "NXOS", "show clock": "12:00:00"})
	dev.failAfter = 3
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"show version", "show clock", "show vlan brief"})
	require.Error(t, err)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "individual_1", execErr.Block)
	assert.True(t, errors.Is(err, ssh.ErrSessionClosed))
	require.NotNil(t, res)
	assert.Same(t, res, execErr.Partial)
	require.Len(t, res.Entries, 2, "故障后不再执行剩余命令块")
	assert.False(t, res.Entries[0].Failed)
	assert.True(t, res.Entries[1].Failed)
	assert.True(t, res.Entries[1].Incomplete)
	assert.Equal(t, 2, o.History().Len())
	assert.Equal(t, 1, dev.closed)
}

func TestExecuteConnectFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	m := metrics.New()
	o := newTestOrchestrator(dialer, OrchestratorConfig{Metrics: m})

	res, err := o.Execute(context.Background(), testDevice("10.0.0.9"), []string{"show version"})
	assert.Nil(t, res)
	var ce *ssh.ConnectError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "10.0.0.9", ce.Host)
	assert.Equal(t, 1.0, counterValue(t, m, "netshell_connect_failures_total"))
	assert.Equal(t, 0, o.History().Len())
}

// cancellingClassifier 首次分类后取消上下文
type cancellingClassifier struct {
	Classifier
	cancel context.CancelFunc
}

func (c *cancellingClassifier) IsFailure(text string) bool {
	c.cancel()
	return c.Classifier.IsFailure(text)
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	dev := newFakeDevice(map[string]string{"show version": "NXOS", "show clock": "12:00:00"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cls := &cancellingClassifier{Classifier: NewRuleClassifier(nxosRules()), cancel: cancel}
	o := newTestOrchestrator(singleDevice(dev), OrchestratorConfig{Classifier: cls})

	res, err := o.Execute(ctx, testDevice("10.0.0.1"), []string{"show version", "show clock"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, res.Entries, 1)
	assert.Equal(t, 0, dev.count("show clock"))
}

func TestExecuteEmptyCommands(t *testing.T) {
	dialer := &fakeDialer{}
	o := newTestOrchestrator(dialer, OrchestratorConfig{})
	res, err := o.Execute(context.Background(), testDevice("10.0.0.1"), []string{"", "configure terminal"})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 0, dialer.dials)
}
