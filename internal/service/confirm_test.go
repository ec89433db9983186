package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresConfirmation(t *testing.T) {
	rules := nxosRules()
	assert.False(t, RequiresConfirmation(GroupCommands([]string{"show version", "show vlan brief", "ping 10.0.0.1"}, rules), rules))
	assert.True(t, RequiresConfirmation(GroupCommands([]string{"show version", "interface ethernet1/1"}, rules), rules))
	assert.True(t, RequiresConfirmation(GroupCommands([]string{"copy running-config startup-config"}, rules), rules))
	assert.True(t, RequiresConfirmation(GroupCommands([]string{"no feature telnet"}, rules), rules))
	assert.False(t, RequiresConfirmation(nil, rules))
}

func TestIsChangeCommand(t *testing.T) {
	rules := nxosRules()
	assert.True(t, IsChangeCommand("vlan 30", rules))
	assert.True(t, IsChangeCommand("write memory", rules))
	assert.False(t, IsChangeCommand("show running-config | include hostname", rules), "查询命令即使包含关键字也不需要确认")
	assert.False(t, IsChangeCommand("   ", rules))
}

func TestHighlightChanges(t *testing.T) {
	rules := nxosRules()
	lines := HighlightChanges(GroupCommands([]string{"show version", "interface ethernet1/2", "description db", "vlan 40"}, rules))
	assert.Equal(t, []ChangeLine{
		{Command: "show version", Highlight: false},
		{Command: "interface ethernet1/2", Highlight: true},
		{Command: "description db", Highlight: false},
		{Command: "vlan 40", Highlight: true},
	}, lines)
}

func TestContextConfirmer(t *testing.T) {
	c := ContextConfirmer{ApproveRetry: true}
	ok, err := c.ConfirmChanges(context.Background(), "leaf-01", []string{"vlan 10"})
	assert.NoError(t, err)
	assert.False(t, ok, "未预先确认时拒绝变更")

	ok, _ = c.ConfirmChanges(WithApproval(context.Background(), true), "leaf-01", []string{"vlan 10"})
	assert.True(t, ok)

	ok, _ = c.ConfirmRetry(context.Background(), "show ip bgp", "show bgp l2vpn evpn")
	assert.True(t, ok)
}
