package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netshellpro/netshellpro/addone/dialect"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/cisco_ios"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/huawei_vrp"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/nxos"
)

func TestGetFallsBackToDefault(t *testing.T) {
	p := dialect.Get("unknown_platform")
	assert.Equal(t, "default", p.Name())
	assert.Empty(t, p.Rules().Corrections, "默认方言不做语法修正")
}

func TestPlatformsRegistered(t *testing.T) {
	assert.Equal(t, "nxos", dialect.Get("NXOS").Name(), "平台名称不区分大小写")
	assert.Equal(t, "cisco_ios", dialect.Get(" cisco_ios ").Name())
	assert.Subset(t, dialect.Names(), []string{"default", "nxos", "cisco_ios", "huawei_vrp"})
}

func TestNXOSRules(t *testing.T) {
	r := dialect.Get("nxos").Rules()
	assert.Equal(t, "terminal length 0", r.DisablePaging)
	assert.Equal(t, "configure terminal", r.ConfigEnter)
	assert.Equal(t, "end", r.ConfigExit)
	assert.Contains(t, r.FailureMarkers, "% Invalid")
	assert.Len(t, r.StrictBlocks, 3)
	assert.Equal(t, "show bgp l2vpn evpn summary", r.TopicFallbacks[0].Default)
	assert.True(t, r.PromptPattern.MatchString("leaf-01# "))
}

func TestHuaweiRules(t *testing.T) {
	r := dialect.Get("huawei_vrp").Rules()
	assert.Equal(t, "system-view", r.ConfigEnter)
	assert.True(t, r.PromptPattern.MatchString("[HUAWEI]"))
	assert.True(t, r.PromptPattern.MatchString("<HUAWEI>"))
}

func TestCloneIsIndependent(t *testing.T) {
	r := dialect.Get("nxos").Rules()
	c := r.Clone()
	c.FailureMarkers[0] = "changed"
	c.ConfigKeywords = append(c.ConfigKeywords, "extra")
	assert.NotEqual(t, "changed", r.FailureMarkers[0])
	assert.NotContains(t, r.ConfigKeywords, "extra")
}
