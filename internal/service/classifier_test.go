package service

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIsFailure(t *testing.T) {
	c := NewRuleClassifier(nxosRules())
	assert.True(t, c.IsFailure("show bgp summary\n% Invalid command at '^' marker.\nleaf-01# "))
	assert.True(t, c.IsFailure("Syntax error while parsing"))
	assert.True(t, c.IsFailure("% Ambiguous command: \"sh\""))
	assert.True(t, c.IsFailure("Permission denied"))
	assert.False(t, c.IsFailure("Ethernet1/1 is up\nleaf-01# "))
	assert.False(t, c.IsFailure(""))
}

func TestSuggest(t *testing.T) {
	c := NewRuleClassifier(nxosRules())

	s, ok := c.Suggest("show bgp summary")
	assert.True(t, ok)
	assert.Equal(t, "show bgp l2vpn evpn summary", s)

	s, ok = c.Suggest("SHOW BGP NEIGHBORS")
	assert.True(t, ok, "精确匹配不区分大小写")
	assert.Equal(t, "show bgp l2vpn evpn neighbors", s)

	s, ok = c.Suggest("show ip bgp summary")
	assert.True(t, ok)
	assert.Equal(t, "show bgp l2vpn evpn summary", s, "子串替换保留其余文本")

	s, ok = c.Suggest("show processes cpu sort")
	assert.True(t, ok)
	assert.Equal(t, "show system resources sort", s)
}

func TestSuggestNonASCIIPrefix(t *testing.T) {
	c := NewRuleClassifier(nxosRules())

	var s string
	var ok bool
	assert.NotPanics(t, func() { s, ok = c.Suggest("ȺȺȺȺȺȺȺȺȺȺ show processes cpu") })
	assert.True(t, ok)
	assert.Equal(t, "ȺȺȺȺȺȺȺȺȺȺ show system resources", s)

	s, ok = c.Suggest("KKK show processes cpu")
	assert.True(t, ok)
	assert.Equal(t, "KKK show system resources", s)
	assert.True(t, utf8.ValidString(s), "建议必须是合法 UTF-8")
}

func TestSuggestTopicFallback(t *testing.T) {
	c := NewRuleClassifier(nxosRules())

	s, ok := c.Suggest("show bgp vrf all neighbor 10.0.0.2")
	assert.True(t, ok)
	assert.Equal(t, "show bgp l2vpn evpn neighbors", s)

	s, ok = c.Suggest("show bgp ipv4 unicast summary")
	assert.True(t, ok)
	assert.Equal(t, "show bgp l2vpn evpn summary", s)
}

func TestSuggestNone(t *testing.T) {
	c := NewRuleClassifier(nxosRules())
	_, ok := c.Suggest("show clock")
	assert.False(t, ok)
	_, ok = c.Suggest("show bgp l2vpn evpn summary")
	assert.False(t, ok, "建议与原命令相同视为无建议")
	_, ok = c.Suggest("  ")
	assert.False(t, ok)
}
