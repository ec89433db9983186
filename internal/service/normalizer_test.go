package service

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/netshellpro/netshellpro/addone/dialect"
)

func TestNormalizeNXOS(t *testing.T) {
	n := NewNormalizer(nxosRules())
	cases := map[string]string{
		"show bgp summary":       "show bgp l2vpn evpn summary",
		"show bgp neighbors":     "show bgp l2vpn evpn neighbors",
		"show ip bgp summary":    "show bgp ipv4 unicast summary",
		"show ip bgp neighbors":  "show bgp ipv4 unicast neighbors",
		"show ip bgp":            "show bgp ipv4 unicast summary",
		" SHOW  IP BGP ":         "show bgp ipv4 unicast summary",
		"SHOW PROCESSES CPU":     "show system resources",
		"show processes":         "show system resources",
		"show interface e1/5":    "show interface ethernet1/5",
		"show int e1/7":          "show interface ethernet1/7",
		"show interface e2/3":    "show interface ethernet2/3",
		"  show version  ":       "show version",
		"show interface brief":   "show interface brief",
		"interface ethernet1/1":  "interface ethernet1/1",
		"show running-config":    "show running-config",
		"show interface E1/5 br": "show interface ethernet1/5 br",
	}
	for in, want := range cases {
		assert.Equal(t, want, n.Normalize(in), "输入: %q", in)
	}
}

func TestNormalizeIsIdempotentAndNeverEmpty(t *testing.T) {
	n := NewNormalizer(nxosRules())
	inputs := []string{
		"show bgp summary", "show ip bgp neighbors", "show ip bgp", "show processes cpu history",
		"show int e1/1", "show interface e1/10 counters", "Show Bgp Summary vrf all",
		"description uplink", "x", "show interface ethernet1/1",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.NotEmpty(t, once, "非空输入不应得到空结果: %q", in)
		assert.Equal(t, once, n.Normalize(once), "重复修正不应改变结果: %q", in)
	}
}

func TestNormalizeKeepsNeighborAddress(t *testing.T) {
	n := NewNormalizer(nxosRules())
	assert.Equal(t, "show bgp ipv4 unicast neighbors 10.0.0.1", n.Normalize("show ip bgp neighbors 10.0.0.1"),
		"show ip bgp 只在整条命令相等时整条替换")
	assert.Equal(t, "show bgp ipv4 unicast neighbors 10.0.0.1 routes", n.Normalize("Show IP BGP Neighbors 10.0.0.1 routes"))
}

func TestNormalizeNonASCIIInput(t *testing.T) {
	n := NewNormalizer(nxosRules())

	// 小写后字节变长的字符
	var out string
	assert.NotPanics(t, func() { out = n.Normalize("ȺȺȺȺȺȺȺȺȺȺ show processes") })
	assert.Equal(t, "ȺȺȺȺȺȺȺȺȺȺ show system resources", out)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, out, n.Normalize(out), "重复修正不应改变结果")

	// 小写后字节变短的字符（开尔文符号）
	assert.NotPanics(t, func() { out = n.Normalize("KKK show processes cpu") })
	assert.Equal(t, "KKK show system resources", out)
	assert.True(t, utf8.ValidString(out), "结果必须是合法 UTF-8")
	assert.Equal(t, out, n.Normalize(out))

	assert.Equal(t, "描述 show system resources", n.Normalize("描述 SHOW PROCESSES"))
}

func TestNormalizeBlankInputUnchanged(t *testing.T) {
	n := NewNormalizer(nxosRules())
	assert.Equal(t, "   ", n.Normalize("   "))
	assert.Equal(t, "", n.Normalize(""))
}

func TestNormalizeDefaultDialectDoesNothing(t *testing.T) {
	n := NewNormalizer(dialect.Get("default").Rules())
	assert.Equal(t, "show bgp summary", n.Normalize("show bgp summary"))
}

func TestReplaceFold(t *testing.T) {
	out, ok := replaceFold("Show Processes CPU sorted", "show processes cpu", "show system resources")
	assert.True(t, ok)
	assert.Equal(t, "show system resources sorted", out)

	_, ok = replaceFold("show clock", "show bgp", "x")
	assert.False(t, ok)

	out, ok = replaceFold("KK show processes cpu", "show processes", "show system resources")
	assert.True(t, ok)
	assert.Equal(t, "KK show system resources cpu", out, "前缀按原文切片")

	out, ok = replaceFold("show ip route a.b", "a.b", "x")
	assert.True(t, ok)
	assert.Equal(t, "show ip route x", out, "匹配文本按字面量处理")
	_, ok = replaceFold("show ip route axb", "a.b", "x")
	assert.False(t, ok)

	_, ok = replaceFold("show clock", "", "x")
	assert.False(t, ok)
}
