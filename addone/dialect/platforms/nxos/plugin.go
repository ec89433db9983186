package nxos

import (
	"regexp"

	"github.com/netshellpro/netshellpro/addone/dialect"
)

// Plugin 为 Cisco Nexus (NX-OS) 平台方言插件
type Plugin struct{}

func (p *Plugin) Name() string { return "nxos" }

func (p *Plugin) Rules() *dialect.Rules {
	r := (&dialect.DefaultPlugin{}).Rules()
	r.Name = "nxos"

	r.ConfigKeywords = []string{
		"configure terminal", "interface ethernet", "interface vlan", "interface loopback",
		"interface port-channel", "router bgp", "vlan ", "snmp-server", "feature ", "vpc ",
		"no shutdown", "shutdown", "description ", "ip address", "switchport",
		"neighbor ", "address-family", "route-map", "access-list", "ip route",
		"hostname", "username", "enable secret", "line vty", "default interface",
	}
	r.ConfirmKeywords = append(append([]string{}, r.ConfigKeywords...), "copy running", "write memory", "no ")

	// IOS 风格的 BGP 命令在 EVPN fabric 上不可用，整条替换
	r.StrictBlocks = []dialect.Correction{
		{Match: "show bgp summary", Replace: "show bgp l2vpn evpn summary"},
		{Match: "show bgp neighbors", Replace: "show bgp l2vpn evpn neighbors"},
		{Match: "show ip bgp", Replace: "show bgp ipv4 unicast summary", Exact: true},
	}
	r.Corrections = []dialect.Correction{
		{Match: "show bgp summary", Replace: "show bgp l2vpn evpn summary"},
		{Match: "show bgp neighbors", Replace: "show bgp l2vpn evpn neighbors"},
		{Match: "show ip bgp summary", Replace: "show bgp ipv4 unicast summary"},
		{Match: "show ip bgp neighbors", Replace: "show bgp ipv4 unicast neighbors"},
		{Match: "show processes cpu", Replace: "show system resources"},
		{Match: "show processes", Replace: "show system resources"},
		{Match: "show interface e1/", Replace: "show interface ethernet1/"},
		{Match: "show int e1/", Replace: "show interface ethernet1/"},
	}
	r.Shorthands = []dialect.Rewrite{
		{Pattern: regexp.MustCompile(`(?i)\b(show\s+interface\s+)e(\d+/\d+)`), Replace: "${1}ethernet${2}"},
	}

	r.Suggestions = []dialect.Correction{
		{Match: "show bgp neighbors", Replace: "show bgp l2vpn evpn neighbors"},
		{Match: "show bgp summary", Replace: "show bgp l2vpn evpn summary"},
		{Match: "show ip bgp", Replace: "show bgp l2vpn evpn"},
		{Match: "show processes cpu", Replace: "show system resources"},
		{Match: "show processes", Replace: "show system resources"},
	}
	r.TopicFallbacks = []dialect.TopicFallback{
		{
			Topic:   "bgp",
			Rules:   []dialect.TopicRule{{Contains: "neighbor", Suggest: "show bgp l2vpn evpn neighbors"}},
			Default: "show bgp l2vpn evpn summary",
		},
	}
	return r
}

func init() {
	// 注册到方言插件中心
	dialect.Register("nxos", &Plugin{})
}
