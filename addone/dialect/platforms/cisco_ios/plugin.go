package cisco_ios

import (
	"regexp"

	"github.com/netshellpro/netshellpro/addone/dialect"
)

// Plugin 为 cisco_ios 平台方言插件
type Plugin struct{}

func (p *Plugin) Name() string { return "cisco_ios" }

func (p *Plugin) Rules() *dialect.Rules {
	r := (&dialect.DefaultPlugin{}).Rules()
	r.Name = "cisco_ios"
	r.FailureMarkers = append(r.FailureMarkers, "% Incomplete command", "% Unknown command")
	// IOS 支持 Gi/Te 简写，这里仅补全 show 命令中的常见写法
	r.Shorthands = []dialect.Rewrite{
		{Pattern: regexp.MustCompile(`(?i)\b(show\s+interfaces?\s+)gi(\d+/\d+(?:/\d+)?)`), Replace: "${1}GigabitEthernet${2}"},
	}
	r.Suggestions = []dialect.Correction{
		{Match: "show system resources", Replace: "show processes cpu"},
		{Match: "show bgp l2vpn evpn summary", Replace: "show ip bgp summary"},
	}
	return r
}

func init() {
	dialect.Register("cisco_ios", &Plugin{})
}
