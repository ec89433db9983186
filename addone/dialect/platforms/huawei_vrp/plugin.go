package huawei_vrp

import (
	"regexp"

	"github.com/netshellpro/netshellpro/addone/dialect"
)

// Plugin 为华为 VRP 平台方言插件（S/CE 系列交换机）
type Plugin struct{}

func (p *Plugin) Name() string { return "huawei_vrp" }

func (p *Plugin) Rules() *dialect.Rules {
	r := (&dialect.DefaultPlugin{}).Rules()
	r.Name = "huawei_vrp"
	r.ReadOnlyPrefixes = []string{"display"}
	r.QueryPrefixes = []string{"display", "ping", "tracert", "telnet", "stelnet"}
	r.ConfigKeywords = []string{
		"system-view", "interface ", "vlan ", "undo shutdown", "shutdown", "description ",
		"ip address", "port link-type", "port default vlan", "port trunk", "sysname", "bgp ",
	}
	r.ConfirmKeywords = append(append([]string{}, r.ConfigKeywords...), "save", "undo ", "reboot")
	r.InterfaceSubKeywords = []string{
		"description", "port link-type", "port default vlan", "port trunk", "undo shutdown",
		"shutdown", "ip address", "stp", "mtu", "speed", "duplex",
	}
	r.ConfigEnter = "system-view"
	r.ConfigExit = "return"
	r.DisablePaging = "screen-length 0 temporary"
	r.FailureMarkers = []string{
		"Error: Unrecognized command", "Error: Wrong parameter", "Error: Incomplete command",
		"Error: Too many parameters", "% Unrecognized command",
	}
	r.Corrections = []dialect.Correction{
		{Match: "show ", Replace: "display "},
	}
	r.Suggestions = []dialect.Correction{
		{Match: "display running-config", Replace: "display current-configuration"},
	}
	r.PagingMarker = "---- More ----"
	r.PromptPattern = regexp.MustCompile(`[>\]]\s*$`)
	return r
}

func init() {
	dialect.Register("huawei_vrp", &Plugin{})
}
