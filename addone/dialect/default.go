package dialect

import "regexp"

// Correction 文本替换规则：命中 Match（大小写不敏感）时替换为 Replace
type Correction struct {
	Match   string
	Replace string
	// Exact 仅在整条命令等于 Match 时命中
	Exact bool
}

// Rewrite 正则改写规则，用于接口简写等格式修正
type Rewrite struct {
	Pattern *regexp.Regexp
	Replace string
}

// TopicRule 主题兜底：命令包含 Contains 时建议 Suggest
type TopicRule struct {
	Contains string
	Suggest  string
}

// TopicFallback 命令包含 Topic 时按 Rules 顺序匹配，均未命中使用 Default
type TopicFallback struct {
	Topic   string
	Rules   []TopicRule
	Default string
}

// Rules 平台方言规则表；所有匹配均为小写比较
type Rules struct {
	Name string

	// ReadOnlyPrefixes 只读命令动词（show/display），分组时单独成块
	ReadOnlyPrefixes []string
	// QueryPrefixes 查询类前缀（含 ping/traceroute 等），不会触发配置模式与确认
	QueryPrefixes []string
	// ConfigKeywords 命中即视为配置类命令，需进入配置模式
	ConfigKeywords []string
	// ConfirmKeywords 执行前需要调用方确认的变更关键字
	ConfirmKeywords []string

	InterfacePrefix      string
	InterfaceSubKeywords []string

	ConfigEnter   string
	ConfigExit    string
	DisablePaging string

	// StrictBlocks 不兼容命令，命中即整条替换；Exact 条目要求整条相等
	StrictBlocks []Correction
	// Corrections 通用修正表，子串命中首条生效
	Corrections []Correction
	// Shorthands 最后执行的正则改写
	Shorthands []Rewrite

	FailureMarkers []string
	// Suggestions 失败命令建议表：先精确查找，再子串替换
	Suggestions    []Correction
	TopicFallbacks []TopicFallback

	PagingMarker  string
	PromptPattern *regexp.Regexp
}

// Clone 深拷贝，便于按配置覆盖而不影响注册表中的原始规则
func (r *Rules) Clone() *Rules {
	c := *r
	c.ReadOnlyPrefixes = append([]string(nil), r.ReadOnlyPrefixes...)
	c.QueryPrefixes = append([]string(nil), r.QueryPrefixes...)
	c.ConfigKeywords = append([]string(nil), r.ConfigKeywords...)
	c.ConfirmKeywords = append([]string(nil), r.ConfirmKeywords...)
	c.InterfaceSubKeywords = append([]string(nil), r.InterfaceSubKeywords...)
	c.StrictBlocks = append([]Correction(nil), r.StrictBlocks...)
	c.Corrections = append([]Correction(nil), r.Corrections...)
	c.Shorthands = append([]Rewrite(nil), r.Shorthands...)
	c.FailureMarkers = append([]string(nil), r.FailureMarkers...)
	c.Suggestions = append([]Correction(nil), r.Suggestions...)
	c.TopicFallbacks = append([]TopicFallback(nil), r.TopicFallbacks...)
	return &c
}

// Plugin 方言插件接口
type Plugin interface {
	// Name 插件名称（如：default、nxos、ios）
	Name() string
	// Rules 返回平台规则表
	Rules() *Rules
}

// DefaultPlugin 系统默认方言：通用 Cisco 风格 CLI，不做语法修正
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

func (p *DefaultPlugin) Rules() *Rules {
	return &Rules{
		Name:             "default",
		ReadOnlyPrefixes: []string{"show", "display"},
		QueryPrefixes:    []string{"show", "display", "ping", "traceroute", "telnet", "ssh"},
		ConfigKeywords: []string{
			"configure terminal", "interface ", "router ", "vlan ", "snmp-server",
			"no shutdown", "shutdown", "description ", "ip address", "switchport",
			"hostname", "username",
		},
		ConfirmKeywords: []string{
			"configure terminal", "interface ", "router ", "vlan ", "snmp-server",
			"shutdown", "description ", "ip address", "switchport", "hostname",
			"username", "reload", "write ", "copy ", "no ",
		},
		InterfacePrefix: "interface ",
		InterfaceSubKeywords: []string{
			"description", "switchport", "no shutdown", "shutdown", "ip address",
			"spanning-tree", "mtu", "speed", "duplex",
		},
		ConfigEnter:   "configure terminal",
		ConfigExit:    "end",
		DisablePaging: "terminal length 0",
		FailureMarkers: []string{
			"Invalid command", "% Invalid", "Syntax error", "Command not found",
			"% Ambiguous command", "Permission denied", "Authentication failed",
		},
		PagingMarker:  "--More--",
		PromptPattern: regexp.MustCompile(`[>#]\s*$`),
	}
}
