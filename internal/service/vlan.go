package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// VLANInfo show vlan brief 中的一行
type VLANInfo struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Ports  []string `json:"ports"`
}

var vlanRowRe = regexp.MustCompile(`^(\d+)\s+(\S+)\s+(\S+)\s*(.*)$`)

// ParseVLANBrief 解析 show vlan brief 输出，端口续行归入上一 VLAN
func ParseVLANBrief(output string) map[int]VLANInfo {
	vlans := make(map[int]VLANInfo)
	last := -1
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r", ""), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := vlanRowRe.FindStringSubmatch(line); m != nil {
			id, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			vlans[id] = VLANInfo{ID: id, Name: m[2], Status: m[3], Ports: splitPorts(m[4])}
			last = id
			continue
		}
		// 以空白开头的续行只包含端口
		if last >= 0 && (line[0] == ' ' || line[0] == '\t') {
			v := vlans[last]
			v.Ports = append(v.Ports, splitPorts(line)...)
			vlans[last] = v
			continue
		}
		last = -1
	}
	return vlans
}

func splitPorts(s string) []string {
	var ports []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ports = append(ports, p)
		}
	}
	return ports
}

// SortedVLANs 按 VLAN ID 排序
func SortedVLANs(vlans map[int]VLANInfo) []VLANInfo {
	out := make([]VLANInfo, 0, len(vlans))
	for _, v := range vlans {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindInterfaceVLAN 查找接口所属 VLAN，接口名支持 Ethernet1/1、Eth1/1 与 e1/1 写法
func FindInterfaceVLAN(output, iface string) (VLANInfo, bool) {
	want := canonicalInterface(iface)
	if want == "" {
		return VLANInfo{}, false
	}
	for _, v := range SortedVLANs(ParseVLANBrief(output)) {
		for _, p := range v.Ports {
			if canonicalInterface(p) == want {
				return v, true
			}
		}
	}
	return VLANInfo{}, false
}

var ifaceAliases = []struct{ long, short string }{
	{"ethernet", "eth"},
	{"port-channel", "po"},
	{"gigabitethernet", "gi"},
}

func canonicalInterface(name string) string {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	for _, a := range ifaceAliases {
		if strings.HasPrefix(n, a.long) {
			return a.short + strings.TrimPrefix(n, a.long)
		}
	}
	// e1/7
	if len(n) > 1 && n[0] == 'e' && n[1] >= '0' && n[1] <= '9' {
		return "eth" + n[1:]
	}
	return n
}

var interfaceMentionRe = regexp.MustCompile(`(?i)\b(?:ethernet|eth|e)\s?\d+(?:/\d+)+\b|\b(?:port-channel|po)\s?\d+\b`)

// InterfaceInRequest 从请求文本中提取第一个接口名
func InterfaceInRequest(request string) (string, bool) {
	m := interfaceMentionRe.FindString(request)
	if m == "" {
		return "", false
	}
	return m, true
}
