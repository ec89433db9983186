package simulate

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

type cliMode int

const (
	modeExec cliMode = iota
	modeConfig
	modeConfigIf
)

// deviceShell 单个 shell 通道上的 CLI 状态
type deviceShell struct {
	rw       io.ReadWriter
	reader   *bufio.Reader
	dev      DeviceConfig
	hostname string
	mode     cliMode
	paging   bool
	pageSize int
	silent   map[string]bool
}

func newDeviceShell(rw io.ReadWriter, dev DeviceConfig) *deviceShell {
	hostname := dev.Hostname
	if hostname == "" {
		hostname = "switch"
	}
	pageSize := dev.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	silent := make(map[string]bool, len(dev.Silent))
	for _, c := range dev.Silent {
		silent[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &deviceShell{
		rw:       rw,
		reader:   bufio.NewReader(rw),
		dev:      dev,
		hostname: hostname,
		paging:   true,
		pageSize: pageSize,
		silent:   silent,
	}
}

func (sh *deviceShell) prompt() string {
	switch sh.mode {
	case modeConfig:
		return sh.hostname + "(config)# "
	case modeConfigIf:
		return sh.hostname + "(config-if)# "
	}
	return sh.hostname + "# "
}

func (sh *deviceShell) write(s string) {
	_, _ = io.WriteString(sh.rw, crlf(s))
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// run 交互循环：回显、执行、分页、提示符
func (sh *deviceShell) run() {
	if sh.dev.Banner != "" {
		sh.write(sh.dev.Banner + "\n")
	}
	sh.write("\n" + sh.prompt())
	for {
		line, err := sh.readLine()
		if err != nil {
			return
		}
		sh.write(line + "\n")
		cmd := strings.ToLower(strings.TrimSpace(line))
		if sh.silent[cmd] {
			continue
		}
		if sh.mode == modeExec && (cmd == "exit" || cmd == "logout") {
			return
		}
		if !sh.writePaged(sh.execute(line)) {
			return
		}
		sh.write(sh.prompt())
	}
}

// readLine 读取一行，\r\n 视为一个换行
func (sh *deviceShell) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := sh.reader.ReadByte()
		if err != nil {
			return "", err
		}
		switch c {
		case '\r':
			if next, err := sh.reader.Peek(1); err == nil && next[0] == '\n' {
				_, _ = sh.reader.ReadByte()
			}
			return b.String(), nil
		case '\n':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
}

// writePaged 分页开启时每页后输出 --More--，等待一个按键；返回 false 表示通道已断开
func (sh *deviceShell) writePaged(out string) bool {
	if out == "" {
		return true
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if !sh.paging || len(lines) <= sh.pageSize {
		sh.write(out)
		return true
	}
	for start := 0; start < len(lines); start += sh.pageSize {
		end := start + sh.pageSize
		if end > len(lines) {
			end = len(lines)
		}
		sh.write(strings.Join(lines[start:end], "\n") + "\n")
		if end == len(lines) {
			break
		}
		sh.write(" --More-- ")
		key, err := sh.reader.ReadByte()
		if err != nil {
			return false
		}
		_, _ = io.WriteString(sh.rw, "\r          \r")
		if key == 'q' || key == 'Q' {
			break
		}
	}
	return true
}

// execute 执行一条命令，返回以 \n 分行的输出
func (sh *deviceShell) execute(line string) string {
	cmd := strings.TrimSpace(line)
	lower := strings.ToLower(cmd)
	switch {
	case cmd == "":
		return ""
	case lower == "terminal length 0":
		sh.paging = false
		return ""
	case lower == "configure terminal" || lower == "conf t":
		sh.mode = modeConfig
		return "Enter configuration commands, one per line. End with CNTL/Z.\n"
	case lower == "end":
		sh.mode = modeExec
		return ""
	case lower == "exit":
		if sh.mode == modeConfigIf {
			sh.mode = modeConfig
		} else {
			sh.mode = modeExec
		}
		return ""
	}

	if out, ok := sh.lookup(lower); ok {
		return out
	}
	if sh.mode != modeExec {
		if strings.HasPrefix(lower, "interface ") {
			sh.mode = modeConfigIf
			return ""
		}
		first := strings.Fields(lower)[0]
		if configVerbs[first] {
			return ""
		}
	}
	return "                        ^\n% Invalid command at '^' marker.\n"
}

func (sh *deviceShell) lookup(lower string) (string, bool) {
	for k, v := range sh.dev.Commands {
		if strings.ToLower(strings.TrimSpace(k)) == lower {
			return ensureNewline(v), true
		}
	}
	if v, ok := builtinOutputs[lower]; ok {
		return v, true
	}
	return "", false
}

func ensureNewline(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

var configVerbs = map[string]bool{
	"description": true, "switchport": true, "shutdown": true, "no": true,
	"ip": true, "vlan": true, "name": true, "feature": true, "router": true,
	"neighbor": true, "address-family": true, "mtu": true, "speed": true,
	"duplex": true, "spanning-tree": true, "hostname": true, "username": true,
	"snmp-server": true, "vpc": true, "route-map": true, "channel-group": true,
	"remote-as": true, "default": true,
}

var builtinOutputs = map[string]string{
	"show version": `Cisco Nexus Operating System (NX-OS) Software
TAC support: http://www.cisco.com/tac
Software
  BIOS: version 05.45
  NXOS: version 9.3(8)
Hardware
  cisco Nexus9000 C93180YC-EX chassis
  Device name: nx-sim-01
Kernel uptime is 12 day(s), 3 hour(s), 41 minute(s), 7 second(s)
`,
	"show interface brief": `--------------------------------------------------------------------------------
Ethernet      VLAN    Type Mode   Status  Reason                   Speed     Port
Interface                                                                    Ch
--------------------------------------------------------------------------------
Eth1/1        10      eth  access up      none                       10G(D) --
Eth1/2        10      eth  access up      none                       10G(D) --
Eth1/3        1       eth  access down    Link not connected         auto(D) --
Eth1/5        20      eth  access up      none                       10G(D) --
`,
	"show vlan brief": `
VLAN Name                             Status    Ports
---- -------------------------------- --------- -------------------------------
1    default                          active    Eth1/3, Eth1/4
10   SERVERS                          active    Eth1/1, Eth1/2
20   STORAGE                          active    Eth1/5
`,
	"show interface ethernet1/1": `Ethernet1/1 is up
admin state is up, Dedicated Interface
  Hardware: 100/1000/10000/25000 Ethernet, address: 00fe.c8aa.0101
  Description: uplink
  MTU 9216 bytes, BW 10000000 Kbit, DLY 10 usec
`,
	"show bgp l2vpn evpn summary": `BGP summary information for VRF default, address family L2VPN EVPN
BGP router identifier 10.0.0.1, local AS number 65001
Neighbor        V    AS MsgRcvd MsgSent   TblVer  InQ OutQ Up/Down  State/PfxRcd
10.0.0.11       4 65001   18231   18220      412    0    0    12d03h 54
10.0.0.12       4 65001   18229   18221      412    0    0    12d03h 54
`,
	"show bgp l2vpn evpn neighbors": `BGP neighbor is 10.0.0.11, remote AS 65001, ibgp link, Peer index 1
  BGP version 4, remote router ID 10.0.0.11
  BGP state = Established, up for 12d03h
`,
	"show system resources": `Load average:   1 minute: 0.32   5 minutes: 0.41   15 minutes: 0.44
Processes   :   812 total, 1 running
CPU states  :   2.10% user,   1.05% kernel,   96.85% idle
Memory usage:   24633028K total,   9452860K used,   15180168K free
`,
	"show running-config": runningConfig(),
}

func runningConfig() string {
	var b strings.Builder
	b.WriteString("!Command: show running-config\n!Running configuration last done at: Mon Oct  5 10:00:00 2026\n\nversion 9.3(8) Bios:version 05.45\nhostname nx-sim-01\n")
	b.WriteString("feature bgp\nfeature interface-vlan\nfeature nv overlay\n\n")
	for i := 1; i <= 12; i++ {
		b.WriteString("interface Ethernet1/")
		b.WriteString(strconv.Itoa(i))
		b.WriteString("\n  description server-port\n  switchport access vlan 10\n  no shutdown\n\n")
	}
	return b.String()
}
