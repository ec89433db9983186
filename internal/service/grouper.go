package service

import (
	"fmt"
	"strings"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// BlockKind 命令块类型
type BlockKind string

const (
	BlockIndividual BlockKind = "individual"
	BlockInterface  BlockKind = "interface"
)

// CommandBlock 在同一配置上下文中连续执行的一组命令
//
// 接口块的 Commands 以进入配置模式的标记命令开头，其后为 interface 命令与子命令。
type CommandBlock struct {
	ID        string    `json:"id"`
	Kind      BlockKind `json:"kind"`
	Interface string    `json:"interface,omitempty"`
	Commands  []string  `json:"commands"`
}

// UserCommands 用户实际输入的命令（去掉合成的标记命令）
func (b CommandBlock) UserCommands() []string {
	if b.Kind == BlockInterface && len(b.Commands) > 0 {
		return b.Commands[1:]
	}
	return b.Commands
}

// GroupCommands 按输入顺序单次扫描，将接口配置命令聚合为命名块，其余命令各自成块
func GroupCommands(commands []string, rules *dialect.Rules) []CommandBlock {
	blocks := make([]CommandBlock, 0, len(commands))
	open := -1
	seen := make(map[string]int)
	enter := strings.ToLower(strings.TrimSpace(rules.ConfigEnter))
	ifacePrefix := strings.ToLower(rules.InterfacePrefix)

	individual := func(cmd string) {
		blocks = append(blocks, CommandBlock{
			ID:       fmt.Sprintf("individual_%d", len(blocks)),
			Kind:     BlockIndividual,
			Commands: []string{cmd},
		})
	}

	for _, raw := range commands {
		cmd := strings.TrimSpace(raw)
		if cmd == "" {
			continue
		}
		lower := strings.ToLower(cmd)

		switch {
		case enter != "" && lower == enter:
			// 标记命令由执行器按需发送
			continue

		case hasVerbPrefix(lower, rules.ReadOnlyPrefixes):
			individual(cmd)

		case ifacePrefix != "" && strings.HasPrefix(lower, ifacePrefix):
			name := "unknown"
			if fields := strings.Fields(cmd); len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
			id := name
			seen[strings.ToLower(name)]++
			if n := seen[strings.ToLower(name)]; n > 1 {
				id = fmt.Sprintf("%s#%d", name, n)
			}
			blocks = append(blocks, CommandBlock{
				ID:        id,
				Kind:      BlockInterface,
				Interface: name,
				Commands:  []string{rules.ConfigEnter, cmd},
			})
			open = len(blocks) - 1

		case containsAny(lower, rules.InterfaceSubKeywords):
			if open < 0 {
				logger.Debug("Interface sub-command without open interface, executing individually", "command", cmd)
				individual(cmd)
				continue
			}
			blocks[open].Commands = append(blocks[open].Commands, cmd)

		default:
			open = -1
			individual(cmd)
		}
	}
	return blocks
}

// UserCommands 展开所有块中的用户命令
func UserCommands(blocks []CommandBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.UserCommands()...)
	}
	return out
}
