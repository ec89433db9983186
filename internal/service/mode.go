package service

import (
	"strings"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/pkg/ssh"
)

// Mode 远端 shell 的执行上下文
type Mode int

const (
	ModeOperational Mode = iota
	ModeConfiguring
)

func (m Mode) String() string {
	if m == ModeConfiguring {
		return "configuring"
	}
	return "operational"
}

// IsConfigClass 非查询类且包含配置关键字的命令需在配置模式下执行
func IsConfigClass(command string, rules *dialect.Rules) bool {
	lower := strings.ToLower(strings.TrimSpace(command))
	if lower == "" || hasVerbPrefix(lower, rules.QueryPrefixes) {
		return false
	}
	return containsAny(lower, rules.ConfigKeywords)
}

// ModeController 跟踪并切换单个会话的配置模式
type ModeController struct {
	framer    *ssh.Framer
	rules     *dialect.Rules
	mode      Mode
	pagingOff bool
}

// NewModeController 创建模式控制器，初始为操作模式
func NewModeController(framer *ssh.Framer, rules *dialect.Rules) *ModeController {
	return &ModeController{framer: framer, rules: rules, mode: ModeOperational}
}

func (m *ModeController) Mode() Mode { return m.mode }

func (m *ModeController) IsConfigClass(command string) bool {
	return IsConfigClass(command, m.rules)
}

// EnsurePagingDisabled 每个会话只发送一次关闭分页命令
func (m *ModeController) EnsurePagingDisabled() error {
	if m.pagingOff || m.rules.DisablePaging == "" {
		return nil
	}
	if _, err := m.framer.Exchange(m.rules.DisablePaging); err != nil {
		return err
	}
	m.pagingOff = true
	return nil
}

// Enter 仅在操作模式下发送进入配置模式命令；已在配置模式时返回空帧
func (m *ModeController) Enter() (ssh.Frame, error) {
	if m.mode == ModeConfiguring {
		return ssh.Frame{Complete: true}, nil
	}
	frame, err := m.framer.Exchange(m.rules.ConfigEnter)
	if err != nil {
		return frame, err
	}
	m.mode = ModeConfiguring
	return frame, nil
}

// Exit 仅在配置模式下发送退出命令
func (m *ModeController) Exit() (ssh.Frame, error) {
	if m.mode == ModeOperational {
		return ssh.Frame{Complete: true}, nil
	}
	frame, err := m.framer.Exchange(m.rules.ConfigExit)
	if err != nil {
		return frame, err
	}
	m.mode = ModeOperational
	return frame, nil
}
