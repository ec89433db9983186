package model

import (
	"fmt"
	"strings"
)

// Device 清单中的一台交换机，加载后只读
type Device struct {
	Hostname string `json:"hostname" mapstructure:"name"`
	Address  string `json:"address" mapstructure:"ip"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Port     int    `json:"port" mapstructure:"port"`
	// ShellPort 非 SSH 的备用 shell 端口（如 NX-API bash），仅作记录
	ShellPort int    `json:"shell_port,omitempty" mapstructure:"shell_port"`
	Platform  string `json:"platform,omitempty" mapstructure:"platform"`
}

// Label 日志与报告中使用的设备标识
func (d Device) Label() string {
	if strings.TrimSpace(d.Hostname) != "" {
		return d.Hostname
	}
	return fmt.Sprintf("%s:%d", d.Address, d.Port)
}

// Validate 检查必填字段
func (d Device) Validate() error {
	if strings.TrimSpace(d.Address) == "" {
		return fmt.Errorf("device %q: address is required", d.Hostname)
	}
	if strings.TrimSpace(d.Username) == "" {
		return fmt.Errorf("device %q: username is required", d.Hostname)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("device %q: invalid port %d", d.Hostname, d.Port)
	}
	return nil
}
