package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/netshellpro/netshellpro/internal/model"
)

// inventoryFile 清单文件结构：switches 列表
type inventoryFile struct {
	Switches []model.Device `mapstructure:"switches"`
}

// LoadInventory 读取交换机清单（YAML），端口缺省为 22，密码支持 ${VAR}
func LoadInventory(path string) ([]model.Device, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	var inv inventoryFile
	if err := v.Unmarshal(&inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	seen := make(map[string]struct{}, len(inv.Switches))
	devices := make([]model.Device, 0, len(inv.Switches))
	for _, d := range inv.Switches {
		d.Hostname = strings.TrimSpace(d.Hostname)
		d.Address = strings.TrimSpace(d.Address)
		d.Password = expandEnv(d.Password)
		if d.Port == 0 {
			d.Port = 22
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(d.Label())
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate device in inventory: %s", d.Label())
		}
		seen[key] = struct{}{}
		devices = append(devices, d)
	}
	return devices, nil
}

// FindDevice 按名称（不区分大小写）或地址查找设备
func FindDevice(devices []model.Device, name string) (model.Device, bool) {
	name = strings.TrimSpace(name)
	for _, d := range devices {
		if strings.EqualFold(d.Hostname, name) || d.Address == name {
			return d, true
		}
	}
	return model.Device{}, false
}
