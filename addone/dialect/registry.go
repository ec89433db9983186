package dialect

import (
	"sort"
	"strings"
	"sync"
)

// 注册中心，按平台名称获取方言插件
var (
	registryMu sync.RWMutex
	registry   = map[string]Plugin{
		"default": &DefaultPlugin{},
	}
)

// Register 注册一个方言插件
func Register(name string, plugin Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = plugin
}

// Get 获取指定平台的方言插件，不存在则返回 default
func Get(name string) Plugin {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return registry["default"]
}

// Names 已注册的平台名称（排序）
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
