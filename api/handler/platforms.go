package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/internal/service"
)

// PlatformsHandler 方言平台查询处理器
type PlatformsHandler struct {
	cfg func() *config.Config
}

// NewPlatformsHandler cfg 为 nil 时读取全局配置
func NewPlatformsHandler(cfg func() *config.Config) *PlatformsHandler {
	if cfg == nil {
		cfg = config.Get
	}
	return &PlatformsHandler{cfg: cfg}
}

// PlatformInfo 单个平台的生效规则摘要
type PlatformInfo struct {
	Name          string   `json:"name"`
	PromptPattern string   `json:"prompt_pattern"`
	PagingMarker  string   `json:"paging_marker"`
	DisablePaging string   `json:"disable_paging_cli"`
	ConfigEnter   string   `json:"config_mode_cli"`
	ConfigExit    string   `json:"config_exit_cli"`
	ErrorHints    []string `json:"error_hints"`
}

// ListPlatforms 列出已注册方言及当前默认平台
func (h *PlatformsHandler) ListPlatforms(c *gin.Context) {
	cfg := h.cfg()
	if cfg == nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "CONFIG_MISSING", Message: "配置未初始化"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取平台列表成功",
		Data: gin.H{
			"active":    cfg.Executor.Platform,
			"platforms": dialect.Names(),
		},
	})
}

// GetPlatform 返回合并 device_defaults 覆盖后的平台规则
func (h *PlatformsHandler) GetPlatform(c *gin.Context) {
	cfg := h.cfg()
	if cfg == nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "CONFIG_MISSING", Message: "配置未初始化"})
		return
	}
	name := strings.ToLower(strings.TrimSpace(c.Param("platform")))
	found := false
	for _, n := range dialect.Names() {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "PLATFORM_NOT_FOUND", Message: "平台不存在: " + name})
		return
	}

	rules := service.LoadRules(name, cfg.Executor.DeviceDefaults)
	info := PlatformInfo{
		Name:          rules.Name,
		PagingMarker:  rules.PagingMarker,
		DisablePaging: rules.DisablePaging,
		ConfigEnter:   rules.ConfigEnter,
		ConfigExit:    rules.ConfigExit,
		ErrorHints:    rules.FailureMarkers,
	}
	if rules.PromptPattern != nil {
		info.PromptPattern = rules.PromptPattern.String()
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取平台规则成功", Data: info})
}
