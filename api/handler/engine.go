package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/internal/database"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/internal/service"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// InventoryFunc 返回当前设备清单，配置热更新后返回新清单
type InventoryFunc func() []model.Device

// EngineHandler 执行引擎处理器
type EngineHandler struct {
	pipeline  *service.Pipeline
	orch      *service.Orchestrator
	inventory InventoryFunc
	store     *service.GormHistoryStore
	suggest   service.SuggestionSource
}

// NewEngineHandler 创建执行引擎处理器；store 为 nil 时只提供内存历史
func NewEngineHandler(pipeline *service.Pipeline, orch *service.Orchestrator, inventory InventoryFunc, store *service.GormHistoryStore) *EngineHandler {
	if inventory == nil {
		inventory = func() []model.Device { return nil }
	}
	return &EngineHandler{
		pipeline:  pipeline,
		orch:      orch,
		inventory: inventory,
		store:     store,
		suggest:   service.ContextSuggestionSource{},
	}
}

// TargetDevice 请求中直接给出的设备连接信息
type TargetDevice struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Username string `json:"username"`
	Password string `json:"password"`
	Port     int    `json:"port"`
}

// ExecuteRequest 单设备执行请求：device 为清单中的名称，或通过 target 直接给出
type ExecuteRequest struct {
	Device   string        `json:"device"`
	Target   *TargetDevice `json:"target"`
	Commands []string      `json:"commands"`
	Request  string        `json:"request"`
	// Confirm 调用方预先确认配置变更；未确认的变更批次被取消
	Confirm bool `json:"confirm"`
}

// BatchExecuteRequest 多设备执行请求
type BatchExecuteRequest struct {
	Devices  []string `json:"devices"`
	All      bool     `json:"all"`
	Commands []string `json:"commands"`
	Request  string   `json:"request"`
	Confirm  bool     `json:"confirm"`
}

// Health 健康检查
func (h *EngineHandler) Health(c *gin.Context) {
	if err := h.orch.Pool().Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "会话池异常: " + err.Error()})
		return
	}
	data := gin.H{
		"platform": h.orch.Rules().Name,
		"pool":     h.orch.Pool().GetStats(),
		"history":  h.orch.History().Len(),
	}
	if h.store != nil {
		if err := database.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "DATABASE_UNAVAILABLE", Message: "数据库异常: " + err.Error()})
			return
		}
		data["database"] = database.GetStats()
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "服务正常", Data: data})
}

// Execute 在单台设备上执行命令或自然语言请求
func (h *EngineHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid execute request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: "请求参数无效: " + err.Error()})
		return
	}

	var device model.Device
	switch {
	case req.Target != nil:
		device = model.Device{
			Hostname: req.Target.Name,
			Address:  req.Target.Address,
			Username: req.Target.Username,
			Password: req.Target.Password,
			Port:     req.Target.Port,
		}
		if device.Port == 0 {
			device.Port = 22
		}
		if err := device.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "VALIDATION_FAILED", Message: err.Error()})
			return
		}
	case strings.TrimSpace(req.Device) != "":
		d, ok := config.FindDevice(h.inventory(), req.Device)
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{Code: "DEVICE_NOT_FOUND", Message: "设备不存在: " + req.Device})
			return
		}
		device = d
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "MISSING_DEVICE", Message: "device 与 target 不能同时为空"})
		return
	}

	h.run(c, req.Request, req.Commands, req.Confirm, []model.Device{device})
}

// BatchExecute 在多台清单设备上并行执行
func (h *EngineHandler) BatchExecute(c *gin.Context) {
	var req BatchExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid batch execute request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: "批量请求参数无效: " + err.Error()})
		return
	}

	inventory := h.inventory()
	var devices []model.Device
	if req.All {
		devices = inventory
	} else {
		for _, name := range req.Devices {
			d, ok := config.FindDevice(inventory, name)
			if !ok {
				c.JSON(http.StatusNotFound, ErrorResponse{Code: "DEVICE_NOT_FOUND", Message: "设备不存在: " + name})
				return
			}
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "EMPTY_DEVICES", Message: "未指定目标设备"})
		return
	}

	h.run(c, req.Request, req.Commands, req.Confirm, devices)
}

func (h *EngineHandler) run(c *gin.Context, request string, commands []string, confirm bool, devices []model.Device) {
	commands = trimCommands(commands)
	if len(commands) == 0 && strings.TrimSpace(request) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "MISSING_COMMANDS", Message: "commands 与 request 不能同时为空"})
		return
	}

	ctx := service.WithApproval(c.Request.Context(), confirm)
	var (
		res *service.PipelineResult
		err error
	)
	if len(commands) > 0 {
		if strings.TrimSpace(request) == "" {
			request = strings.Join(commands, "; ")
		}
		res, err = h.pipeline.RunCommands(ctx, request, commands, devices)
	} else {
		res, err = h.pipeline.Run(ctx, request, devices)
	}
	if errors.Is(err, service.ErrClarificationNeeded) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Code: "CLARIFICATION_NEEDED", Message: "请求无法解析为命令，请补充说明"})
		return
	}
	if err != nil {
		logger.Error("Execution failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "EXECUTION_FAILED", Message: "执行失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "执行完成", Data: res})
}

func trimCommands(in []string) []string {
	out := make([]string, 0, len(in))
	for _, cmd := range in {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			out = append(out, cmd)
		}
	}
	return out
}

// History 查询执行历史；source=db 时从数据库读取
func (h *EngineHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 || limit > 1000 {
		limit = 0
	}
	device := strings.TrimSpace(c.Query("device"))

	if c.Query("source") == "db" {
		if h.store == nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "DATABASE_DISABLED", Message: "未启用历史持久化"})
			return
		}
		entries, err := h.store.List(c.Request.Context(), device, limit)
		if err != nil {
			logger.Error("Failed to list history", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "QUERY_FAILED", Message: "查询历史失败: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取历史成功", Data: entries})
		return
	}

	entries := h.orch.History().Recent(limit)
	if device != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.EqualFold(e.Hostname, device) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取历史成功", Data: entries})
}

// Context 当前会话上下文
func (h *EngineHandler) Context(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取上下文成功", Data: h.orch.Context().Snapshot()})
}

// Suggestions 基于上下文的后续操作建议
func (h *EngineHandler) Suggestions(c *gin.Context) {
	out := service.Suggestions(c.Request.Context(), h.suggest, h.orch.Context().Snapshot())
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取建议成功", Data: out})
}

// PoolStats 会话池统计
func (h *EngineHandler) PoolStats(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取统计信息成功", Data: h.orch.Pool().GetStats()})
}
