package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/netshellpro/netshellpro/api/handler"
	"github.com/netshellpro/netshellpro/internal/metrics"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// Deps 路由依赖
type Deps struct {
	Engine    *handler.EngineHandler
	Platforms *handler.PlatformsHandler
	Logs      *handler.LogsHandler
	// Metrics 为 nil 时不暴露指标端点
	Metrics     *metrics.Metrics
	MetricsPath string
	Mode        string
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	mode := d.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "NetShell Pro",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", d.Engine.Health)

		// 命令执行
		v1.POST("/execute", d.Engine.Execute)
		v1.POST("/execute/batch", d.Engine.BatchExecute)

		// 会话状态
		v1.GET("/history", d.Engine.History)
		v1.GET("/context", d.Engine.Context)
		v1.GET("/suggestions", d.Engine.Suggestions)
		v1.GET("/pool/stats", d.Engine.PoolStats)

		if d.Platforms != nil {
			v1.GET("/platforms", d.Platforms.ListPlatforms)
			v1.GET("/platforms/:platform", d.Platforms.GetPlatform)
		}
		if d.Logs != nil {
			v1.GET("/logs", d.Logs.TailLogs)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= 400 {
			logger.Warn("HTTP Error", kv...)
			return
		}
		logger.Info("HTTP Request", kv...)
	}
}
