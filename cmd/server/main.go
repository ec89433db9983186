package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/netshellpro/netshellpro/api/handler"
	"github.com/netshellpro/netshellpro/api/router"
	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/internal/database"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/internal/service"
	"github.com/netshellpro/netshellpro/pkg/logger"
	"github.com/netshellpro/netshellpro/simulate"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	// .env 可选，仅补充环境变量
	_ = godotenv.Load()

	configPath := defaultConfigPath
	if p := strings.TrimSpace(os.Getenv("NETSHELL_CONFIG_FILE")); p != "" {
		configPath = p
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting NetShell Pro Server", "version", "1.0.0", "config", configPath)

	// 初始化数据库（可选）
	if cfg.Database.SQLite.Enabled {
		if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
			logger.Fatal("Failed to initialize database", "error", err)
		}
		defer database.Close()
	}

	engine := service.NewEngine(cfg, service.EngineOptions{})
	defer engine.Close()

	inv := &inventory{path: cfg.Server.Inventory}
	inv.reload()

	sim := &simulator{path: cfg.Server.SimulateConfig}
	if cfg.Server.SimulateEnable {
		sim.start()
	}
	defer sim.stop()

	var logs *handler.LogsHandler
	if cfg.Log.Output == "file" || cfg.Log.Output == "both" {
		logs = handler.NewLogsHandler(cfg.Log.FilePath)
	}

	// 设置路由
	r := router.SetupRouter(router.Deps{
		Engine:      handler.NewEngineHandler(engine.Pipeline, engine.Orchestrator, inv.devices, engine.HistoryStore),
		Platforms:   handler.NewPlatformsHandler(config.Get),
		Logs:        logs,
		Metrics:     engine.Metrics,
		MetricsPath: cfg.Metrics.Path,
		Mode:        cfg.Server.Mode,
	})

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting", "addr", server.Addr, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	// 配置文件热更新：日志与模拟器开关即时生效，连接与执行参数需重启
	go watchFile(watchCtx, "config", configPath, func() {
		newCfg, err := config.Load(configPath)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}
		// 原地覆盖，保持指针不变
		*cfg = *newCfg
		_ = initLogger(cfg)
		logger.Info("Config reloaded")

		if cfg.Server.SimulateEnable && !sim.running() {
			sim.start()
			logger.Info("Simulate: started by config reload")
		} else if !cfg.Server.SimulateEnable && sim.running() {
			sim.stop()
			logger.Info("Simulate: stopped by config reload")
		}
	})

	go watchFile(watchCtx, "inventory", cfg.Server.Inventory, inv.reload)

	// simulate.yaml 变化时重启模拟器
	go watchFile(watchCtx, "simulate", cfg.Server.SimulateConfig, func() {
		if !cfg.Server.SimulateEnable {
			logger.Info("Simulate: reload ignored, simulate disabled")
			return
		}
		sim.stop()
		sim.start()
		logger.Info("Simulate: restarted by simulate.yaml change")
	})

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
}

// inventory 设备清单，文件变化时整体替换
type inventory struct {
	path string
	mu   sync.RWMutex
	list []model.Device
}

func (i *inventory) devices() []model.Device {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.list
}

func (i *inventory) reload() {
	devices, err := config.LoadInventory(i.path)
	if err != nil {
		// 保留上一份可用清单
		logger.Warn("Inventory load failed", "path", i.path, "error", err)
		return
	}
	i.mu.Lock()
	i.list = devices
	i.mu.Unlock()
	logger.Info("Inventory loaded", "path", i.path, "devices", len(devices))
}

// simulator 内置设备模拟器的启停
type simulator struct {
	path string
	mu   sync.Mutex
	srv  *simulate.Server
}

func (s *simulator) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

func (s *simulator) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return
	}
	sc, err := simulate.LoadConfig(s.path)
	if err != nil {
		logger.Warn("Simulate: failed to load config, using defaults", "path", s.path, "error", err)
		sc = simulate.DefaultConfig()
	}
	srv, err := simulate.Start(sc)
	if err != nil {
		logger.Warn("Simulate: failed to start", "error", err)
		return
	}
	s.srv = srv
	users := make([]string, 0, len(sc.Devices))
	for u := range sc.Devices {
		users = append(users, u)
	}
	logger.Info("Simulate: started", "addr", srv.Addr(), "users", strings.Join(users, ", "))
}

func (s *simulator) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		s.srv.Stop()
		s.srv = nil
	}
}
