package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

var (
	db     *gorm.DB
	dbPath string
)

// 每个连接都需要的 PRAGMA；多台设备并行写历史时依赖 WAL 与 busy_timeout
var pragmas = []string{
	"busy_timeout(15000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// InitSQLite 打开历史库并迁移表结构；HistoryRetention > 0 时裁剪旧历史
func InitSQLite(cfg config.SQLiteConfig) error {
	if strings.TrimSpace(cfg.Path) == "" {
		return errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		// 历史写入为单行插入，无需默认事务
		SkipDefaultTransaction: true,
	}

	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	conn, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path + "?" + strings.Join(params, "&"),
	}, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单连接，PRAGMA 始终生效
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := conn.AutoMigrate(&model.HistoryRecord{}, &model.Run{}); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	db = conn
	dbPath = cfg.Path

	if cfg.HistoryRetention > 0 {
		n, err := PruneHistory(cfg.HistoryRetention)
		if err != nil {
			logger.Warn("History prune failed", "error", err)
		} else if n > 0 {
			logger.Info("Old history pruned", "deleted", n, "kept", cfg.HistoryRetention)
		}
	}

	logger.Info("SQLite database initialized", "path", cfg.Path)
	return nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return db
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "cannot start a transaction within a transaction")
}

// WithRetry 锁冲突时退避重试，其余错误立即返回
func WithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = 50 * time.Millisecond
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(db); err == nil || !IsBusyError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		time.Sleep(sleep)
		if sleep < 500*time.Millisecond {
			sleep *= 2
		}
	}
	return err
}

// PruneHistory 只保留最新的 keep 条命令历史，返回删除条数
func PruneHistory(keep int) (int64, error) {
	if db == nil {
		return 0, errors.New("database not initialized")
	}
	if keep < 1 {
		return 0, nil
	}
	var deleted int64
	err := WithRetry(func(tx *gorm.DB) error {
		newest := tx.Model(&model.HistoryRecord{}).Select("id").Order("timestamp desc").Limit(keep)
		res := tx.Where("id NOT IN (?)", newest).Delete(&model.HistoryRecord{})
		deleted = res.RowsAffected
		return res.Error
	}, 3, 0)
	return deleted, err
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func Health() error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetStats 连接状态与历史表行数
func GetStats() map[string]interface{} {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}
	stats := sqlDB.Stats()
	out := map[string]interface{}{
		"path":                 dbPath,
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"wait_count":           stats.WaitCount,
	}
	var history, runs int64
	if err := db.Model(&model.HistoryRecord{}).Count(&history).Error; err == nil {
		out["history_records"] = history
	}
	if err := db.Model(&model.Run{}).Count(&runs).Error; err == nil {
		out["runs"] = runs
	}
	return out
}
