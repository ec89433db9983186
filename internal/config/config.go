package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Database DatabaseConfig `mapstructure:"database"`
	Report   ReportConfig   `mapstructure:"report"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SimulateEnable bool          `mapstructure:"simulate_enable"`
	SimulateConfig string        `mapstructure:"simulate_config"`
	// Inventory 设备清单文件，API 按名称查找设备时使用
	Inventory string `mapstructure:"inventory"`
}

// SSHConfig SSH配置
type SSHConfig struct {
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	// PollTimeout 分帧时单次读取等待
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	MaxIdlePolls int           `mapstructure:"max_idle_polls"`
	SendDelay    time.Duration `mapstructure:"send_delay"`
	MaxSessions  int           `mapstructure:"max_sessions"`
	TermTypes    []string      `mapstructure:"term_types"`
}

// ExecutorConfig 执行引擎配置
type ExecutorConfig struct {
	Platform      string `mapstructure:"platform"`
	Interactive   bool   `mapstructure:"interactive"`
	AutoRetry     bool   `mapstructure:"auto_retry"`
	Concurrent    int    `mapstructure:"concurrent"`
	HistorySize   int    `mapstructure:"history_size"`
	HistoryRecent int    `mapstructure:"history_recent"`
	OutputPreview int    `mapstructure:"output_preview"`
	AnalysisLimit int    `mapstructure:"analysis_limit"`
	NoteLimit     int    `mapstructure:"note_limit"`
	// DeviceDefaults 按设备平台覆盖方言规则（提示符、分页、配置模式、错误提示）
	DeviceDefaults map[string]PlatformDefaultsConfig `mapstructure:"device_defaults"`
}

// PlatformDefaultsConfig 平台默认交互配置
type PlatformDefaultsConfig struct {
	PromptPattern string   `mapstructure:"prompt_pattern"`
	PagingMarker  string   `mapstructure:"paging_marker"`
	DisablePaging string   `mapstructure:"disable_paging_cli"`
	ConfigModeCLI string   `mapstructure:"config_mode_cli"`
	ConfigExitCLI string   `mapstructure:"config_exit_cli"`
	ErrorHints    []string `mapstructure:"error_hints"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// HistoryRetention 启动时保留的最新历史条数，0 表示不裁剪
	HistoryRetention int `mapstructure:"history_retention"`
}

// ReportConfig 报告保存配置
type ReportConfig struct {
	// Backend 存储后端：local | minio
	Backend string            `mapstructure:"backend"`
	Prefix  string            `mapstructure:"prefix"`
	Local   LocalReportConfig `mapstructure:"local"`
}

// LocalReportConfig 本地存储配置
type LocalReportConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var globalConfig *Config

// Load 加载配置文件；路径为空时在 configs 目录查找，文件不存在时仅使用默认值与环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	v.SetEnvPrefix("NETSHELL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case configPath == "" && errors.As(err, &notFound):
			// 无配置文件，使用默认值
		case configPath != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("config file not found: %s", configPath)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 环境变量替换
	config = replaceEnvVars(config)
	normalize(&config)

	globalConfig = &config
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 18080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)
	v.SetDefault("server.simulate_enable", false)
	v.SetDefault("server.simulate_config", "simulate/simulate.yaml")
	v.SetDefault("server.inventory", "configs/switches.yaml")

	// SSH 连接与分帧参数
	v.SetDefault("ssh.connect_timeout", 10*time.Second)
	v.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	v.SetDefault("ssh.poll_timeout", 500*time.Millisecond)
	v.SetDefault("ssh.max_idle_polls", 10)
	v.SetDefault("ssh.send_delay", 200*time.Millisecond)
	v.SetDefault("ssh.max_sessions", 64)
	v.SetDefault("ssh.term_types", []string{"vt100", "xterm", "ansi", "dumb"})

	v.SetDefault("executor.platform", "nxos")
	v.SetDefault("executor.interactive", false)
	v.SetDefault("executor.auto_retry", true)
	v.SetDefault("executor.concurrent", 4)
	v.SetDefault("executor.history_size", 100)
	v.SetDefault("executor.history_recent", 10)
	v.SetDefault("executor.output_preview", 500)
	v.SetDefault("executor.analysis_limit", 2000)
	v.SetDefault("executor.note_limit", 200)

	v.SetDefault("database.sqlite.enabled", false)
	v.SetDefault("database.sqlite.path", "./data/netshell.db")
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sqlite.history_retention", 10000)

	v.SetDefault("report.backend", "local")
	v.SetDefault("report.prefix", "reports")
	v.SetDefault("report.local.base_dir", "./data")
	v.SetDefault("report.local.mkdir_if_missing", true)

	v.SetDefault("storage.minio.bucket", "netshell")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/netshell.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// normalize 修正非法取值
func normalize(c *Config) {
	if c.Executor.Concurrent < 1 {
		c.Executor.Concurrent = 1
	}
	if c.Executor.HistorySize < 1 {
		c.Executor.HistorySize = 100
	}
	if c.Executor.HistoryRecent < 1 {
		c.Executor.HistoryRecent = 10
	}
	if strings.TrimSpace(c.Executor.Platform) == "" {
		c.Executor.Platform = "nxos"
	}
	c.Report.Backend = strings.ToLower(strings.TrimSpace(c.Report.Backend))
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// replaceEnvVars 替换 ${VAR} 形式的敏感配置
func replaceEnvVars(config Config) Config {
	config.Storage.Minio.AccessKey = expandEnv(config.Storage.Minio.AccessKey)
	config.Storage.Minio.SecretKey = expandEnv(config.Storage.Minio.SecretKey)
	return config
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
	}
	return s
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
