package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yuqie6/ResourceTally/internal/pkg/buildinfo"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Report    ReportConfig    `mapstructure:"report"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	HTTP      HTTPConfig      `mapstructure:"http"`

	path string
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	Timezone string `mapstructure:"timezone"` // 日报使用的时区，空表示本地
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver          string `mapstructure:"driver"` // sqlite | postgres
	DBPath          string `mapstructure:"db_path"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_sec"`
}

// DiscordConfig Discord 配置
type DiscordConfig struct {
	Token string `mapstructure:"token"`
	AppID string `mapstructure:"app_id"`
}

// DashboardConfig 看板渲染配置
type DashboardConfig struct {
	Title           string `mapstructure:"title"`
	BarWidth        int    `mapstructure:"bar_width"`
	TopContributors int    `mapstructure:"top_contributors"`
	ShowUpdatedAt   bool   `mapstructure:"show_updated_at"`
}

// ReportConfig 自动日报配置
type ReportConfig struct {
	CheckIntervalSec int `mapstructure:"check_interval_sec"`
}

// ReconcileConfig 对账配置
type ReconcileConfig struct {
	IntervalMin int  `mapstructure:"interval_min"` // 0 表示不定期对账
	AutoFix     bool `mapstructure:"auto_fix"`
}

// HTTPConfig 运维 HTTP 配置
type HTTPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Path 实际加载的配置文件路径，未找到文件时为空
func (c *Config) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// ConnMaxLifetimeDuration 连接最长存活时间
func (s StorageConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(s.ConnMaxLifetime) * time.Second
}

// Location 解析日报时区，非法时回退到本地时区
func (a AppConfig) Location() *time.Location {
	if strings.TrimSpace(a.Timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		slog.Warn("时区配置无效，使用本地时区", "timezone", a.Timezone, "error", err)
		return time.Local
	}
	return loc
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	// .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("加载 .env 失败", "error", err)
	}

	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.path = v.ConfigFileUsed()

	// 处理环境变量占位符
	cfg.Discord.Token = expandEnv(cfg.Discord.Token)
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)

	// 处理相对路径
	if cfg.Storage.DBPath != ":memory:" {
		cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	}
	if cfg.App.LogPath != "" {
		cfg.App.LogPath = resolvePath(cfg.App.LogPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置组合
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.driver=postgres 时必须配置 storage.dsn")
		}
	default:
		return fmt.Errorf("不支持的 storage.driver: %s", c.Storage.Driver)
	}
	if c.Dashboard.BarWidth < 5 || c.Dashboard.BarWidth > 30 {
		return fmt.Errorf("dashboard.bar_width 必须在 5-30 之间: %d", c.Dashboard.BarWidth)
	}
	return nil
}

// Watch 监听配置文件变化，变化后重新解析并回调。
// 只有找到配置文件时才生效；解析失败的变更被忽略。
func Watch(configPath string, onChange func(*Config)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("配置变更解析失败，保持原配置", "path", e.Name, "error", err)
			return
		}
		slog.Info("配置文件已变更", "path", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "tally-bot")
	v.SetDefault("app.version", buildinfo.Version)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")
	v.SetDefault("app.timezone", "")

	// Storage
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/tally.db")
	v.SetDefault("storage.max_idle_conns", 5)
	v.SetDefault("storage.max_open_conns", 20)
	v.SetDefault("storage.conn_max_lifetime_sec", 1800)

	// Discord
	v.SetDefault("discord.token", "${DISCORD_TOKEN}")

	// Dashboard
	v.SetDefault("dashboard.title", "Resource Progress")
	v.SetDefault("dashboard.bar_width", 12)
	v.SetDefault("dashboard.top_contributors", 5)
	v.SetDefault("dashboard.show_updated_at", false)

	// Workers
	v.SetDefault("report.check_interval_sec", 60)
	v.SetDefault("reconcile.interval_min", 60)
	v.SetDefault("reconcile.auto_fix", false)

	// HTTP
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen_addr", "127.0.0.1:8390")
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}
