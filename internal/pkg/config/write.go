package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// Default 返回全部默认值组成的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
			"timezone":  cfg.App.Timezone,
		},
		"storage": map[string]any{
			"driver":                cfg.Storage.Driver,
			"db_path":               cfg.Storage.DBPath,
			"dsn":                   cfg.Storage.DSN,
			"max_idle_conns":        cfg.Storage.MaxIdleConns,
			"max_open_conns":        cfg.Storage.MaxOpenConns,
			"conn_max_lifetime_sec": cfg.Storage.ConnMaxLifetime,
		},
		"discord": map[string]any{
			"token":  cfg.Discord.Token,
			"app_id": cfg.Discord.AppID,
		},
		"dashboard": map[string]any{
			"title":            cfg.Dashboard.Title,
			"bar_width":        cfg.Dashboard.BarWidth,
			"top_contributors": cfg.Dashboard.TopContributors,
			"show_updated_at":  cfg.Dashboard.ShowUpdatedAt,
		},
		"report": map[string]any{
			"check_interval_sec": cfg.Report.CheckIntervalSec,
		},
		"reconcile": map[string]any{
			"interval_min": cfg.Reconcile.IntervalMin,
			"auto_fix":     cfg.Reconcile.AutoFix,
		},
		"http": map[string]any{
			"enabled":     cfg.HTTP.Enabled,
			"listen_addr": cfg.HTTP.ListenAddr,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
