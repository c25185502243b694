package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuqie6/ResourceTally/internal/bootstrap"
	"github.com/yuqie6/ResourceTally/internal/pkg/config"
)

func main() {
	cfgPath := flag.String("c", "", "配置文件路径")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := *cfgPath
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := config.WriteFile(path, config.Default()); err != nil {
				slog.Warn("写入默认配置失败", "path", path, "error", err)
			} else {
				slog.Info("已生成默认配置", "path", path)
			}
		}
	}

	rt, err := bootstrap.NewBotRuntime(path)
	if err != nil {
		slog.Error("启动失败", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	slog.Info("Tally Bot 启动中...", "name", rt.Cfg.App.Name, "version", rt.Cfg.App.Version)
	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("运行异常退出", "error", err)
		rt.Close()
		os.Exit(1)
	}
	slog.Info("Tally Bot 已退出")
}
