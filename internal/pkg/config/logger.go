package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoggerOptions 日志初始化参数
type LoggerOptions struct {
	Level     string
	Path      string // 非空时同时追加写入该文件
	Component string
}

var logLevel = new(slog.LevelVar)

// ParseLevel 解析日志级别，未知值回退为 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogLevel 运行时调整日志级别
func SetLogLevel(level string) {
	next := ParseLevel(level)
	if logLevel.Level() != next {
		logLevel.Set(next)
		slog.Info("日志级别已更新", "level", next.String())
	}
}

// SetupLogger 安装默认 logger；返回的 Closer 负责关闭日志文件（无文件时为 nil）
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	logLevel.Set(ParseLevel(opts.Level))

	var (
		w      io.Writer = os.Stdout
		closer io.Closer
		err    error
	)
	if path := strings.TrimSpace(opts.Path); path != "" {
		var f *os.File
		f, err = openLogFile(path)
		if err == nil {
			w = io.MultiWriter(os.Stdout, f)
			closer = f
		}
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)

	if err != nil {
		slog.Warn("日志文件不可用，仅输出到 stdout", "path", opts.Path, "error", err)
	}
	return closer, err
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return f, nil
}
