// Package httpapi 提供只读统计、手动同步与事件流的运维 HTTP 接口。
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/service"
)

// Deps HTTP 层依赖
type Deps struct {
	Name    string
	Version string

	Aggregator *service.Aggregator
	Dashboards *service.DashboardService
	Hub        *eventbus.Hub
	Metrics    *observability.Metrics

	// Status 返回运行状态快照；为空时 /api/status 返回 404
	Status func(ctx context.Context) dto.StatusDTO
}

// Options HTTP 监听参数
type Options struct {
	ListenAddr string // e.g. "127.0.0.1:8390"
}

// Server 运维 HTTP 服务
type Server struct {
	deps      Deps
	opts      Options
	echo      *echo.Echo
	startTime time.Time
}

// New 创建服务并注册路由（不监听）
func New(deps Deps, opts Options) *Server {
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = "127.0.0.1:8390"
	}
	if deps.Hub == nil {
		deps.Hub = eventbus.NewHub()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{deps: deps, opts: opts, echo: e, startTime: time.Now()}

	e.Use(middleware.Recover())
	e.Use(requestID)
	e.Use(deps.Metrics.Middleware())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	e.GET("/api/status", s.handleStatus)
	e.GET("/api/events", s.handleSSE)
	e.GET("/api/tenants", s.handleTenants)

	tenants := e.Group("/api/tenants/:tenant")
	tenants.GET("/targets", s.handleTargets)
	tenants.GET("/targets/:action/:resource/history", s.handleHistory)
	tenants.GET("/stats", s.handleStats)
	tenants.GET("/leaderboard", s.handleLeaderboard)
	tenants.GET("/dashboard", s.handleDashboard)
	tenants.POST("/sync", s.handleSync)

	return s
}

// Handler 返回路由（测试用）
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run 监听并服务，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", s.opts.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		// 请求上下文随进程退出取消，SSE 连接才能结束
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	slog.Info("运维 HTTP 已启动", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭 http server 失败: %w", err)
		}
		slog.Info("运维 HTTP 已关闭")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server 异常退出: %w", err)
	}
}

// requestID 为每个请求生成 ID，并把带 ID 的 logger 放进上下文
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		c.Set("logger", slog.Default().With("request_id", id))
		return next(c)
	}
}

func loggerFrom(c echo.Context) *slog.Logger {
	if l, ok := c.Get("logger").(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
