package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultHistoryLimit     = 20
	maxHistoryLimit         = 200
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"ok":         true,
		"name":       s.deps.Name,
		"version":    s.deps.Version,
		"started_at": s.startTime.Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	if s.deps.Status == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "status not available"})
	}
	return c.JSON(http.StatusOK, s.deps.Status(c.Request().Context()))
}

func (s *Server) handleTargets(c echo.Context) error {
	tags, err := tagsParam(c)
	if err != nil {
		return writeError(c, err)
	}
	items, err := s.deps.Aggregator.TargetsWithProgress(c.Request().Context(), c.Param("tenant"), tags)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleTenants(c echo.Context) error {
	tenants, err := s.deps.Aggregator.Tenants(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tenants)
}

func (s *Server) handleHistory(c echo.Context) error {
	limit, err := limitParam(c, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		return writeError(c, err)
	}
	rows, err := s.deps.Aggregator.History(c.Request().Context(), c.Param("tenant"), c.Param("action"), c.Param("resource"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.deps.Aggregator.OverallStats(c.Request().Context(), c.Param("tenant"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	limit, err := limitParam(c, defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		return writeError(c, err)
	}
	action := strings.ToLower(strings.TrimSpace(c.QueryParam("action")))
	rows, err := s.deps.Aggregator.TopContributors(c.Request().Context(), c.Param("tenant"), limit, action)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleDashboard(c echo.Context) error {
	tags, err := tagsParam(c)
	if err != nil {
		return writeError(c, err)
	}
	doc, err := s.deps.Dashboards.Preview(c.Request().Context(), c.Param("tenant"), tags, c.QueryParam("title"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleSync(c echo.Context) error {
	report, err := s.deps.Dashboards.SyncAll(c.Request().Context(), c.Param("tenant"))
	if err != nil {
		return writeError(c, err)
	}
	loggerFrom(c).Info("手动触发看板同步", "tenant", c.Param("tenant"), "updated", report.Updated, "pruned", report.Pruned)
	return c.JSON(http.StatusOK, report)
}

func tagsParam(c echo.Context) (schema.StringSet, error) {
	tags, err := schema.ParseTagList(c.QueryParam("tags"))
	if err != nil {
		return nil, apperr.Invalid("标签格式错误: %v", err)
	}
	return tags, nil
}

// statusFor 业务错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrDependencyInUse):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError 输出面向用户的错误消息，详细原因只写日志
func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	log := loggerFrom(c)
	if status >= http.StatusInternalServerError {
		log.Error("请求失败", "path", c.Path(), "status", status, "error", err)
	} else {
		log.Debug("请求被拒绝", "path", c.Path(), "status", status, "error", err)
	}
	return c.JSON(status, echo.Map{"error": apperr.UserMessage(err)})
}

// limitParam 解析 ?limit=，缺省取 def，超过 upper 截断
func limitParam(c echo.Context, def, upper int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Invalid("limit 必须为正整数: %q", raw)
	}
	return min(n, upper), nil
}
