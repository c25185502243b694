package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/render"
	"github.com/yuqie6/ResourceTally/internal/repository"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// ReportPoster 日报的发布出口
type ReportPoster interface {
	Post(ctx context.Context, channelID string, doc dto.DisplayDocument) (string, error)
}

// ReportService 每日自动日报：每个 guild 每天最多发布一次
type ReportService struct {
	settings      SettingRepository
	contributions ContributionRepository
	agg           *Aggregator
	poster        ReportPoster
	metrics       *observability.Metrics
	loc           *time.Location
	barWidth      int
}

// NewReportService 创建日报服务；loc 为空时使用本地时区
func NewReportService(
	settings SettingRepository,
	contributions ContributionRepository,
	agg *Aggregator,
	poster ReportPoster,
	metrics *observability.Metrics,
	loc *time.Location,
	barWidth int,
) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{
		settings:      settings,
		contributions: contributions,
		agg:           agg,
		poster:        poster,
		metrics:       metrics,
		loc:           loc,
		barWidth:      barWidth,
	}
}

// SetPoster 注入发布出口（平台连接建立后调用）
func (s *ReportService) SetPoster(p ReportPoster) {
	s.poster = p
}

// Get 读取 guild 的日报设置，未设置时返回禁用的零值
func (s *ReportService) Get(ctx context.Context, tenantID string) (schema.AutoReportSetting, error) {
	row, err := s.settings.Get(ctx, tenantID, schema.SettingKeyAutoReport)
	if err != nil || row == nil {
		return schema.AutoReportSetting{}, err
	}
	return schema.ParseAutoReportSetting(row.SettingValue)
}

// Configure 保存 guild 的日报设置；未指定 LastReportDate 时沿用旧值
func (s *ReportService) Configure(ctx context.Context, tenantID string, setting schema.AutoReportSetting) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperr.Invalid("tenant 不能为空")
	}
	if err := setting.Validate(); err != nil {
		return apperr.Invalid("%v", err)
	}
	if t, err := time.Parse("15:04", setting.Time); err == nil {
		setting.Time = t.Format("15:04")
	}
	if setting.LastReportDate == "" {
		prev, err := s.Get(ctx, tenantID)
		if err != nil {
			return err
		}
		setting.LastReportDate = prev.LastReportDate
	}
	return s.save(ctx, tenantID, setting)
}

// Build 生成 guild 某日（YYYY-MM-DD）的日报文档
func (s *ReportService) Build(ctx context.Context, tenantID, date string) (dto.DisplayDocument, error) {
	start, end, err := repository.DayRange(date, s.loc)
	if err != nil {
		return dto.DisplayDocument{}, apperr.Invalid("%v", err)
	}
	rows, err := s.contributions.SumByTargetInRange(ctx, tenantID, start, end)
	if err != nil {
		return dto.DisplayDocument{}, err
	}
	totals := make([]dto.DayTotalDTO, 0, len(rows))
	for _, r := range rows {
		totals = append(totals, dto.DayTotalDTO{
			TargetID:     r.TargetID,
			Action:       r.Action,
			Resource:     r.Resource,
			Unit:         r.Unit,
			Amount:       r.TotalAmount,
			Contributors: r.Contributors,
		})
	}
	overall, err := s.agg.OverallStats(ctx, tenantID)
	if err != nil {
		return dto.DisplayDocument{}, err
	}
	return render.DailyReport(date, totals, *overall, s.barWidth), nil
}

// Tick 检查全部 guild 的日报设置，到点且当天未发布的发布一次，返回发布数量。
// 单个 guild 失败只记日志，不影响其他 guild。
func (s *ReportService) Tick(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.settings.ListByKey(ctx, schema.SettingKeyAutoReport)
	if err != nil {
		return 0, fmt.Errorf("读取日报设置失败: %w", err)
	}

	local := now.In(s.loc)
	today := local.Format("2006-01-02")
	clock := local.Format("15:04")

	posted := 0
	for _, row := range rows {
		setting, err := schema.ParseAutoReportSetting(row.SettingValue)
		if err != nil {
			slog.Warn("日报设置无法解析，已跳过", "tenant", row.TenantID, "error", err)
			continue
		}
		if !setting.Enabled || setting.LastReportDate == today || clock < setting.Time {
			continue
		}
		if err := s.postReport(ctx, row.TenantID, today, setting); err != nil {
			slog.Warn("发布日报失败", "tenant", row.TenantID, "date", today, "error", err)
			continue
		}
		posted++
	}
	return posted, nil
}

func (s *ReportService) postReport(ctx context.Context, tenantID, date string, setting schema.AutoReportSetting) error {
	if s.poster == nil {
		return fmt.Errorf("%w: 日报发布出口未配置", apperr.ErrTransient)
	}
	doc, err := s.Build(ctx, tenantID, date)
	if err != nil {
		return err
	}
	if _, err := s.poster.Post(ctx, setting.ChannelID, doc); err != nil {
		return err
	}
	s.metrics.ObserveReport()

	setting.LastReportDate = date
	if err := s.save(ctx, tenantID, setting); err != nil {
		// 已发布但未记录日期：下一轮可能重复发布
		return fmt.Errorf("记录日报日期失败: %w", err)
	}
	slog.Info("日报已发布", "tenant", tenantID, "date", date, "channel", setting.ChannelID)
	return nil
}

func (s *ReportService) save(ctx context.Context, tenantID string, setting schema.AutoReportSetting) error {
	raw, err := setting.JSON()
	if err != nil {
		return err
	}
	return s.settings.Upsert(ctx, &schema.Setting{
		TenantID:     tenantID,
		SettingKey:   schema.SettingKeyAutoReport,
		SettingValue: raw,
	})
}

// Run 按 interval 周期调用 Tick，直到 ctx 取消
func (s *ReportService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := s.Tick(ctx, now); err != nil && ctx.Err() == nil {
				slog.Warn("日报检查失败", "error", err)
			}
		}
	}
}
