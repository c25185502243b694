package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/render"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// DashboardOptions 看板渲染参数
type DashboardOptions struct {
	Title           string
	BarWidth        int
	TopContributors int
	ShowUpdatedAt   bool // 页脚带更新时间；开启后重复同步的输出随时间变化
}

// DashboardService 看板登记与同步。
// SyncAll 是批量、不中断的同步：单个看板失败只记日志；RefreshOne 则把失败交还调用方。
type DashboardService struct {
	dashboards DashboardRepository
	agg        *Aggregator
	surface    Surface
	notifier   Notifier
	metrics    *observability.Metrics
	opts       DashboardOptions
	now        func() time.Time

	mu       sync.Mutex
	lastSync *dto.SyncReportDTO
}

// NewDashboardService 创建看板服务；surface 为空时只能做登记与预览
func NewDashboardService(
	dashboards DashboardRepository,
	agg *Aggregator,
	surface Surface,
	notifier Notifier,
	metrics *observability.Metrics,
	opts DashboardOptions,
) *DashboardService {
	if opts.TopContributors <= 0 {
		opts.TopContributors = 5
	}
	return &DashboardService{
		dashboards: dashboards,
		agg:        agg,
		surface:    surface,
		notifier:   notifier,
		metrics:    metrics,
		opts:       opts,
		now:        time.Now,
	}
}

// SetSurface 注入展示面（平台连接建立后调用）
func (s *DashboardService) SetSurface(surface Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
}

func (s *DashboardService) currentSurface() (Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return nil, fmt.Errorf("%w: 展示面未配置", apperr.ErrTransient)
	}
	return s.surface, nil
}

// Register 登记已有展示面；sourceTenantID 为空或等于 tenantID 时为本地看板
func (s *DashboardService) Register(ctx context.Context, surfaceID, channelID, tenantID, sourceTenantID string) (int64, error) {
	d, err := newDashboard(surfaceID, channelID, tenantID, sourceTenantID)
	if err != nil {
		return 0, err
	}
	return s.dashboards.Register(ctx, d)
}

// ListAll 获取全部看板，tenantID 非空时只返回该 guild 拥有的看板
func (s *DashboardService) ListAll(ctx context.Context, tenantID string) ([]schema.Dashboard, error) {
	return s.dashboards.ListAll(ctx, tenantID)
}

// Remove 删除看板登记，幂等
func (s *DashboardService) Remove(ctx context.Context, surfaceID string) error {
	return s.dashboards.Remove(ctx, surfaceID)
}

// RemoveByChannel 删除频道下全部看板登记
func (s *DashboardService) RemoveByChannel(ctx context.Context, channelID string) (int64, error) {
	n, err := s.dashboards.RemoveByChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("按频道删除看板", "channel", channelID, "count", n)
	}
	return n, nil
}

// CreateDashboardRequest 新建看板的输入
type CreateDashboardRequest struct {
	OwnerTenantID  string
	ChannelID      string
	SourceTenantID string
	Tags           []string
	Title          string
	CreatedBy      string
}

// CreateDashboard 渲染当前统计、发布到频道并登记
func (s *DashboardService) CreateDashboard(ctx context.Context, req CreateDashboardRequest) (*schema.Dashboard, error) {
	d, err := newDashboard("pending", req.ChannelID, req.OwnerTenantID, req.SourceTenantID)
	if err != nil {
		return nil, err
	}
	tags, err := schema.NewStringSet(req.Tags)
	if err != nil {
		return nil, apperr.Invalid("标签格式错误: %v", err)
	}
	d.Tags = tags
	d.Title = strings.TrimSpace(req.Title)
	d.CreatedBy = req.CreatedBy

	surface, err := s.currentSurface()
	if err != nil {
		return nil, err
	}
	doc, err := s.renderDashboard(ctx, d, nil)
	if err != nil {
		return nil, err
	}
	surfaceID, err := surface.Post(ctx, d.ChannelID, doc)
	if err != nil {
		return nil, fmt.Errorf("发布看板失败: %w", err)
	}
	d.DisplaySurfaceID = surfaceID

	if _, err := s.dashboards.Register(ctx, d); err != nil {
		slog.Error("看板已发布但登记失败", "channel", d.ChannelID, "surface", surfaceID, "error", err)
		return nil, err
	}
	scope := d.Scope()
	slog.Info("创建看板", "owner", scope.Owner, "rendered", scope.Rendered, "channel", d.ChannelID, "surface", surfaceID)
	return d, nil
}

// Preview 渲染 guild 的看板文档但不发布
func (s *DashboardService) Preview(ctx context.Context, tenantID string, tags []string, title string) (dto.DisplayDocument, error) {
	set, err := schema.NewStringSet(tags)
	if err != nil {
		return dto.DisplayDocument{}, apperr.Invalid("标签格式错误: %v", err)
	}
	d := &schema.Dashboard{TenantID: tenantID, Tags: set, Title: title}
	return s.renderDashboard(ctx, d, nil)
}

// RefreshOne 手动刷新单个看板；任何失败都返回给调用方。
// 展示面已不存在时删除登记并返回 ErrNotFound（同时满足 errors.Is(err, ErrSurfaceGone)）。
func (s *DashboardService) RefreshOne(ctx context.Context, surfaceID string) error {
	d, err := s.dashboards.GetBySurface(ctx, surfaceID)
	if err != nil {
		return err
	}
	surface, err := s.currentSurface()
	if err != nil {
		return err
	}

	if err := surface.Resolve(ctx, d.ChannelID, d.DisplaySurfaceID); err != nil {
		return s.handleRefreshError(ctx, d, err)
	}
	doc, err := s.renderDashboard(ctx, d, nil)
	if err != nil {
		return err
	}
	if err := surface.Push(ctx, d.ChannelID, d.DisplaySurfaceID, doc); err != nil {
		return s.handleRefreshError(ctx, d, err)
	}
	slog.Debug("手动刷新看板", "surface", surfaceID, "rendered", d.Scope().Rendered)
	return nil
}

func (s *DashboardService) handleRefreshError(ctx context.Context, d *schema.Dashboard, err error) error {
	if !errors.Is(err, ErrSurfaceGone) {
		return fmt.Errorf("刷新看板 %s 失败: %w", d.DisplaySurfaceID, err)
	}
	if rmErr := s.dashboards.Remove(ctx, d.DisplaySurfaceID); rmErr != nil {
		slog.Warn("删除失效看板失败", "surface", d.DisplaySurfaceID, "error", rmErr)
	}
	return fmt.Errorf("%w: 看板 %s: %w", apperr.ErrNotFound, d.DisplaySurfaceID, ErrSurfaceGone)
}

type syncOutcome int

const (
	outcomeUpdated syncOutcome = iota
	outcomePruned
	outcomeSkipped
)

// SyncAll 批量同步受 tenantID 影响的全部看板（归属于它或以它为数据源）；tenantID 为空时同步全部。
// 单个看板失败不会中断其余看板：展示面不存在则删除登记，其余错误记日志后跳过。
// 只有看板列表本身读取失败时返回错误。
func (s *DashboardService) SyncAll(ctx context.Context, tenantID string) (*dto.SyncReportDTO, error) {
	start := s.now()
	report := &dto.SyncReportDTO{
		SyncID:    uuid.NewString(),
		TenantID:  tenantID,
		StartedAt: start.UnixMilli(),
	}
	logger := slog.With("sync_id", report.SyncID, "tenant", tenantID)

	var (
		list []schema.Dashboard
		err  error
	)
	if tenantID == "" {
		list, err = s.dashboards.ListAll(ctx, "")
	} else {
		list, err = s.dashboards.ListAffected(ctx, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询待同步看板失败: %w", err)
	}

	surface, err := s.currentSurface()
	if err != nil {
		return nil, err
	}

	cache := make(map[string]*dto.DashboardStatsDTO)
	for i := range list {
		if ctx.Err() != nil {
			report.Skipped += len(list) - i
			logger.Warn("看板同步被取消", "remaining", len(list)-i)
			break
		}
		switch s.syncOne(ctx, logger, surface, &list[i], cache) {
		case outcomeUpdated:
			report.Updated++
		case outcomePruned:
			report.Pruned++
		default:
			report.Skipped++
		}
	}

	elapsed := s.now().Sub(start)
	report.Duration = elapsed.Milliseconds()
	s.metrics.ObserveSync(report.Updated, report.Pruned, report.Skipped, elapsed)

	s.mu.Lock()
	s.lastSync = report
	s.mu.Unlock()

	if len(list) > 0 {
		logger.Info("看板同步完成", "updated", report.Updated, "pruned", report.Pruned, "skipped", report.Skipped, "ms", report.Duration)
	}
	if s.notifier != nil {
		s.notifier.Publish(eventbus.Event{
			Type: eventbus.TypeSyncCompleted,
			Data: map[string]any{
				"sync_id":   report.SyncID,
				"tenant_id": tenantID,
				"updated":   report.Updated,
				"pruned":    report.Pruned,
				"skipped":   report.Skipped,
			},
		})
	}
	return report, nil
}

// syncOne 同步单个看板；失败被隔离在本次迭代内
func (s *DashboardService) syncOne(
	ctx context.Context,
	logger *slog.Logger,
	surface Surface,
	d *schema.Dashboard,
	cache map[string]*dto.DashboardStatsDTO,
) (outcome syncOutcome) {
	log := logger.With("surface", d.DisplaySurfaceID, "channel", d.ChannelID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("同步看板时发生 panic，已跳过", "panic", r)
			outcome = outcomeSkipped
		}
	}()

	if err := surface.Resolve(ctx, d.ChannelID, d.DisplaySurfaceID); err != nil {
		return s.onSyncError(ctx, log, d, "解析展示面失败", err)
	}
	doc, err := s.renderDashboard(ctx, d, cache)
	if err != nil {
		log.Warn("计算看板统计失败，已跳过", "error", err)
		return outcomeSkipped
	}
	if err := surface.Push(ctx, d.ChannelID, d.DisplaySurfaceID, doc); err != nil {
		return s.onSyncError(ctx, log, d, "推送看板失败", err)
	}
	return outcomeUpdated
}

func (s *DashboardService) onSyncError(ctx context.Context, log *slog.Logger, d *schema.Dashboard, msg string, err error) syncOutcome {
	if !errors.Is(err, ErrSurfaceGone) {
		log.Warn(msg+"，已跳过", "error", err)
		return outcomeSkipped
	}
	if rmErr := s.dashboards.Remove(ctx, d.DisplaySurfaceID); rmErr != nil {
		log.Warn("删除失效看板失败", "error", rmErr)
		return outcomeSkipped
	}
	log.Info("展示面已不存在，删除看板登记")
	return outcomePruned
}

// renderDashboard 计算统计并渲染；cache 非空时同一 (渲染 guild, 标签) 只计算一次
func (s *DashboardService) renderDashboard(ctx context.Context, d *schema.Dashboard, cache map[string]*dto.DashboardStatsDTO) (dto.DisplayDocument, error) {
	scope := d.Scope()
	key := scope.Rendered + "|" + d.Tags.String()

	stats, ok := cache[key]
	if !ok {
		var err error
		stats, err = s.agg.DashboardStats(ctx, scope.Rendered, d.Tags, s.opts.TopContributors)
		if err != nil {
			return dto.DisplayDocument{}, err
		}
		if cache != nil {
			cache[key] = stats
		}
	}

	title := d.Title
	if title == "" {
		title = s.opts.Title
	}
	opts := render.Options{
		Title:     title,
		TagFilter: []string(d.Tags),
		BarWidth:  s.opts.BarWidth,
	}
	if scope.Shared() {
		opts.SourceAttribution = scope.Rendered
	}
	if s.opts.ShowUpdatedAt {
		opts.RenderedAt = s.now()
	}
	return render.Dashboard(*stats, opts), nil
}

// LastSync 最近一次批量同步的结果，未同步过时为 nil
func (s *DashboardService) LastSync() *dto.SyncReportDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSync == nil {
		return nil
	}
	cp := *s.lastSync
	return &cp
}

func newDashboard(surfaceID, channelID, tenantID, sourceTenantID string) (*schema.Dashboard, error) {
	surfaceID, channelID, tenantID = strings.TrimSpace(surfaceID), strings.TrimSpace(channelID), strings.TrimSpace(tenantID)
	if surfaceID == "" || channelID == "" || tenantID == "" {
		return nil, apperr.Invalid("看板的展示面、频道与 guild 均不能为空")
	}
	d := &schema.Dashboard{DisplaySurfaceID: surfaceID, ChannelID: channelID, TenantID: tenantID, Tags: schema.StringSet{}}
	if src := strings.TrimSpace(sourceTenantID); src != "" && src != tenantID {
		d.SourceTenantID = &src
	}
	return d, nil
}
