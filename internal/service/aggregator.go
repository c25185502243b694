package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// Percentage 进度百分比：floor(100*current/target)，封顶 100；target<=0 时为 0
func Percentage(current, target int64) int {
	if target <= 0 || current <= 0 {
		return 0
	}
	pct := current * 100 / target
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// Aggregator 从目标与贡献账本派生只读统计，不做任何写操作，也不重试
type Aggregator struct {
	targets       TargetRepository
	contributions ContributionRepository
}

// NewAggregator 创建聚合器
func NewAggregator(targets TargetRepository, contributions ContributionRepository) *Aggregator {
	return &Aggregator{targets: targets, contributions: contributions}
}

// TargetsWithProgress 返回 guild 的全部目标及缓存进度；tags 非空时只保留标签有交集的目标
func (a *Aggregator) TargetsWithProgress(ctx context.Context, tenantID string, tags schema.StringSet) ([]dto.TargetProgressDTO, error) {
	rows, err := a.targets.ListWithProgress(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("查询目标进度失败: %w", err)
	}

	out := make([]dto.TargetProgressDTO, 0, len(rows))
	for _, row := range rows {
		if len(tags) > 0 && !row.Tags.Intersects(tags) {
			continue
		}
		out = append(out, toTargetProgress(row))
	}
	return out, nil
}

// OverallStats 计算 guild 全部目标的总体统计
func (a *Aggregator) OverallStats(ctx context.Context, tenantID string) (*dto.OverallStatsDTO, error) {
	targets, err := a.TargetsWithProgress(ctx, tenantID, nil)
	if err != nil {
		return nil, err
	}
	stats := ComputeOverall(targets)
	return &stats, nil
}

// TopContributors 贡献排行，action 为空时统计全部目标
func (a *Aggregator) TopContributors(ctx context.Context, tenantID string, limit int, action string) ([]dto.ContributorDTO, error) {
	rows, err := a.contributions.TopContributors(ctx, tenantID, limit, action)
	if err != nil {
		return nil, fmt.Errorf("统计贡献排行失败: %w", err)
	}
	out := make([]dto.ContributorDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.ContributorDTO{UserID: r.UserID, Username: r.Username, TotalAmount: r.TotalAmount})
	}
	return out, nil
}

// Tenants 返回拥有目标的全部 guild，按 ID 排序
func (a *Aggregator) Tenants(ctx context.Context) ([]string, error) {
	tenants, err := a.targets.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询 guild 列表失败: %w", err)
	}
	if tenants == nil {
		tenants = []string{}
	}
	return tenants, nil
}

// History 目标最近的贡献流水，新的在前；目标不存在返回 ErrNotFound
func (a *Aggregator) History(ctx context.Context, tenantID, action, resource string, limit int) ([]dto.ContributionEntryDTO, error) {
	t, err := a.targets.FindByKey(ctx, tenantID, normalizeKey(action), normalizeKey(resource))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("目标 %s/%s", action, resource)
	}
	rows, err := a.contributions.ListByTarget(ctx, t.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询贡献流水失败: %w", err)
	}
	out := make([]dto.ContributionEntryDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, dto.ContributionEntryDTO{
			ID:        c.ID,
			UserID:    c.UserID,
			Username:  c.Username,
			Amount:    c.Amount,
			Location:  c.Location,
			Timestamp: c.Timestamp,
		})
	}
	return out, nil
}

// DashboardStats 渲染看板所需的数据：按标签过滤后的总体统计 + 全 guild 贡献排行
func (a *Aggregator) DashboardStats(ctx context.Context, tenantID string, tags schema.StringSet, topN int) (*dto.DashboardStatsDTO, error) {
	targets, err := a.TargetsWithProgress(ctx, tenantID, tags)
	if err != nil {
		return nil, err
	}
	top := []dto.ContributorDTO{}
	if topN > 0 {
		top, err = a.TopContributors(ctx, tenantID, topN, "")
		if err != nil {
			return nil, err
		}
	}
	return &dto.DashboardStatsDTO{
		TenantID:        tenantID,
		Tags:            []string(tags),
		Overall:         ComputeOverall(targets),
		TopContributors: top,
	}, nil
}

// ComputeOverall 对一组目标计算总体统计。
// 输入顺序决定同分时的最近/最远目标（先出现者胜）；按 action 的分组按名称排序。
func ComputeOverall(targets []dto.TargetProgressDTO) dto.OverallStatsDTO {
	stats := dto.OverallStatsDTO{
		TotalTargets: len(targets),
		PerAction:    []dto.ActionBreakdownDTO{},
	}
	if len(targets) == 0 {
		return stats
	}

	resources := make(map[string]struct{}, len(targets))
	groups := make(map[string]*dto.ActionBreakdownDTO)
	closest, furthest := -1, -1

	for i, t := range targets {
		stats.TotalCurrent += t.CurrentAmount
		stats.TotalTarget += t.TargetAmount
		resources[t.Resource] = struct{}{}

		g, ok := groups[t.Action]
		if !ok {
			g = &dto.ActionBreakdownDTO{Action: t.Action}
			groups[t.Action] = g
		}
		g.TargetCount++
		g.Current += t.CurrentAmount
		g.Target += t.TargetAmount

		if closest < 0 || t.Percentage > targets[closest].Percentage {
			closest = i
		}
		if furthest < 0 || t.Percentage < targets[furthest].Percentage {
			furthest = i
		}
	}

	stats.UniqueResourceTypes = len(resources)
	if stats.TotalTarget <= 0 {
		return stats
	}
	stats.OverallPercentage = Percentage(stats.TotalCurrent, stats.TotalTarget)

	for _, g := range groups {
		g.Percentage = Percentage(g.Current, g.Target)
		stats.PerAction = append(stats.PerAction, *g)
	}
	sort.Slice(stats.PerAction, func(i, j int) bool {
		return stats.PerAction[i].Action < stats.PerAction[j].Action
	})

	c, f := targets[closest], targets[furthest]
	stats.Closest = &c
	stats.Furthest = &f
	return stats
}

func toTargetProgress(row schema.TargetWithProgress) dto.TargetProgressDTO {
	tags := []string(row.Tags)
	if tags == nil {
		tags = []string{}
	}
	return dto.TargetProgressDTO{
		ID:            row.ID,
		TenantID:      row.TenantID,
		Action:        row.Action,
		Resource:      row.Resource,
		TargetAmount:  row.TargetAmount,
		CurrentAmount: row.CurrentAmount,
		Unit:          row.Unit,
		Tags:          tags,
		Percentage:    Percentage(row.CurrentAmount, row.TargetAmount),
	}
}
