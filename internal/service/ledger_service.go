package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/repository"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// DefaultUnit 找不到对应 ActionType 时目标使用的单位
const DefaultUnit = "units"

// LedgerService 贡献账本与目标的写路径。
// 每次成功写入后发布 tenant.changed，看板同步由订阅方异步完成。
type LedgerService struct {
	targets       TargetRepository
	contributions ContributionRepository
	actionTypes   ActionTypeRepository
	notifier      Notifier
	metrics       *observability.Metrics
}

// NewLedgerService 创建账本服务；notifier、metrics 可为 nil
func NewLedgerService(
	targets TargetRepository,
	contributions ContributionRepository,
	actionTypes ActionTypeRepository,
	notifier Notifier,
	metrics *observability.Metrics,
) *LedgerService {
	return &LedgerService{
		targets:       targets,
		contributions: contributions,
		actionTypes:   actionTypes,
		notifier:      notifier,
		metrics:       metrics,
	}
}

// AddContributionRequest 记录贡献的输入
type AddContributionRequest struct {
	TenantID string
	Action   string
	Resource string
	Amount   int64
	Location string
	UserID   string
	Username string
}

// AddContribution 记录一笔贡献并原子递增目标进度
func (s *LedgerService) AddContribution(ctx context.Context, req AddContributionRequest) (*dto.ContributionResultDTO, error) {
	action, resource := normalizeKey(req.Action), normalizeKey(req.Resource)
	switch {
	case strings.TrimSpace(req.TenantID) == "":
		return nil, apperr.Invalid("tenant 不能为空")
	case action == "" || resource == "":
		return nil, apperr.Invalid("action/resource 不能为空")
	case req.Amount <= 0:
		return nil, apperr.Invalid("贡献数量必须为正整数: %d", req.Amount)
	case strings.TrimSpace(req.UserID) == "":
		return nil, apperr.Invalid("贡献者不能为空")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = req.UserID
	}

	res, err := s.contributions.Add(ctx, req.TenantID, action, resource, &schema.Contribution{
		UserID:   req.UserID,
		Username: username,
		Amount:   req.Amount,
		Location: strings.TrimSpace(req.Location),
	})
	s.metrics.ObserveMutation("contribution", err)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveContribution(action, req.Amount)

	slog.Info("记录贡献",
		"tenant", req.TenantID, "action", action, "resource", resource,
		"user", req.UserID, "amount", req.Amount, "current", res.CurrentAmount)
	s.notify(req.TenantID, "contribution")

	return &dto.ContributionResultDTO{
		TargetID:         res.Target.ID,
		NewCurrentAmount: res.CurrentAmount,
		TargetAmount:     res.Target.TargetAmount,
		Unit:             res.Target.Unit,
		Percentage:       Percentage(res.CurrentAmount, res.Target.TargetAmount),
	}, nil
}

// TargetRequest 创建或更新目标的输入。
// Unit 为 nil 表示未指定：新建时取 ActionType 的单位，更新时保留原值。
// Tags 为 nil 表示未指定：新建时为空集合，更新时保留原值。
type TargetRequest struct {
	TenantID  string
	Action    string
	Resource  string
	Amount    int64
	Unit      *string
	Tags      []string
	CreatedBy string
}

// CreateOrUpdateTarget 新建目标（同时初始化进度为 0），已存在时原地更新数量/单位/标签
func (s *LedgerService) CreateOrUpdateTarget(ctx context.Context, req TargetRequest) (int64, error) {
	action, resource := normalizeKey(req.Action), normalizeKey(req.Resource)
	switch {
	case strings.TrimSpace(req.TenantID) == "":
		return 0, apperr.Invalid("tenant 不能为空")
	case action == "" || resource == "":
		return 0, apperr.Invalid("action/resource 不能为空")
	case req.Amount <= 0:
		return 0, apperr.Invalid("目标数量必须为正整数: %d", req.Amount)
	}

	var unit string
	if req.Unit != nil {
		unit = strings.TrimSpace(*req.Unit)
		if unit == "" {
			return 0, apperr.Invalid("单位不能为空字符串")
		}
	}

	var tags schema.StringSet
	if req.Tags != nil {
		set, err := schema.NewStringSet(req.Tags)
		if err != nil {
			return 0, apperr.Invalid("标签格式错误: %v", err)
		}
		tags = set
	}

	existing, err := s.targets.FindByKey(ctx, req.TenantID, action, resource)
	if err != nil {
		return 0, err
	}

	if existing != nil {
		if unit == "" {
			unit = existing.Unit
		}
		err := s.targets.Update(ctx, existing.ID, repository.TargetUpdate{
			TargetAmount: req.Amount,
			Unit:         unit,
			Tags:         tags,
		})
		s.metrics.ObserveMutation("target_update", err)
		if err != nil {
			return 0, err
		}
		slog.Info("更新目标", "tenant", req.TenantID, "target_id", existing.ID, "amount", req.Amount, "unit", unit)
		s.notify(req.TenantID, "target")
		return existing.ID, nil
	}

	if unit == "" {
		unit, err = s.defaultUnit(ctx, action)
		if err != nil {
			return 0, err
		}
	}
	if tags == nil {
		tags = schema.StringSet{}
	}

	target := &schema.Target{
		TenantID:     req.TenantID,
		Action:       action,
		Resource:     resource,
		TargetAmount: req.Amount,
		Unit:         unit,
		Tags:         tags,
		CreatedBy:    req.CreatedBy,
	}
	err = s.targets.Create(ctx, target)
	s.metrics.ObserveMutation("target_create", err)
	if err != nil {
		return 0, err
	}
	slog.Info("创建目标", "tenant", req.TenantID, "target_id", target.ID, "action", action, "resource", resource, "amount", req.Amount)
	s.notify(req.TenantID, "target")
	return target.ID, nil
}

// ResetProgress 清空目标的贡献并把进度归零；对没有贡献的目标是空操作
func (s *LedgerService) ResetProgress(ctx context.Context, targetID int64) error {
	target, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	err = s.contributions.ResetProgress(ctx, targetID)
	s.metrics.ObserveMutation("reset", err)
	if err != nil {
		return err
	}
	slog.Info("重置目标进度", "tenant", target.TenantID, "target_id", targetID)
	s.notify(target.TenantID, "reset")
	return nil
}

// DeleteTarget 删除目标及其进度与贡献
func (s *LedgerService) DeleteTarget(ctx context.Context, targetID int64) error {
	target, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	err = s.targets.Delete(ctx, targetID)
	s.metrics.ObserveMutation("target_delete", err)
	if err != nil {
		return err
	}
	slog.Info("删除目标", "tenant", target.TenantID, "target_id", targetID)
	s.notify(target.TenantID, "target")
	return nil
}

// FindTarget 按 (tenant, action, resource) 查询目标，不存在返回 ErrNotFound
func (s *LedgerService) FindTarget(ctx context.Context, tenantID, action, resource string) (*schema.Target, error) {
	t, err := s.targets.FindByKey(ctx, tenantID, normalizeKey(action), normalizeKey(resource))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("目标 %s/%s", action, resource)
	}
	return t, nil
}

func (s *LedgerService) defaultUnit(ctx context.Context, action string) (string, error) {
	if s.actionTypes == nil {
		return DefaultUnit, nil
	}
	at, err := s.actionTypes.GetByName(ctx, action)
	if err != nil {
		return "", fmt.Errorf("查询动作类型失败: %w", err)
	}
	if at == nil || strings.TrimSpace(at.Unit) == "" {
		return DefaultUnit, nil
	}
	return at.Unit, nil
}

func (s *LedgerService) notify(tenantID, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(eventbus.TenantChanged(tenantID, reason))
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
