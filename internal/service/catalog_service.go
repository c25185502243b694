package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// CatalogService 动作类型（全局）与资源（按 guild）的管理
type CatalogService struct {
	actionTypes ActionTypeRepository
	resources   ResourceRepository
	notifier    Notifier
	metrics     *observability.Metrics
}

// NewCatalogService 创建目录服务
func NewCatalogService(actionTypes ActionTypeRepository, resources ResourceRepository, notifier Notifier, metrics *observability.Metrics) *CatalogService {
	return &CatalogService{actionTypes: actionTypes, resources: resources, notifier: notifier, metrics: metrics}
}

// ActionTypeInput 动作类型的可编辑字段
type ActionTypeInput struct {
	Name        string
	DisplayName string
	Unit        string
	Emoji       string
}

func (in ActionTypeInput) normalize() (ActionTypeInput, error) {
	in.Name = normalizeKey(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Emoji = strings.TrimSpace(in.Emoji)
	if in.Name == "" || strings.ContainsAny(in.Name, " \t,") {
		return in, apperr.Invalid("动作类型系统名非法: %q", in.Name)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Name
	}
	if in.Unit == "" {
		return in, apperr.Invalid("单位不能为空")
	}
	return in, nil
}

// CreateActionType 创建动作类型，系统名重复返回 ErrConflict
func (s *CatalogService) CreateActionType(ctx context.Context, in ActionTypeInput) (*schema.ActionType, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	at := &schema.ActionType{Name: in.Name, DisplayName: in.DisplayName, Unit: in.Unit, Emoji: in.Emoji}
	err = s.actionTypes.Create(ctx, at)
	s.metrics.ObserveMutation("action_type_create", err)
	if err != nil {
		return nil, err
	}
	slog.Info("创建动作类型", "name", at.Name, "unit", at.Unit)
	return at, nil
}

// UpdateActionType 按系统名更新显示名/单位/图标
func (s *CatalogService) UpdateActionType(ctx context.Context, in ActionTypeInput) (*schema.ActionType, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	at, err := s.actionTypes.GetByName(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	if at == nil {
		return nil, apperr.NotFound("动作类型 %s", in.Name)
	}
	at.DisplayName, at.Unit, at.Emoji = in.DisplayName, in.Unit, in.Emoji
	err = s.actionTypes.Update(ctx, at)
	s.metrics.ObserveMutation("action_type_update", err)
	if err != nil {
		return nil, err
	}
	return at, nil
}

// ListActionTypes 获取全部动作类型
func (s *CatalogService) ListActionTypes(ctx context.Context) ([]schema.ActionType, error) {
	return s.actionTypes.List(ctx)
}

// DeleteActionType 删除动作类型；仍被资源或目标引用时返回 ErrDependencyInUse
func (s *CatalogService) DeleteActionType(ctx context.Context, name string) error {
	err := s.actionTypes.DeleteIfUnused(ctx, normalizeKey(name))
	s.metrics.ObserveMutation("action_type_delete", err)
	if err != nil {
		return err
	}
	slog.Info("删除动作类型", "name", name)
	return nil
}

// ResourceInput 新建资源的输入
type ResourceInput struct {
	TenantID string
	Action   string
	Name     string
	Emoji    string
}

// CreateResource 在 guild 下为某动作类型新建资源，系统值由显示名生成
func (s *CatalogService) CreateResource(ctx context.Context, in ResourceInput) (*schema.Resource, error) {
	name := strings.TrimSpace(in.Name)
	value := schema.Slugify(name)
	if strings.TrimSpace(in.TenantID) == "" || value == "" {
		return nil, apperr.Invalid("tenant 与资源名不能为空")
	}
	at, err := s.requireActionType(ctx, in.Action)
	if err != nil {
		return nil, err
	}

	res := &schema.Resource{
		TenantID:     in.TenantID,
		Name:         name,
		Value:        value,
		ActionTypeID: at.ID,
		Emoji:        strings.TrimSpace(in.Emoji),
	}
	err = s.resources.Create(ctx, res)
	s.metrics.ObserveMutation("resource_create", err)
	if err != nil {
		return nil, err
	}
	slog.Info("创建资源", "tenant", in.TenantID, "action", at.Name, "value", value)
	s.notify(in.TenantID)
	return res, nil
}

// ListResources 获取 guild 的资源，action 为空时不过滤
func (s *CatalogService) ListResources(ctx context.Context, tenantID, action string) ([]schema.Resource, error) {
	var actionTypeID int64
	if strings.TrimSpace(action) != "" {
		at, err := s.requireActionType(ctx, action)
		if err != nil {
			return nil, err
		}
		actionTypeID = at.ID
	}
	return s.resources.ListByTenant(ctx, tenantID, actionTypeID)
}

// DeleteResource 删除 guild 下的资源
func (s *CatalogService) DeleteResource(ctx context.Context, tenantID string, id int64) error {
	err := s.resources.Delete(ctx, tenantID, id)
	s.metrics.ObserveMutation("resource_delete", err)
	if err != nil {
		return err
	}
	s.notify(tenantID)
	return nil
}

func (s *CatalogService) requireActionType(ctx context.Context, name string) (*schema.ActionType, error) {
	at, err := s.actionTypes.GetByName(ctx, normalizeKey(name))
	if err != nil {
		return nil, err
	}
	if at == nil {
		return nil, apperr.NotFound("动作类型 %s", name)
	}
	return at, nil
}

func (s *CatalogService) notify(tenantID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(eventbus.TenantChanged(tenantID, "resource"))
}
