package service

import (
	"context"
	"errors"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/repository"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type TargetRepository interface {
	Create(ctx context.Context, target *schema.Target) error
	Update(ctx context.Context, id int64, upd repository.TargetUpdate) error
	FindByKey(ctx context.Context, tenantID, action, resource string) (*schema.Target, error)
	GetByID(ctx context.Context, id int64) (*schema.Target, error)
	Delete(ctx context.Context, id int64) error
	ListWithProgress(ctx context.Context, tenantID string) ([]schema.TargetWithProgress, error)
	ListTenants(ctx context.Context) ([]string, error)
}

type ContributionRepository interface {
	Add(ctx context.Context, tenantID, action, resource string, c *schema.Contribution) (*repository.AddResult, error)
	ResetProgress(ctx context.Context, targetID int64) error
	TopContributors(ctx context.Context, tenantID string, limit int, action string) ([]repository.ContributorStat, error)
	ListByTarget(ctx context.Context, targetID int64, limit int) ([]schema.Contribution, error)
	SumByTargetInRange(ctx context.Context, tenantID string, startMs, endMs int64) ([]repository.TargetRangeTotal, error)
}

type ActionTypeRepository interface {
	Create(ctx context.Context, at *schema.ActionType) error
	Update(ctx context.Context, at *schema.ActionType) error
	GetByName(ctx context.Context, name string) (*schema.ActionType, error)
	List(ctx context.Context) ([]schema.ActionType, error)
	DeleteIfUnused(ctx context.Context, name string) error
}

type ResourceRepository interface {
	Create(ctx context.Context, res *schema.Resource) error
	ListByTenant(ctx context.Context, tenantID string, actionTypeID int64) ([]schema.Resource, error)
	Delete(ctx context.Context, tenantID string, id int64) error
}

type DashboardRepository interface {
	Register(ctx context.Context, d *schema.Dashboard) (int64, error)
	ListAll(ctx context.Context, tenantID string) ([]schema.Dashboard, error)
	ListAffected(ctx context.Context, tenantID string) ([]schema.Dashboard, error)
	GetBySurface(ctx context.Context, surfaceID string) (*schema.Dashboard, error)
	Remove(ctx context.Context, surfaceID string) error
	RemoveByChannel(ctx context.Context, channelID string) (int64, error)
}

type SettingRepository interface {
	Get(ctx context.Context, tenantID, key string) (*schema.Setting, error)
	Upsert(ctx context.Context, s *schema.Setting) error
	ListByKey(ctx context.Context, key string) ([]schema.Setting, error)
}

type ProgressRepository interface {
	FindDrift(ctx context.Context, tenantID string) ([]repository.ProgressDrift, error)
	Rebuild(ctx context.Context, targetID int64) (int64, error)
}

// Notifier 变更通知出口（通常是 eventbus.Hub）
type Notifier interface {
	Publish(evt eventbus.Event)
}

// ErrSurfaceGone 展示面（频道/消息）已不存在
var ErrSurfaceGone = errors.New("display surface gone")

// Surface 看板展示面：由平台适配层实现（Discord 消息等）
type Surface interface {
	// Resolve 确认展示面仍然存在；不存在时返回 ErrSurfaceGone
	Resolve(ctx context.Context, channelID, surfaceID string) error
	// Push 用新文档覆盖已有展示面
	Push(ctx context.Context, channelID, surfaceID string, doc dto.DisplayDocument) error
	// Post 在频道内发布新展示面，返回其 ID
	Post(ctx context.Context, channelID string, doc dto.DisplayDocument) (string, error)
}
