package repository

import (
	"context"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
)

// ResourceRepository 资源仓储（按 guild 划分）
type ResourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository 创建仓储
func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create 创建资源，(tenant, value, action_type) 重复返回 ErrConflict
func (r *ResourceRepository) Create(ctx context.Context, res *schema.Resource) error {
	if err := r.db.WithContext(ctx).Create(res).Error; err != nil {
		return apperr.FromStore("创建资源失败", err)
	}
	return nil
}

// ListByTenant 获取某 guild 的资源，actionTypeID 为 0 时不过滤
func (r *ResourceRepository) ListByTenant(ctx context.Context, tenantID string, actionTypeID int64) ([]schema.Resource, error) {
	var out []schema.Resource
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if actionTypeID > 0 {
		q = q.Where("action_type_id = ?", actionTypeID)
	}
	if err := q.Order("action_type_id ASC, value ASC").Find(&out).Error; err != nil {
		return nil, apperr.FromStore("查询资源失败", err)
	}
	return out, nil
}

// Delete 删除某 guild 下的资源
func (r *ResourceRepository) Delete(ctx context.Context, tenantID string, id int64) error {
	res := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&schema.Resource{})
	if res.Error != nil {
		return apperr.FromStore("删除资源失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("资源 id=%d", id)
	}
	return nil
}
