package repository

import (
	"context"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
)

// DashboardRepository 看板登记表；只做存储，不含业务规则
type DashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建仓储
func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Register 登记一个看板，返回其 ID
func (r *DashboardRepository) Register(ctx context.Context, d *schema.Dashboard) (int64, error) {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return 0, apperr.FromStore("登记看板失败", err)
	}
	return d.ID, nil
}

// ListAll 获取全部看板；tenantID 非空时只返回该 guild 拥有的看板
func (r *DashboardRepository) ListAll(ctx context.Context, tenantID string) ([]schema.Dashboard, error) {
	var out []schema.Dashboard
	q := r.db.WithContext(ctx)
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, apperr.FromStore("查询看板失败", err)
	}
	return out, nil
}

// ListAffected 获取受某 guild 数据变化影响的看板：归属于它，或以它为数据源的共享看板
func (r *DashboardRepository) ListAffected(ctx context.Context, tenantID string) ([]schema.Dashboard, error) {
	var out []schema.Dashboard
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? OR source_tenant_id = ?", tenantID, tenantID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.FromStore("查询看板失败", err)
	}
	return out, nil
}

// GetBySurface 按展示面（消息）ID 获取看板
func (r *DashboardRepository) GetBySurface(ctx context.Context, surfaceID string) (*schema.Dashboard, error) {
	var d schema.Dashboard
	if err := r.db.WithContext(ctx).Where("display_surface_id = ?", surfaceID).Order("id ASC").First(&d).Error; err != nil {
		return nil, apperr.FromStore("查询看板 "+surfaceID+" 失败", err)
	}
	return &d, nil
}

// Remove 删除展示面对应的看板登记；不存在不视为错误
func (r *DashboardRepository) Remove(ctx context.Context, surfaceID string) error {
	if err := r.db.WithContext(ctx).Where("display_surface_id = ?", surfaceID).Delete(&schema.Dashboard{}).Error; err != nil {
		return apperr.FromStore("删除看板失败", err)
	}
	return nil
}

// RemoveByChannel 删除某频道下的全部看板登记，返回删除数量
func (r *DashboardRepository) RemoveByChannel(ctx context.Context, channelID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&schema.Dashboard{})
	if res.Error != nil {
		return 0, apperr.FromStore("删除频道看板失败", res.Error)
	}
	return res.RowsAffected, nil
}
