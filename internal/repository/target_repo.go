package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
)

// TargetRepository 目标仓储
type TargetRepository struct {
	db *gorm.DB
}

// NewTargetRepository 创建仓储
func NewTargetRepository(db *gorm.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// Create 创建目标并初始化进度为 0（同一事务）
func (r *TargetRepository) Create(ctx context.Context, target *schema.Target) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(target).Error; err != nil {
			return apperr.FromStore("创建目标失败", err)
		}
		p := schema.Progress{TargetID: target.ID, CurrentAmount: 0, LastUpdated: time.Now().UnixMilli()}
		if err := tx.Create(&p).Error; err != nil {
			return apperr.FromStore("初始化进度失败", err)
		}
		return nil
	})
}

// TargetUpdate 可原地更新的目标字段；Tags 为 nil 表示不修改
type TargetUpdate struct {
	TargetAmount int64
	Unit         string
	Tags         schema.StringSet
}

// Update 原地更新数量/单位（以及可选的标签）
func (r *TargetRepository) Update(ctx context.Context, id int64, upd TargetUpdate) error {
	fields := map[string]any{
		"target_amount": upd.TargetAmount,
		"unit":          upd.Unit,
	}
	if upd.Tags != nil {
		fields["tags"] = upd.Tags
	}
	res := r.db.WithContext(ctx).Model(&schema.Target{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return apperr.FromStore("更新目标失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("目标 id=%d", id)
	}
	return nil
}

// FindByKey 按 (tenant, action, resource) 查询，不存在返回 nil
func (r *TargetRepository) FindByKey(ctx context.Context, tenantID, action, resource string) (*schema.Target, error) {
	var t schema.Target
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND action = ? AND resource = ?", tenantID, action, resource).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.FromStore("查询目标失败", err)
	}
	return &t, nil
}

// GetByID 按 ID 获取目标
func (r *TargetRepository) GetByID(ctx context.Context, id int64) (*schema.Target, error) {
	var t schema.Target
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, apperr.FromStore(fmt.Sprintf("查询目标 id=%d 失败", id), err)
	}
	return &t, nil
}

// Delete 删除目标及其进度和贡献流水
func (r *TargetRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 显式删除子表，不依赖方言是否开启外键级联
		if err := tx.Where("target_id = ?", id).Delete(&schema.Contribution{}).Error; err != nil {
			return apperr.FromStore("删除贡献失败", err)
		}
		if err := tx.Where("target_id = ?", id).Delete(&schema.Progress{}).Error; err != nil {
			return apperr.FromStore("删除进度失败", err)
		}
		res := tx.Delete(&schema.Target{}, id)
		if res.Error != nil {
			return apperr.FromStore("删除目标失败", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("目标 id=%d", id)
		}
		return nil
	})
}

type targetProgressRow struct {
	schema.Target
	CurrentAmount int64
}

// ListWithProgress 获取某 guild 的全部目标及缓存进度，按 action、resource、id 排序
func (r *TargetRepository) ListWithProgress(ctx context.Context, tenantID string) ([]schema.TargetWithProgress, error) {
	var rows []targetProgressRow
	err := r.db.WithContext(ctx).
		Table("targets").
		Select("targets.*, COALESCE(progress.current_amount, 0) AS current_amount").
		Joins("LEFT JOIN progress ON progress.target_id = targets.id").
		Where("targets.tenant_id = ?", tenantID).
		Order("targets.action ASC, targets.resource ASC, targets.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore("查询目标进度失败", err)
	}

	out := make([]schema.TargetWithProgress, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.TargetWithProgress{Target: row.Target, CurrentAmount: row.CurrentAmount})
	}
	return out, nil
}

// ListTenants 返回拥有目标的全部 guild
func (r *TargetRepository) ListTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).
		Model(&schema.Target{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenants).Error
	if err != nil {
		return nil, apperr.FromStore("查询 guild 列表失败", err)
	}
	return tenants, nil
}
