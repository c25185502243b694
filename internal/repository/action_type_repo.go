package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActionTypeRepository 动作类型仓储（全局表）
type ActionTypeRepository struct {
	db *gorm.DB
}

// NewActionTypeRepository 创建仓储
func NewActionTypeRepository(db *gorm.DB) *ActionTypeRepository {
	return &ActionTypeRepository{db: db}
}

// Create 创建动作类型，name 重复返回 ErrConflict
func (r *ActionTypeRepository) Create(ctx context.Context, at *schema.ActionType) error {
	if err := r.db.WithContext(ctx).Create(at).Error; err != nil {
		return apperr.FromStore("创建动作类型失败", err)
	}
	return nil
}

// Update 更新显示名、单位与图标
func (r *ActionTypeRepository) Update(ctx context.Context, at *schema.ActionType) error {
	res := r.db.WithContext(ctx).
		Model(&schema.ActionType{}).
		Where("id = ?", at.ID).
		Updates(map[string]any{
			"display_name": at.DisplayName,
			"unit":         at.Unit,
			"emoji":        at.Emoji,
		})
	if res.Error != nil {
		return apperr.FromStore("更新动作类型失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("动作类型 id=%d", at.ID)
	}
	return nil
}

// GetByName 按系统名获取，不存在返回 nil
func (r *ActionTypeRepository) GetByName(ctx context.Context, name string) (*schema.ActionType, error) {
	var at schema.ActionType
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&at).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.FromStore("查询动作类型失败", err)
	}
	return &at, nil
}

// List 获取全部动作类型
func (r *ActionTypeRepository) List(ctx context.Context) ([]schema.ActionType, error) {
	var out []schema.ActionType
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperr.FromStore("查询动作类型失败", err)
	}
	return out, nil
}

// DeleteIfUnused 在同一事务内检查引用并删除。
// 仍被 Resource 或 Target 引用时返回 ErrDependencyInUse。
func (r *ActionTypeRepository) DeleteIfUnused(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == DriverPostgres {
			// 行锁阻止并发创建引用越过检查
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var at schema.ActionType
		if err := q.Where("name = ?", name).First(&at).Error; err != nil {
			return apperr.FromStore(fmt.Sprintf("查询动作类型 %s 失败", name), err)
		}

		var resources int64
		if err := tx.Model(&schema.Resource{}).Where("action_type_id = ?", at.ID).Count(&resources).Error; err != nil {
			return apperr.FromStore("统计资源引用失败", err)
		}
		var targets int64
		if err := tx.Model(&schema.Target{}).Where("action = ?", at.Name).Count(&targets).Error; err != nil {
			return apperr.FromStore("统计目标引用失败", err)
		}
		if resources > 0 || targets > 0 {
			return apperr.InUse("动作类型 %s 仍被 %d 个资源、%d 个目标引用", at.Name, resources, targets)
		}

		if err := tx.Delete(&schema.ActionType{}, at.ID).Error; err != nil {
			return apperr.FromStore("删除动作类型失败", err)
		}
		return nil
	})
}
