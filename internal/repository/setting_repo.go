package repository

import (
	"context"
	"errors"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository guild 键值设置仓储
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository 创建仓储
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get 获取设置，不存在返回 nil
func (r *SettingRepository) Get(ctx context.Context, tenantID, key string) (*schema.Setting, error) {
	var s schema.Setting
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND setting_key = ?", tenantID, key).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.FromStore("查询设置失败", err)
	}
	return &s, nil
}

// Upsert 插入或更新设置值
func (r *SettingRepository) Upsert(ctx context.Context, s *schema.Setting) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}, {Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return apperr.FromStore("保存设置失败", err)
	}
	return nil
}

// ListByKey 获取所有 guild 的同名设置
func (r *SettingRepository) ListByKey(ctx context.Context, key string) ([]schema.Setting, error) {
	var out []schema.Setting
	if err := r.db.WithContext(ctx).Where("setting_key = ?", key).Order("tenant_id ASC").Find(&out).Error; err != nil {
		return nil, apperr.FromStore("查询设置失败", err)
	}
	return out, nil
}
