package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
)

// ProgressRepository 进度缓存仓储（对账用）
type ProgressRepository struct {
	db *gorm.DB
}

// NewProgressRepository 创建仓储
func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// ProgressDrift 缓存与账本不一致的目标
type ProgressDrift struct {
	TargetID     int64
	TenantID     string
	Action       string
	Resource     string
	CachedAmount int64
	LedgerAmount int64
}

// FindDrift 找出 progress.current_amount 与贡献合计不一致的目标；tenantID 为空时检查全部 guild
func (r *ProgressRepository) FindDrift(ctx context.Context, tenantID string) ([]ProgressDrift, error) {
	const sql = `
SELECT
  t.id AS target_id,
  t.tenant_id AS tenant_id,
  t.action AS action,
  t.resource AS resource,
  COALESCE(p.current_amount, 0) AS cached_amount,
  COALESCE((SELECT SUM(c.amount) FROM contributions c WHERE c.target_id = t.id), 0) AS ledger_amount
FROM targets t
LEFT JOIN progress p ON p.target_id = t.id
WHERE (? = '' OR t.tenant_id = ?)
ORDER BY t.tenant_id ASC, t.id ASC
`
	var rows []ProgressDrift
	if err := r.db.WithContext(ctx).Raw(sql, tenantID, tenantID).Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore("对账查询失败", err)
	}

	out := make([]ProgressDrift, 0)
	for _, row := range rows {
		if row.CachedAmount != row.LedgerAmount {
			out = append(out, row)
		}
	}
	return out, nil
}

// Rebuild 以账本合计重写目标的进度缓存（同一事务），返回重建后的值
func (r *ProgressRepository) Rebuild(ctx context.Context, targetID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target schema.Target
		if err := tx.Select("id").First(&target, targetID).Error; err != nil {
			return apperr.FromStore(fmt.Sprintf("查询目标 id=%d 失败", targetID), err)
		}
		if err := tx.Model(&schema.Contribution{}).
			Where("target_id = ?", targetID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error; err != nil {
			return apperr.FromStore("统计贡献失败", err)
		}
		return writeProgress(tx, targetID, sum)
	})
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// Get 读取目标的缓存进度，没有进度行时返回 0
func (r *ProgressRepository) Get(ctx context.Context, targetID int64) (int64, error) {
	var amounts []int64
	err := r.db.WithContext(ctx).
		Model(&schema.Progress{}).
		Where("target_id = ?", targetID).
		Pluck("current_amount", &amounts).Error
	if err != nil {
		return 0, apperr.FromStore("读取进度失败", err)
	}
	if len(amounts) == 0 {
		return 0, nil
	}
	return amounts[0], nil
}
