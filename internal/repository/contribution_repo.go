package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"gorm.io/gorm"
)

// ContributionRepository 贡献流水仓储，同时负责进度缓存的增量维护
type ContributionRepository struct {
	db *gorm.DB
}

// NewContributionRepository 创建仓储
func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// AddResult 记录贡献后的目标状态
type AddResult struct {
	Target        schema.Target
	CurrentAmount int64
}

// Add 写入一条贡献并递增进度缓存（同一事务，要么都成功要么都失败）。
// 找不到 (tenant, action, resource) 对应目标时返回 ErrNotFound。
func (r *ContributionRepository) Add(ctx context.Context, tenantID, action, resource string, c *schema.Contribution) (*AddResult, error) {
	var out AddResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target schema.Target
		err := tx.Where("tenant_id = ? AND action = ? AND resource = ?", tenantID, action, resource).
			First(&target).Error
		if err != nil {
			return apperr.FromStore(fmt.Sprintf("查询目标 %s/%s 失败", action, resource), err)
		}

		c.TargetID = target.ID
		if c.Timestamp == 0 {
			c.Timestamp = time.Now().UnixMilli()
		}
		if err := tx.Create(c).Error; err != nil {
			return apperr.FromStore("写入贡献失败", err)
		}

		// 原子递增，避免读-改-写丢失并发更新
		res := tx.Model(&schema.Progress{}).
			Where("target_id = ?", target.ID).
			Updates(map[string]any{
				"current_amount": gorm.Expr("current_amount + ?", c.Amount),
				"last_updated":   c.Timestamp,
			})
		if res.Error != nil {
			return apperr.FromStore("更新进度失败", res.Error)
		}
		if res.RowsAffected == 0 {
			// 历史数据可能缺少 progress 行：以账本合计重建
			var sum int64
			if err := tx.Model(&schema.Contribution{}).
				Where("target_id = ?", target.ID).
				Select("COALESCE(SUM(amount), 0)").
				Scan(&sum).Error; err != nil {
				return apperr.FromStore("统计贡献失败", err)
			}
			p := schema.Progress{TargetID: target.ID, CurrentAmount: sum, LastUpdated: c.Timestamp}
			if err := tx.Create(&p).Error; err != nil {
				return apperr.FromStore("初始化进度失败", err)
			}
			slog.Warn("目标缺少进度行，已按账本重建", "target_id", target.ID)
		}

		var current int64
		if err := tx.Model(&schema.Progress{}).
			Where("target_id = ?", target.ID).
			Select("current_amount").
			Scan(&current).Error; err != nil {
			return apperr.FromStore("读取进度失败", err)
		}

		out = AddResult{Target: target, CurrentAmount: current}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetProgress 清空目标的全部贡献并把进度归零（同一事务）。
// 对没有贡献的目标是空操作。
func (r *ContributionRepository) ResetProgress(ctx context.Context, targetID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target schema.Target
		if err := tx.Select("id").First(&target, targetID).Error; err != nil {
			return apperr.FromStore(fmt.Sprintf("查询目标 id=%d 失败", targetID), err)
		}
		if err := tx.Where("target_id = ?", targetID).Delete(&schema.Contribution{}).Error; err != nil {
			return apperr.FromStore("删除贡献失败", err)
		}
		return writeProgress(tx, targetID, 0)
	})
}

// writeProgress 把进度缓存设为指定值，缺行时补建
func writeProgress(tx *gorm.DB, targetID, amount int64) error {
	now := time.Now().UnixMilli()
	res := tx.Model(&schema.Progress{}).
		Where("target_id = ?", targetID).
		Updates(map[string]any{"current_amount": amount, "last_updated": now})
	if res.Error != nil {
		return apperr.FromStore("写入进度失败", res.Error)
	}
	if res.RowsAffected == 0 {
		p := schema.Progress{TargetID: targetID, CurrentAmount: amount, LastUpdated: now}
		if err := tx.Create(&p).Error; err != nil {
			return apperr.FromStore("初始化进度失败", err)
		}
	}
	return nil
}

// ContributorStat 贡献者汇总
type ContributorStat struct {
	UserID      string
	Username    string
	TotalAmount int64
}

type contributorRow struct {
	UserID      string
	TotalAmount int64
	LastID      int64
}

// TopContributors 统计某 guild（可选限定 action）的贡献者排行。
// 总量降序、user_id 升序；显示名取该用户最新一条贡献的快照。
func (r *ContributionRepository) TopContributors(ctx context.Context, tenantID string, limit int, action string) ([]ContributorStat, error) {
	q := r.db.WithContext(ctx).
		Table("contributions").
		Select("contributions.user_id AS user_id, SUM(contributions.amount) AS total_amount, MAX(contributions.id) AS last_id").
		Joins("JOIN targets ON targets.id = contributions.target_id").
		Where("targets.tenant_id = ?", tenantID)
	if action != "" {
		q = q.Where("targets.action = ?", action)
	}
	q = q.Group("contributions.user_id").Order("total_amount DESC, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []contributorRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore("统计贡献排行失败", err)
	}
	if len(rows) == 0 {
		return []ContributorStat{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LastID)
	}
	var latest []schema.Contribution
	if err := r.db.WithContext(ctx).Select("id, username").Where("id IN ?", ids).Find(&latest).Error; err != nil {
		return nil, apperr.FromStore("查询贡献者名称失败", err)
	}
	names := make(map[int64]string, len(latest))
	for _, c := range latest {
		names[c.ID] = c.Username
	}

	out := make([]ContributorStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, ContributorStat{
			UserID:      row.UserID,
			Username:    names[row.LastID],
			TotalAmount: row.TotalAmount,
		})
	}
	return out, nil
}

// TargetRangeTotal 某时间窗内单个目标的贡献合计
type TargetRangeTotal struct {
	TargetID     int64
	Action       string
	Resource     string
	Unit         string
	TotalAmount  int64
	Contributors int64
}

// SumByTargetInRange 统计某 guild 在 [startMs, endMs] 内每个目标的贡献合计
func (r *ContributionRepository) SumByTargetInRange(ctx context.Context, tenantID string, startMs, endMs int64) ([]TargetRangeTotal, error) {
	var out []TargetRangeTotal
	err := r.db.WithContext(ctx).
		Table("contributions").
		Select(`targets.id AS target_id, targets.action AS action, targets.resource AS resource, targets.unit AS unit,
			SUM(contributions.amount) AS total_amount, COUNT(DISTINCT contributions.user_id) AS contributors`).
		Joins("JOIN targets ON targets.id = contributions.target_id").
		Where("targets.tenant_id = ? AND contributions.timestamp >= ? AND contributions.timestamp <= ?", tenantID, startMs, endMs).
		Group("targets.id, targets.action, targets.resource, targets.unit").
		Order("targets.action ASC, targets.resource ASC").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.FromStore("统计时间窗贡献失败", err)
	}
	return out, nil
}

// CountByTarget 统计目标的贡献条数
func (r *ContributionRepository) CountByTarget(ctx context.Context, targetID int64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&schema.Contribution{}).Where("target_id = ?", targetID).Count(&n).Error; err != nil {
		return 0, apperr.FromStore("统计贡献失败", err)
	}
	return n, nil
}

// ListByTarget 获取目标最近的贡献流水
func (r *ContributionRepository) ListByTarget(ctx context.Context, targetID int64, limit int) ([]schema.Contribution, error) {
	var out []schema.Contribution
	q := r.db.WithContext(ctx).Where("target_id = ?", targetID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.FromStore("查询贡献失败", err)
	}
	return out, nil
}
