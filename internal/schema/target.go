package schema

import "time"

// Target guild 声明的采集目标
// (tenant, action, resource) 唯一；action 以名称非正式地关联 ActionType
type Target struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     string    `gorm:"size:32;not null;index;uniqueIndex:uniq_target,priority:1" json:"tenant_id"`
	Action       string    `gorm:"size:50;not null;uniqueIndex:uniq_target,priority:2" json:"action"`
	Resource     string    `gorm:"size:100;not null;uniqueIndex:uniq_target,priority:3" json:"resource"`
	TargetAmount int64     `gorm:"not null" json:"target_amount"`
	Unit         string    `gorm:"size:20;not null" json:"unit"`
	Tags         StringSet `gorm:"type:text" json:"tags"`
	CreatedBy    string    `gorm:"size:32" json:"created_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Target) TableName() string {
	return "targets"
}

// TargetWithProgress 目标及其缓存进度（无 progress 行时为 0）
type TargetWithProgress struct {
	Target
	CurrentAmount int64 `json:"current_amount"`
}
