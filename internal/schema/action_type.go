package schema

import "time"

// ActionType 采集动作类型（全局，不按 guild 划分）
// 数据量级：十级
type ActionType struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:50;uniqueIndex;not null" json:"name"` // 系统名: mining, hauling
	DisplayName string    `gorm:"size:100;not null" json:"display_name"`    // 显示名: Mining
	Unit        string    `gorm:"size:20;not null" json:"unit"`             // 单位: SCU, aUEC
	Emoji       string    `gorm:"size:64" json:"emoji"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ActionType) TableName() string {
	return "action_types"
}
