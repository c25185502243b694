package schema

import (
	"strings"
	"time"
)

// Resource 可采集物品，归属于某个 guild 下的某个 ActionType
type Resource struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     string    `gorm:"size:32;not null;index;uniqueIndex:uniq_resource,priority:1" json:"tenant_id"`
	Name         string    `gorm:"size:100;not null" json:"name"`                                              // 显示名: Copper
	Value        string    `gorm:"size:100;not null;uniqueIndex:uniq_resource,priority:2" json:"value"`        // slug: copper
	ActionTypeID int64     `gorm:"not null;index;uniqueIndex:uniq_resource,priority:3" json:"action_type_id"` // 引用 action_types.id
	Emoji        string    `gorm:"size:64" json:"emoji"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	ActionType *ActionType `gorm:"foreignKey:ActionTypeID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Resource) TableName() string {
	return "resources"
}

// Slugify 把显示名转换为资源系统值：小写、空白折叠为连字符
func Slugify(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "-")
}
