package schema

import "time"

// SchemaMeta 记录数据库 schema 版本，升级由版本号把关而不是每次启动都 AutoMigrate。
// 表内仅维护单行（ID=1）。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}

// All 返回需要迁移的全部模型，顺序即建表顺序（被引用的表在前）
func All() []any {
	return []any{
		&ActionType{},
		&Resource{},
		&Target{},
		&Contribution{},
		&Progress{},
		&Setting{},
		&Dashboard{},
	}
}
