package schema

import "time"

// Dashboard 一个已发布的看板展示面
// SourceTenantID 非空时为共享看板：归属 TenantID，但渲染 SourceTenantID 的数据
type Dashboard struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplaySurfaceID string    `gorm:"size:32;not null;index" json:"display_surface_id"` // 消息 ID
	ChannelID        string    `gorm:"size:32;not null;index" json:"channel_id"`
	TenantID         string    `gorm:"size:32;not null;index" json:"tenant_id"`
	SourceTenantID   *string   `gorm:"size:32;index" json:"source_tenant_id,omitempty"`
	Tags             StringSet `gorm:"type:text" json:"tags"`
	Title            string    `gorm:"size:256" json:"title"`
	CreatedBy        string    `gorm:"size:32" json:"created_by"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Dashboard) TableName() string {
	return "dashboards"
}

// DashboardScope 看板的 (归属 guild, 渲染 guild) 二元组
type DashboardScope struct {
	Owner    string
	Rendered string
}

// Shared 是否渲染其他 guild 的数据
func (s DashboardScope) Shared() bool {
	return s.Rendered != s.Owner
}

// Scope 解析看板应渲染哪个 guild 的数据；同步器只读这一处
func (d *Dashboard) Scope() DashboardScope {
	scope := DashboardScope{Owner: d.TenantID, Rendered: d.TenantID}
	if d.SourceTenantID != nil && *d.SourceTenantID != "" {
		scope.Rendered = *d.SourceTenantID
	}
	return scope
}
