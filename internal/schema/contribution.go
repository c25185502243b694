package schema

import "time"

// Contribution 不可变的贡献流水
// 数据量级：万级/年
type Contribution struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetID  int64     `gorm:"not null;index" json:"target_id"`
	UserID    string    `gorm:"size:32;not null;index" json:"user_id"`
	Username  string    `gorm:"size:100" json:"username"` // 提交时的显示名快照
	Amount    int64     `gorm:"not null" json:"amount"`
	Location  string    `gorm:"size:200" json:"location"`
	Timestamp int64     `gorm:"index;not null" json:"timestamp"` // Unix 时间戳（毫秒）
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Target *Target `gorm:"foreignKey:TargetID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Contribution) TableName() string {
	return "contributions"
}
