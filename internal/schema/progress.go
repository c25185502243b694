package schema

// Progress 目标的当前进度缓存
// 不变量：CurrentAmount == 该目标全部 Contribution.Amount 之和，只在事务内增量维护
type Progress struct {
	TargetID      int64 `gorm:"primaryKey;autoIncrement:false" json:"target_id"`
	CurrentAmount int64 `gorm:"not null;default:0" json:"current_amount"`
	LastUpdated   int64 `gorm:"not null;default:0" json:"last_updated"` // Unix 时间戳（毫秒）

	Target *Target `gorm:"foreignKey:TargetID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Progress) TableName() string {
	return "progress"
}
