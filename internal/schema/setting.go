package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// SettingKeyAutoReport 自动日报设置的键
const SettingKeyAutoReport = "autoReport"

// Setting guild 级别键值设置，(key, tenant) 唯一
type Setting struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     string         `gorm:"size:32;not null;uniqueIndex:uniq_setting,priority:2" json:"tenant_id"`
	SettingKey   string         `gorm:"size:64;not null;uniqueIndex:uniq_setting,priority:1" json:"setting_key"`
	SettingValue datatypes.JSON `gorm:"not null" json:"setting_value"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// AutoReportSetting autoReport 键对应的结构
type AutoReportSetting struct {
	Enabled        bool   `json:"enabled"`
	ChannelID      string `json:"channelId"`
	Time           string `json:"time"`           // HH:MM，本地时间
	LastReportDate string `json:"lastReportDate"` // YYYY-MM-DD
}

// Validate 校验设置的合法性
func (s AutoReportSetting) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.ChannelID == "" {
		return fmt.Errorf("启用自动日报时 channelId 不能为空")
	}
	if _, err := time.Parse("15:04", s.Time); err != nil {
		return fmt.Errorf("time 必须为 HH:MM: %w", err)
	}
	return nil
}

// ParseAutoReportSetting 从存储的 JSON 值解析自动日报设置
func ParseAutoReportSetting(raw datatypes.JSON) (AutoReportSetting, error) {
	var s AutoReportSetting
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("解析 autoReport 设置失败: %w", err)
	}
	return s, nil
}

// JSON 序列化为可存储的 JSON 值
func (s AutoReportSetting) JSON() (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("序列化 autoReport 设置失败: %w", err)
	}
	return datatypes.JSON(b), nil
}
