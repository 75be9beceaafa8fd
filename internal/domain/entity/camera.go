// Package entity 定义领域实体
package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DetectionTypes 用于 GORM JSON 序列化的检测类型集合
type DetectionTypes []DetectionType

// Value 实现 driver.Valuer 接口
func (t DetectionTypes) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan 实现 sql.Scanner 接口
func (t *DetectionTypes) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	}
	return nil
}

// Contains 检查类型是否启用，空集合表示全部启用
func (t DetectionTypes) Contains(dt DetectionType) bool {
	if len(t) == 0 {
		return true
	}
	for _, v := range t {
		if v == dt {
			return true
		}
	}
	return false
}

// Camera 摄像头配置
type Camera struct {
	ID   string `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name string `json:"name" gorm:"type:varchar(128);not null"`
	// PreferredMode 首选分析模式，降级链从这里进入
	PreferredMode AnalysisMode `json:"preferred_mode" gorm:"type:varchar(32);not null"`
	// EnabledTypes 启用的检测类型过滤，空表示全部
	EnabledTypes DetectionTypes `json:"enabled_types,omitempty" gorm:"type:jsonb"`
	// HasClipSource 是否存在片段源；没有时直接进入单帧模式
	HasClipSource bool `json:"has_clip_source" gorm:"not null;default:true"`
	// Provider 指定的提供商，空表示使用全局默认
	Provider string `json:"provider,omitempty" gorm:"type:varchar(32)"`
	// CooldownSeconds 同机位事件去重冷却时间
	CooldownSeconds int       `json:"cooldown_seconds" gorm:"not null;default:0"`
	Enabled         bool      `json:"enabled" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Camera) TableName() string {
	return "cameras"
}

// EntryMode 返回降级链的实际入口模式。
// 没有片段源的摄像头无法支撑视频与多帧模式，直接从单帧进入。
func (c *Camera) EntryMode() AnalysisMode {
	if !c.HasClipSource {
		return ModeSingleFrame
	}
	if c.PreferredMode == "" {
		return ModeMultiFrame
	}
	return c.PreferredMode
}
