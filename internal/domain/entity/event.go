// Package entity 定义领域实体
package entity

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// DetectionType 上游检测类型
type DetectionType string

const (
	DetectionMotion   DetectionType = "motion"
	DetectionPerson   DetectionType = "person"
	DetectionVehicle  DetectionType = "vehicle"
	DetectionPackage  DetectionType = "package"
	DetectionAnimal   DetectionType = "animal"
	DetectionDoorbell DetectionType = "doorbell"
)

// AnalysisMode 分析模式（富媒体程度由高到低）
type AnalysisMode string

const (
	ModeVideoNative AnalysisMode = "video_native"
	ModeMultiFrame  AnalysisMode = "multi_frame"
	ModeSingleFrame AnalysisMode = "single_frame"
	ModeUnavailable AnalysisMode = "unavailable"
)

// 分析跳过原因
const (
	SkipReasonBudgetDaily   = "budget-daily"
	SkipReasonBudgetMonthly = "budget-monthly"
)

// UnavailableDescription 降级链全部失败时的占位描述
const UnavailableDescription = "AI analysis unavailable"

// FallbackReason 按序记录 "mode:cause" 降级条目，存储为逗号拼接文本
type FallbackReason []string

// Value 实现 driver.Valuer 接口
func (r FallbackReason) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "", nil
	}
	return strings.Join(r, ","), nil
}

// Scan 实现 sql.Scanner 接口
func (r *FallbackReason) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	}
	if s == "" {
		*r = nil
		return nil
	}
	*r = strings.Split(s, ",")
	return nil
}

// Append 追加一条 "mode:cause" 降级记录
func (r *FallbackReason) Append(mode AnalysisMode, cause string) {
	*r = append(*r, string(mode)+":"+cause)
}

// Event 一次被检测到的发生事件
type Event struct {
	ID                    string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CameraID              string         `json:"camera_id" gorm:"type:varchar(64);index;not null"`
	Timestamp             time.Time      `json:"timestamp" gorm:"index;not null"`
	DetectionType         DetectionType  `json:"detection_type" gorm:"type:varchar(32);not null"`
	AnalysisMode          AnalysisMode   `json:"analysis_mode" gorm:"type:varchar(32)"`
	FallbackReason        FallbackReason `json:"fallback_reason,omitempty" gorm:"type:text"`
	Description           *string        `json:"description,omitempty" gorm:"type:text"`
	Confidence            *int           `json:"confidence,omitempty"`
	LowConfidence         bool           `json:"low_confidence" gorm:"not null;default:false"`
	CostUSD               *float64       `json:"cost_usd,omitempty"`
	AnalysisSkippedReason *string        `json:"analysis_skipped_reason,omitempty" gorm:"type:varchar(32)"`
	ThumbnailPath         string         `json:"thumbnail_path,omitempty" gorm:"type:varchar(255)"`
	CreatedAt             time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Event) TableName() string {
	return "events"
}

// NewEvent 创建新事件
func NewEvent(cameraID string, detectionType DetectionType, ts time.Time) *Event {
	return &Event{
		CameraID:      cameraID,
		DetectionType: detectionType,
		Timestamp:     ts,
		CreatedAt:     time.Now(),
	}
}

// SetConfidence 写入置信度并推导低置信度标记。
// 约束：LowConfidence 仅在置信度已知且低于 cutoff 时为 true，置信度缺失时恒为 false。
func (e *Event) SetConfidence(confidence *int, cutoff int) {
	e.Confidence = confidence
	e.LowConfidence = confidence != nil && *confidence < cutoff
}

// MarkSkipped 以预算暂停路径落库：无置信度、无费用，仅保留解释文本
func (e *Event) MarkSkipped(reason string, description string) {
	e.AnalysisMode = ModeUnavailable
	e.AnalysisSkippedReason = &reason
	e.Description = &description
	e.Confidence = nil
	e.LowConfidence = false
}

// MarshalFallback 调试用途的 JSON 视图
func (e *Event) MarshalFallback() string {
	b, _ := json.Marshal(e.FallbackReason)
	return string(b)
}
