// Package entity 定义领域实体
package entity

import "time"

// UsageRecord 一次提供商调用的计费流水，只追加不修改
type UsageRecord struct {
	ID           string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider     string       `json:"provider" gorm:"type:varchar(32);index;not null"`
	Model        string       `json:"model" gorm:"type:varchar(64);not null"`
	AnalysisMode AnalysisMode `json:"analysis_mode" gorm:"type:varchar(32);not null"`
	TokensInput  int          `json:"tokens_input" gorm:"not null;default:0"`
	TokensOutput int          `json:"tokens_output" gorm:"not null;default:0"`
	ImageCount   int          `json:"image_count" gorm:"not null;default:0"`
	IsEstimated  bool         `json:"is_estimated" gorm:"not null;default:false"`
	CostUSD      float64      `json:"cost_usd" gorm:"not null;default:0"`
	CreatedAt    time.Time    `json:"created_at" gorm:"index;autoCreateTime"`
}

// TableName 指定表名
func (UsageRecord) TableName() string {
	return "usage_records"
}
