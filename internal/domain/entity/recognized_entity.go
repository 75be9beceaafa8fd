// Package entity 定义领域实体
package entity

import "time"

// RecognizedEntityType 可识别的周期性实体类型
type RecognizedEntityType string

const (
	RecognizedPerson  RecognizedEntityType = "person"
	RecognizedVehicle RecognizedEntityType = "vehicle"
)

// RecognizedEntity 反复出现的人或车辆
type RecognizedEntity struct {
	ID string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// Type 实体类型
	Type RecognizedEntityType `json:"type" gorm:"type:varchar(16);index;not null"`
	// Name 人工指定的名称，可选
	Name *string `json:"name,omitempty" gorm:"type:varchar(128)"`
	// Signature 归一化描述签名（如车辆的 color-make-model），可选
	Signature *string `json:"signature,omitempty" gorm:"type:varchar(128);index"`
	// OccurrenceCount 关联事件数，与链接表中去重事件数保持一致
	OccurrenceCount int       `json:"occurrence_count" gorm:"not null;default:0"`
	FirstSeen       time.Time `json:"first_seen" gorm:"not null"`
	LastSeen        time.Time `json:"last_seen" gorm:"index;not null"`
	// VectorID 向量库中的主键
	VectorID  string    `json:"vector_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (RecognizedEntity) TableName() string {
	return "recognized_entities"
}

// NewRecognizedEntity 创建首次出现的实体
func NewRecognizedEntity(entityType RecognizedEntityType, seenAt time.Time) *RecognizedEntity {
	return &RecognizedEntity{
		Type:            entityType,
		OccurrenceCount: 0,
		FirstSeen:       seenAt,
		LastSeen:        seenAt,
		CreatedAt:       time.Now(),
	}
}

// RecordSighting 记录一次新的出现
func (e *RecognizedEntity) RecordSighting(seenAt time.Time) {
	e.OccurrenceCount++
	if seenAt.After(e.LastSeen) {
		e.LastSeen = seenAt
	}
	e.UpdatedAt = time.Now()
}

// RefineSignature 首次提取到签名时补写，已存在时保留旧值
func (e *RecognizedEntity) RefineSignature(signature string) {
	if signature == "" || e.Signature != nil {
		return
	}
	e.Signature = &signature
	e.UpdatedAt = time.Now()
}

// EventEntityLink 事件与实体的多对多关联，携带相似度得分
type EventEntityLink struct {
	EventID    string    `json:"event_id" gorm:"type:uuid;primaryKey"`
	EntityID   string    `json:"entity_id" gorm:"type:uuid;primaryKey;index"`
	Similarity float64   `json:"similarity" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (EventEntityLink) TableName() string {
	return "event_entity_links"
}
