// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionEntitySignatures 周期性实体签名向量集合
	CollectionEntitySignatures = "entity_signatures"

	// VectorDimension 向量维度
	VectorDimension = 1024
)

// EntitySignaturesSchema 实体签名 Collection Schema
func EntitySignaturesSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionEntitySignatures,
		Description:    "Embedding signatures of recurring persons and vehicles",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1024",
				},
			},
			{
				Name:     "entity_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "entity_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
		},
	}
}
