package service

import (
	"context"

	"cam-sentinel-ai/internal/domain/entity"
)

// UsageInput 表示一次提供商调用的可计费与可观测数据。
// 说明：该结构位于 domain/service，作为跨层的稳定契约（port），避免基础设施层依赖应用层实现。
type UsageInput struct {
	Provider     string
	Model        string
	AnalysisMode entity.AnalysisMode

	TokensInput  int
	TokensOutput int
	ImageCount   int
	// UsageReported 提供商是否上报了用量；false 时由入账方估算并打标
	UsageReported bool
	ResponseChars int
	DurationMs    int
}

// UsageRecorder 负责入账一次提供商调用（计价 + 流水落库）。
// 约定：实现应尽量 best-effort，不应阻塞主业务流程。
type UsageRecorder interface {
	Record(ctx context.Context, in UsageInput) (costUSD float64, err error)
}
