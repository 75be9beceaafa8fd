package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/internal/interfaces/http/dto"
	"cam-sentinel-ai/pkg/logger"
)

// UsageHandler 使用量与开销查询处理器
type UsageHandler struct {
	usageRepo repository.UsageRecordRepository
}

// NewUsageHandler 创建使用量处理器
func NewUsageHandler(usageRepo repository.UsageRecordRepository) *UsageHandler {
	return &UsageHandler{usageRepo: usageRepo}
}

// Summary 开销汇总
// @Summary 开销汇总与按日明细
// @Tags Usage
// @Produce json
// @Router /v1/usage [get]
func (h *UsageHandler) Summary(c *gin.Context) {
	var req dto.UsageQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "invalid query parameters")
		return
	}

	now := time.Now().UTC()
	since, until, err := req.Window(now)
	if err != nil {
		dto.BadRequest(c, "invalid time range")
		return
	}

	ctx := c.Request.Context()

	total, err := h.usageRepo.GetSpend(ctx, since, until)
	if err != nil {
		logger.Error(ctx, "failed to query spend", err)
		dto.InternalError(c, "failed to query usage")
		return
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	dailySpend, err := h.usageRepo.GetSpend(ctx, dayStart, now.Add(time.Second))
	if err != nil {
		logger.Error(ctx, "failed to query daily spend", err)
		dto.InternalError(c, "failed to query usage")
		return
	}
	monthlySpend, err := h.usageRepo.GetSpend(ctx, monthStart, now.Add(time.Second))
	if err != nil {
		logger.Error(ctx, "failed to query monthly spend", err)
		dto.InternalError(c, "failed to query usage")
		return
	}

	breakdown, err := h.usageRepo.Aggregate(ctx, since, until)
	if err != nil {
		logger.Error(ctx, "failed to aggregate usage", err)
		dto.InternalError(c, "failed to query usage")
		return
	}

	dto.Success(c, &dto.UsageSummaryResponse{
		Since:        since,
		Until:        until,
		TotalCostUSD: total,
		DailySpend:   dailySpend,
		MonthlySpend: monthlySpend,
		Breakdown:    breakdown,
	})
}
