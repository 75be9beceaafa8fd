package dto

import (
	"time"

	"cam-sentinel-ai/internal/domain/repository"
)

// UsageQueryRequest 使用量查询参数
type UsageQueryRequest struct {
	Since string `form:"since"`
	Until string `form:"until"`
}

// Window 解析查询时间窗，默认最近 30 天
func (r *UsageQueryRequest) Window(now time.Time) (time.Time, time.Time, error) {
	start := now.AddDate(0, 0, -30)
	end := now

	if r.Since != "" {
		t, err := time.Parse(time.RFC3339, r.Since)
		if err != nil {
			return start, end, err
		}
		start = t
	}
	if r.Until != "" {
		t, err := time.Parse(time.RFC3339, r.Until)
		if err != nil {
			return start, end, err
		}
		end = t
	}
	return start, end, nil
}

// UsageSummaryResponse 开销汇总响应
type UsageSummaryResponse struct {
	Since        time.Time                  `json:"since"`
	Until        time.Time                  `json:"until"`
	TotalCostUSD float64                    `json:"total_cost_usd"`
	DailySpend   float64                    `json:"daily_spend_usd"`
	MonthlySpend float64                    `json:"monthly_spend_usd"`
	Breakdown    []repository.UsageAggregate `json:"breakdown"`
}
