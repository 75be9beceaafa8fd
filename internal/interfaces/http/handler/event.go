// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/internal/interfaces/http/dto"
	"cam-sentinel-ai/pkg/logger"
)

// EventHandler 事件查询处理器
type EventHandler struct {
	eventRepo repository.EventRepository
}

// NewEventHandler 创建事件处理器
func NewEventHandler(eventRepo repository.EventRepository) *EventHandler {
	return &EventHandler{eventRepo: eventRepo}
}

// List 事件列表查询
// @Summary 事件列表
// @Description 按摄像头/类型/模式/降级/低置信度/时间窗过滤事件
// @Tags Events
// @Produce json
// @Router /v1/events [get]
func (h *EventHandler) List(c *gin.Context) {
	var req dto.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "invalid query parameters")
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		dto.BadRequest(c, "invalid time range")
		return
	}

	events, total, err := h.eventRepo.List(c.Request.Context(), filter)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list events", err)
		dto.InternalError(c, "failed to list events")
		return
	}

	dto.SuccessWithPage(c, dto.FromEvents(events), &dto.PageMeta{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Total:  total,
	})
}

// Get 单事件查询
// @Summary 事件详情
// @Tags Events
// @Produce json
// @Router /v1/events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	id := c.Param("id")

	event, err := h.eventRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get event", err, "event_id", id)
		dto.InternalError(c, "failed to get event")
		return
	}
	if event == nil {
		dto.NotFound(c, "event not found")
		return
	}

	dto.Success(c, dto.FromEvent(event))
}
