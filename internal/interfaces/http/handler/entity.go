package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/internal/interfaces/http/dto"
	"cam-sentinel-ai/pkg/logger"
)

// EntityHandler 周期性实体处理器
type EntityHandler struct {
	entityRepo repository.RecognizedEntityRepository
}

// NewEntityHandler 创建实体处理器
func NewEntityHandler(entityRepo repository.RecognizedEntityRepository) *EntityHandler {
	return &EntityHandler{entityRepo: entityRepo}
}

// List 实体列表
// @Summary 实体列表
// @Tags Entities
// @Produce json
// @Router /v1/entities [get]
func (h *EntityHandler) List(c *gin.Context) {
	entityType := entity.RecognizedEntityType(c.Query("type"))

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	entities, total, err := h.entityRepo.List(c.Request.Context(), entityType, limit, offset)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list entities", err)
		dto.InternalError(c, "failed to list entities")
		return
	}

	dto.SuccessWithPage(c, dto.FromRecognizedEntities(entities), &dto.PageMeta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// Get 实体详情
// @Summary 实体详情
// @Tags Entities
// @Produce json
// @Router /v1/entities/{id} [get]
func (h *EntityHandler) Get(c *gin.Context) {
	id := c.Param("id")

	e, err := h.entityRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get entity", err, "entity_id", id)
		dto.InternalError(c, "failed to get entity")
		return
	}
	if e == nil {
		dto.NotFound(c, "entity not found")
		return
	}

	dto.Success(c, dto.FromRecognizedEntity(e))
}

// Update 实体命名
// @Summary 为实体指定名称
// @Tags Entities
// @Accept json
// @Produce json
// @Router /v1/entities/{id} [patch]
func (h *EntityHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req dto.UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	e, err := h.entityRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get entity", err, "entity_id", id)
		dto.InternalError(c, "failed to get entity")
		return
	}
	if e == nil {
		dto.NotFound(c, "entity not found")
		return
	}

	e.Name = &req.Name
	if err := h.entityRepo.Update(c.Request.Context(), e); err != nil {
		logger.Error(c.Request.Context(), "failed to update entity", err, "entity_id", id)
		dto.InternalError(c, "failed to update entity")
		return
	}

	dto.Success(c, dto.FromRecognizedEntity(e))
}

// Delete 删除实体及其事件关联
// @Summary 删除实体
// @Tags Entities
// @Router /v1/entities/{id} [delete]
func (h *EntityHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.entityRepo.Delete(c.Request.Context(), id); err != nil {
		logger.Error(c.Request.Context(), "failed to delete entity", err, "entity_id", id)
		dto.InternalError(c, "failed to delete entity")
		return
	}

	dto.NoContent(c)
}
