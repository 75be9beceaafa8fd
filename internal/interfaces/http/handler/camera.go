package handler

import (
	"github.com/gin-gonic/gin"

	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/internal/interfaces/http/dto"
	"cam-sentinel-ai/pkg/logger"
)

// CameraHandler 摄像头配置处理器
type CameraHandler struct {
	cameraRepo repository.CameraRepository
}

// NewCameraHandler 创建摄像头处理器
func NewCameraHandler(cameraRepo repository.CameraRepository) *CameraHandler {
	return &CameraHandler{cameraRepo: cameraRepo}
}

// List 摄像头列表
// @Summary 摄像头列表
// @Tags Cameras
// @Produce json
// @Router /v1/cameras [get]
func (h *CameraHandler) List(c *gin.Context) {
	cameras, err := h.cameraRepo.List(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list cameras", err)
		dto.InternalError(c, "failed to list cameras")
		return
	}

	out := make([]*dto.CameraResponse, 0, len(cameras))
	for _, camera := range cameras {
		out = append(out, dto.FromCamera(camera))
	}
	dto.Success(c, out)
}

// Get 摄像头详情
// @Summary 摄像头详情
// @Tags Cameras
// @Produce json
// @Router /v1/cameras/{id} [get]
func (h *CameraHandler) Get(c *gin.Context) {
	id := c.Param("id")

	camera, err := h.cameraRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get camera", err, "camera_id", id)
		dto.InternalError(c, "failed to get camera")
		return
	}
	if camera == nil {
		dto.NotFound(c, "camera not found")
		return
	}

	dto.Success(c, dto.FromCamera(camera))
}

// Save 创建或更新摄像头
// @Summary 创建或更新摄像头配置
// @Tags Cameras
// @Accept json
// @Produce json
// @Router /v1/cameras [put]
func (h *CameraHandler) Save(c *gin.Context) {
	var req dto.SaveCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	camera := req.ToCamera()
	if err := h.cameraRepo.Save(c.Request.Context(), camera); err != nil {
		logger.Error(c.Request.Context(), "failed to save camera", err, "camera_id", camera.ID)
		dto.InternalError(c, "failed to save camera")
		return
	}

	dto.Success(c, dto.FromCamera(camera))
}
