package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/pkg/logger"
)

// cameraConfigTTL 摄像头配置缓存时长。
// 检测流里每条消息都要查一次摄像头配置，短 TTL 即可挡掉绝大部分回源。
const cameraConfigTTL = 30 * time.Second

// CachedCameraRepository 摄像头仓储的 Read-Through 缓存装饰器。
// 未命中经 singleflight 回源，Save 时主动失效。
type CachedCameraRepository struct {
	inner repository.CameraRepository
	cache *Cache
}

var _ repository.CameraRepository = (*CachedCameraRepository)(nil)

// NewCachedCameraRepository 创建带缓存的摄像头仓储
func NewCachedCameraRepository(inner repository.CameraRepository, cache *Cache) *CachedCameraRepository {
	return &CachedCameraRepository{
		inner: inner,
		cache: cache,
	}
}

// GetByID 查询摄像头配置，缓存未命中时回源数据库。
// 不存在的摄像头也会以 null 短暂缓存，避免坏消息打穿数据库。
func (r *CachedCameraRepository) GetByID(ctx context.Context, id string) (*entity.Camera, error) {
	key := fmt.Sprintf("camera:%s:config", id)

	data, err := r.cache.GetOrLoadSafe(ctx, key, cameraConfigTTL, func() (interface{}, error) {
		return r.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	var camera *entity.Camera
	if err := json.Unmarshal(data, &camera); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached camera: %w", err)
	}
	return camera, nil
}

// List 列表查询不走缓存
func (r *CachedCameraRepository) List(ctx context.Context) ([]*entity.Camera, error) {
	return r.inner.List(ctx)
}

// Save 写穿后失效缓存，工作进程最迟在 TTL 后看到新配置
func (r *CachedCameraRepository) Save(ctx context.Context, camera *entity.Camera) error {
	if err := r.inner.Save(ctx, camera); err != nil {
		return err
	}
	if err := r.cache.InvalidateCamera(ctx, camera.ID); err != nil {
		logger.Warn(ctx, "failed to invalidate camera cache", "camera_id", camera.ID, "error", err)
	}
	return nil
}
