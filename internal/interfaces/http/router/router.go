// Package router 提供 HTTP 路由配置
package router

import (
	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/interfaces/http/handler"
	"cam-sentinel-ai/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health *handler.HealthHandler
	Event  *handler.EventHandler
	Entity *handler.EntityHandler
	Camera *handler.CameraHandler
	Usage  *handler.UsageHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	{
		events := v1.Group("/events")
		{
			events.GET("", r.handlers.Event.List)
			events.GET("/:id", r.handlers.Event.Get)
		}

		entities := v1.Group("/entities")
		{
			entities.GET("", r.handlers.Entity.List)
			entities.GET("/:id", r.handlers.Entity.Get)
			entities.PATCH("/:id", r.handlers.Entity.Update)
			entities.DELETE("/:id", r.handlers.Entity.Delete)
		}

		cameras := v1.Group("/cameras")
		{
			cameras.GET("", r.handlers.Camera.List)
			cameras.GET("/:id", r.handlers.Camera.Get)
			cameras.PUT("", r.handlers.Camera.Save)
		}

		v1.GET("/usage", r.handlers.Usage.Summary)
	}
}
