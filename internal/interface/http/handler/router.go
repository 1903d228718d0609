package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/seckill/internal/interface/http/middleware"
	"github.com/xiebiao/seckill/pkg/response"
)

// Handlers 全部HTTP处理器
type Handlers struct {
	Activity *ActivityHandler
	Session  *SessionHandler
	Product  *ProductHandler
	Seckill  *SeckillHandler
}

// RegisterRoutes 注册业务路由
//
//	/ping                       健康检查
//	/api/v1/seckill/...         用户侧读取（公开）与抢购（需登录）
//	/api/v1/admin/...           运营管理（需管理员）
func RegisterRoutes(r *gin.Engine, h *Handlers, auth *middleware.AuthMiddleware) {
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong", "status": "healthy"})
	})

	v1 := r.Group("/api/v1")

	seckill := v1.Group("/seckill")
	{
		seckill.GET("/sessions/:id", h.Seckill.GetSession)
		seckill.GET("/sessions/:id/products", h.Seckill.GetProducts)
		seckill.GET("/sessions/:id/products/:sku", h.Seckill.GetProduct)
		seckill.POST("/purchases", auth.RequireAuth(), h.Seckill.Purchase)
	}

	admin := v1.Group("/admin")
	admin.Use(auth.RequireAdmin())
	{
		activities := admin.Group("/activities")
		activities.POST("", h.Activity.Create)
		activities.GET("", h.Activity.List)
		activities.GET("/:id", h.Activity.Get)
		activities.PUT("/:id", h.Activity.Update)
		activities.DELETE("/:id", h.Activity.Delete)
		activities.POST("/:id/toggle", h.Activity.ToggleEnabled)
		activities.POST("/:id/cancel", h.Activity.Cancel)
		activities.POST("/:id/start", h.Activity.Start)
		activities.POST("/:id/end", h.Activity.End)
		activities.POST("/:id/warm", h.Activity.Warm)
		activities.DELETE("/:id/cache", h.Activity.Evict)
		activities.POST("/:id/sessions", h.Session.Create)
		activities.GET("/:id/sessions", h.Session.ListByActivity)

		sessions := admin.Group("/sessions")
		sessions.GET("/:id", h.Session.Get)
		sessions.PUT("/:id", h.Session.Update)
		sessions.DELETE("/:id", h.Session.Delete)
		sessions.POST("/:id/toggle", h.Session.ToggleEnabled)
		sessions.POST("/:id/cancel", h.Session.Cancel)
		sessions.POST("/:id/start", h.Session.Start)
		sessions.POST("/:id/end", h.Session.End)
		sessions.POST("/:id/warm", h.Session.Warm)
		sessions.DELETE("/:id/cache", h.Session.Evict)
		sessions.POST("/:id/products", h.Product.Create)
		sessions.GET("/:id/products", h.Product.ListBySession)

		products := admin.Group("/products")
		products.GET("/:id", h.Product.Get)
		products.PUT("/:id", h.Product.Update)
		products.DELETE("/:id", h.Product.Delete)
		products.POST("/:id/toggle", h.Product.ToggleEnabled)
	}
}
