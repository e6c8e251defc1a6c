package router

import (
	"github.com/gin-gonic/gin"

	"reseller_sync_v1/internal/controller"
	"reseller_sync_v1/internal/middleware"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	authCtl *controller.AuthController,
	listingCtl *controller.ListingController,
	syncCtl *controller.SyncController) {
	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API 路由组
	api := r.Group("/api")
	{
		// oauth 授权组
		oauth := api.Group("/oauth")
		{
			// GET /api/oauth/connect
			oauth.GET("/connect", authCtl.Connect)

			// GET /api/oauth/callback
			oauth.GET("/callback", authCtl.Callback)
		}

		v1 := api.Group("/v1")
		{
			// accounts 账户管理
			accounts := v1.Group("/accounts")
			{
				accounts.POST("/:id/disconnect", authCtl.Disconnect)
			}

			// listings 本地商品
			listings := v1.Group("/listings")
			{
				listings.GET("", listingCtl.ListListings)
				listings.POST("", listingCtl.CreateListing)
				listings.GET("/:id", listingCtl.GetListing)

				// 单品同步，带冷却限流
				listings.POST("/:id/sync",
					middleware.SyncRateLimit(middleware.SyncTypeListing, 0),
					syncCtl.SyncListing,
				)
				listings.GET("/:id/sync-status", syncCtl.GetSyncStatus)
				listings.POST("/:id/resolve", syncCtl.ResolveConflict)
			}

			// sync 同步操作
			sync := v1.Group("/sync")
			{
				sync.POST("/bulk",
					middleware.GlobalSyncRateLimit(middleware.SyncTypeBulk, 0),
					syncCtl.BulkSync,
				)
				sync.POST("/sweep",
					middleware.GlobalSyncRateLimit(middleware.SyncTypeSweep, 0),
					syncCtl.TriggerSweep,
				)
				sync.POST("/tokens/refresh", syncCtl.TriggerTokenRefresh)
			}
		}
	}
}
