package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Search *SearchHandler
	Items  *ItemHandler
	Admin  *AdminHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/search", deps.Search.Search)

	api.PUT("/items", deps.Items.Index)
	api.DELETE("/items", deps.Items.Delete)

	admin := api.Group("/admin")
	admin.GET("/queue/stats", deps.Admin.QueueStats)
	admin.POST("/queue/process", deps.Admin.ProcessQueue)
	admin.DELETE("/queue", deps.Admin.ClearQueue)
	admin.POST("/reindex", deps.Admin.Reindex)
	admin.POST("/cache/invalidate", deps.Admin.InvalidateCache)
	admin.DELETE("/cache", deps.Admin.ClearCache)
	admin.GET("/cache/stats", deps.Admin.CacheStats)

	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
