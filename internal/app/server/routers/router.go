package routers

import (
	"github.com/gin-gonic/gin"

	"vcp/sttrelay/internal/app/server/handlers/relay"
	"vcp/sttrelay/internal/app/server/middlewares"
	"vcp/sttrelay/pkg/logger"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(relayHandler *relay.RelayHandler, log logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.CORS())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "sttrelay",
			"message": "Service is running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		relayGroup := v1.Group("/relay")
		{
			relayGroup.POST("/process", relayHandler.Process)
			relayGroup.POST("/retry/:voucher", relayHandler.Retry)
			relayGroup.GET("/preview/:voucher", relayHandler.Preview)
			relayGroup.GET("/status/:voucher", relayHandler.Status)
		}
	}

	return r
}
