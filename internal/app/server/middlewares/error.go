package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vcp/sttrelay/pkg/logger"
)

// ErrorHandler 统一错误处理中间件
// 捕获 handler panic，返回统一 500 响应
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(c.Request.Context(), "[HTTP] panic recovered: %s %s, panic=%v",
					c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			log.Errorf(c.Request.Context(), "[HTTP] request error: %s %s, err=%v",
				c.Request.Method, c.Request.URL.Path, err)
			if !c.Writer.Written() {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": err.Error(),
				})
			}
		}
	}
}
