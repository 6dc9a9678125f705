package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vcp/sttrelay/pkg/logger"
)

// Logger 访问日志中间件
// 为每个请求生成/透传 trace_id，写入 Context 供下游日志关联
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Header("X-Request-ID", traceID)

		ctx := context.WithValue(c.Request.Context(), logger.CtxKeyTraceID, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		log.Infof(ctx, "[HTTP] %s %s status=%d cost=%v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
