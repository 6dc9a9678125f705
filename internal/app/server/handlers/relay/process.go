package relay

import (
	"github.com/gin-gonic/gin"

	"vcp/sttrelay/internal/app/domains/apimodel/request"
	"vcp/sttrelay/internal/app/domains/apimodel/response"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/pkg/ginx"
)

// Process 触发一次批量扫描接口
// POST /api/v1/relay/process
func (h *RelayHandler) Process(c *gin.Context) {
	// 请求体可省略，全部参数走缺省值
	var req request.ProcessRelayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ginx.BadRequestWithValidation(c, err)
			return
		}
	}

	report, err := h.scanner.Run(c.Request.Context(), svrelay.RunParams{
		LookbackDays: req.LookbackDays,
		Limit:        req.Limit,
		DryRun:       req.DryRun,
	})
	if err != nil {
		h.logger.Errorf(c.Request.Context(), "[RelayHandler] run failed: err=%v", err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, response.FromRunReport(report))
}
