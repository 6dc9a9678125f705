package relay

import (
	"errors"

	"github.com/gin-gonic/gin"

	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/pkg/ginx"
)

// Preview 报文预览接口（只读，不抢锁不外发）
// GET /api/v1/relay/preview/:voucher
func (h *RelayHandler) Preview(c *gin.Context) {
	voucherCode := c.Param("voucher")
	if voucherCode == "" {
		ginx.BadRequest(c, "voucher code is required")
		return
	}

	payload, err := h.orchestrator.BuildPreview(c.Request.Context(), voucherCode)
	if err != nil {
		if errors.Is(err, etvisit.ErrVisitNotFound) {
			ginx.NotFound(c, "visit not found for voucher "+voucherCode)
			return
		}
		h.logger.Errorf(c.Request.Context(), "[RelayHandler] preview failed: voucher=%s, err=%v", voucherCode, err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, payload)
}
