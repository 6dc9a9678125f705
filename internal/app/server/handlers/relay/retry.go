package relay

import (
	"errors"

	"github.com/gin-gonic/gin"

	"vcp/sttrelay/internal/app/domains/apimodel/response"
	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/pkg/ginx"
)

// Retry 手工重投接口
// POST /api/v1/relay/retry/:voucher
func (h *RelayHandler) Retry(c *gin.Context) {
	voucherCode := c.Param("voucher")
	if voucherCode == "" {
		ginx.BadRequest(c, "voucher code is required")
		return
	}

	outcome, err := h.scanner.RetryVoucher(c.Request.Context(), voucherCode)
	if err != nil {
		if errors.Is(err, etvisit.ErrVisitNotFound) {
			ginx.NotFound(c, "visit not found for voucher "+voucherCode)
			return
		}
		h.logger.Errorf(c.Request.Context(), "[RelayHandler] retry failed: voucher=%s, err=%v", voucherCode, err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, response.FromSendOutcome(outcome))
}
