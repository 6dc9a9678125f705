package relay

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vcp/sttrelay/internal/app/domains/apimodel/response"
	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/pkg/ginx"
)

// maxWaitSeconds Smart Wait 等待上限
const maxWaitSeconds = 60

// Status 投递状态查询接口
// GET /api/v1/relay/status/:voucher?wait_seconds=N
// wait_seconds > 0 时先订阅结果频道等待 worker 推送（Smart Wait），
// 等到通知或超时后再查库返回，避免触发方轮询
func (h *RelayHandler) Status(c *gin.Context) {
	voucherCode := c.Param("voucher")
	if voucherCode == "" {
		ginx.BadRequest(c, "voucher code is required")
		return
	}

	if waitSec, err := strconv.Atoi(c.DefaultQuery("wait_seconds", "0")); err == nil && waitSec > 0 && h.waiter != nil {
		if waitSec > maxWaitSeconds {
			waitSec = maxWaitSeconds
		}
		timeout := time.Duration(waitSec) * time.Second
		if _, err := h.waiter.WaitResult(c.Request.Context(), voucherCode, timeout); err != nil {
			// 超时降级为直接查库
			h.logger.Infof(c.Request.Context(), "[RelayHandler] wait result elapsed: voucher=%s, err=%v", voucherCode, err)
		}
	}

	control, err := h.controlRepo.GetByVoucher(c.Request.Context(), voucherCode)
	if err != nil {
		if errors.Is(err, etrelay.ErrControlNotFound) {
			ginx.NotFound(c, "no delivery record for voucher "+voucherCode)
			return
		}
		h.logger.Errorf(c.Request.Context(), "[RelayHandler] status query failed: voucher=%s, err=%v", voucherCode, err)
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, response.FromControl(control))
}
