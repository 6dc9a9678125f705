package jobs

import (
	"context"
	"errors"
	"time"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/lmstfyx"
	"vcp/sttrelay/pkg/logger"
)

// RetryVoucherHandler 单凭证重投任务处理器
// 对应 action_type = stt_retry_voucher
type RetryVoucherHandler struct {
	deps *Deps
}

// NewRetryVoucherHandler 创建重投处理器
func NewRetryVoucherHandler(deps *Deps) *RetryVoucherHandler {
	return &RetryVoucherHandler{deps: deps}
}

// Handle 复位指定凭证并重走投递链路
func (h *RetryVoucherHandler) Handle(ctx context.Context, data *model.RelayJobData) (*model.RelayRunCallback, lmstfyx.JobRespStatus) {
	voucherCode := data.Data.VoucherCode
	if voucherCode == "" {
		voucherCode = data.ID
	}
	if voucherCode == "" {
		h.deps.Logger.Errorf(ctx, "[RetryVoucherHandler] voucher code is empty, request_id=%s", data.RequestID)
		return failedCallback(data.RequestID, 0, errors.New("voucher code is required")), lmstfyx.JobRespStatusBury
	}
	ctx = context.WithValue(ctx, logger.CtxKeyVoucher, voucherCode)

	outcome, err := h.deps.Scanner.RetryVoucher(ctx, voucherCode)
	if err != nil {
		if errors.Is(err, etvisit.ErrVisitNotFound) {
			// 凭证对不上问诊记录，重试没有意义
			h.deps.Logger.Errorf(ctx, "[RetryVoucherHandler] visit not found: voucher=%s", voucherCode)
			return failedCallback(data.RequestID, 0, err), lmstfyx.JobRespStatusBury
		}
		h.deps.Logger.Errorf(ctx, "[RetryVoucherHandler] retry failed: voucher=%s, err=%v", voucherCode, err)
		return failedCallback(data.RequestID, 0, err), lmstfyx.JobRespStatusRelease
	}

	callback := &model.RelayRunCallback{
		RequestID: data.RequestID,
		Status:    model.CallbackStatusSuccess,
		Report: &model.RunReportData{
			Total:     1,
			Processed: 1,
			Items: []model.RunItemData{{
				VisitID:     outcome.VisitID,
				VoucherCode: outcome.VoucherCode,
				Status:      string(outcome.Status),
				HTTPStatus:  outcome.HTTPStatus,
				Attempts:    outcome.Attempts,
				Reason:      outcome.Reason,
			}},
		},
		ProcessedAt: time.Now().Unix(),
	}
	switch outcome.Status {
	case etrelay.SendStatusSent:
		callback.Report.Succeeded = 1
	case etrelay.SendStatusBlocked, etrelay.SendStatusLockFailed:
		callback.Report.Blocked = 1
	default:
		callback.Report.Errored = 1
	}

	return callback, lmstfyx.JobRespStatusSuccess
}
