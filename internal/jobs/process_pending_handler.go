package jobs

import (
	"context"
	"time"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/lmstfyx"
)

// ProcessPendingHandler 批量扫描任务处理器
// 对应 action_type = stt_process_pending
type ProcessPendingHandler struct {
	deps *Deps
}

// NewProcessPendingHandler 创建批量扫描处理器
func NewProcessPendingHandler(deps *Deps) *ProcessPendingHandler {
	return &ProcessPendingHandler{deps: deps}
}

// Handle 执行一次批量扫描并生成回调消息
func (h *ProcessPendingHandler) Handle(ctx context.Context, data *model.RelayJobData) (*model.RelayRunCallback, lmstfyx.JobRespStatus) {
	report, err := h.deps.Scanner.Run(ctx, svrelay.RunParams{
		LookbackDays: data.Data.LookbackDays,
		Limit:        data.Data.Limit,
		DryRun:       data.Data.DryRun,
	})
	if err != nil {
		// 候选查询失败（如 DB 抖动）可重试，整批重新投递
		h.deps.Logger.Errorf(ctx, "[ProcessPendingHandler] run failed: err=%v", err)
		return failedCallback(data.RequestID, 0, err), lmstfyx.JobRespStatusRelease
	}

	callback := &model.RelayRunCallback{
		RequestID:   data.RequestID,
		RunID:       report.RunID,
		Status:      model.CallbackStatusSuccess,
		Report:      toReportData(report),
		ProcessedAt: time.Now().Unix(),
	}
	return callback, lmstfyx.JobRespStatusSuccess
}

// toReportData 领域报告转回调传输结构
func toReportData(report *etrelay.RunReport) *model.RunReportData {
	items := make([]model.RunItemData, 0, len(report.Items))
	for _, item := range report.Items {
		items = append(items, model.RunItemData{
			VisitID:     item.VisitID,
			VoucherCode: item.VoucherCode,
			Status:      string(item.Status),
			HTTPStatus:  item.HTTPStatus,
			Attempts:    item.Attempts,
			Reason:      item.Reason,
		})
	}

	return &model.RunReportData{
		RunID:     report.RunID,
		Total:     report.Total,
		Processed: report.Processed,
		Succeeded: report.Succeeded,
		Blocked:   report.Blocked,
		Errored:   report.Errored,
		DryRun:    report.DryRun,
		Items:     items,
	}
}

// failedCallback 构造失败回调
func failedCallback(requestID string, runID int64, err error) *model.RelayRunCallback {
	return &model.RelayRunCallback{
		RequestID:   requestID,
		RunID:       runID,
		Status:      model.CallbackStatusFailed,
		Error:       err.Error(),
		ProcessedAt: time.Now().Unix(),
	}
}
