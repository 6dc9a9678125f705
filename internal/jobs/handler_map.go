package jobs

import (
	"context"

	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/lmstfyx"
)

// JobHandler 任务处理器接口
type JobHandler interface {
	// Handle 执行任务，返回批次回调与处理动作
	Handle(ctx context.Context, data *model.RelayJobData) (*model.RelayRunCallback, lmstfyx.JobRespStatus)
}

// HandlerMap 路由表（ActionType → Handler 映射）
// Deps 注入各 Handler 共享的服务依赖
func HandlerMap(deps *Deps) map[string]JobHandler {
	return map[string]JobHandler{
		model.ActionProcessPending: NewProcessPendingHandler(deps),
		model.ActionRetryVoucher:   NewRetryVoucherHandler(deps),
	}
}
