package relay

import (
	"context"
	"time"

	"vcp/sttrelay/internal/app/domains/modules/mdnotify"
	"vcp/sttrelay/internal/app/domains/repo/rpcontrol"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/pkg/logger"
)

// ResultWaiter Smart Wait 依赖：订阅投递结果频道，等待 worker 推送后再查库
type ResultWaiter interface {
	WaitResult(ctx context.Context, voucherCode string, timeout time.Duration) (*mdnotify.VoucherResult, error)
}

// RelayHandler 投递相关 HTTP 处理器
type RelayHandler struct {
	scanner      *svrelay.Scanner
	orchestrator *svrelay.Orchestrator
	controlRepo  rpcontrol.ControlRepository
	waiter       ResultWaiter // 可为 nil：未配置 Redis 时状态查询直接查库
	logger       logger.Logger
}

// NewRelayHandler 创建投递处理器实例
func NewRelayHandler(scanner *svrelay.Scanner, orchestrator *svrelay.Orchestrator,
	controlRepo rpcontrol.ControlRepository, waiter ResultWaiter, log logger.Logger) *RelayHandler {
	return &RelayHandler{
		scanner:      scanner,
		orchestrator: orchestrator,
		controlRepo:  controlRepo,
		waiter:       waiter,
		logger:       log,
	}
}
