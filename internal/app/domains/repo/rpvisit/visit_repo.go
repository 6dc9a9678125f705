package rpvisit

import (
	"context"

	"vcp/sttrelay/internal/app/domains/entity/etvisit"
)

// VisitRepository 问诊记录仓储接口（核心只读）
type VisitRepository interface {
	// GetByID 按问诊 ID 查询完整读模型（含临床记录），
	// 不存在返回 etvisit.ErrVisitNotFound
	GetByID(ctx context.Context, visitID string) (*etvisit.Visit, error)

	// GetByVoucher 按凭证号查询完整读模型
	GetByVoucher(ctx context.Context, voucherCode string) (*etvisit.Visit, error)

	// FindCandidates 查找可投递候选：
	// 状态已完成、存在临床记录、sinceDays 内有更新，且满足重试策略
	// （无控制行，或 未投递 且 attempts 未达上限 且 next_retry_at 已到
	// 且 锁空闲或已超时）。按更新时间倒序，最多 limit 条
	FindCandidates(ctx context.Context, sinceDays, limit int) ([]etvisit.CandidateRef, error)
}
