package rpcontrol

import (
	"context"
	"time"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
)

// ControlRepository 投递控制行仓储接口
// 控制行是唯一的共享可变资源，只允许通过下列原子操作修改；
// 任何先读后写的组合都可能丢失并发更新，禁止使用
type ControlRepository interface {
	// GetByVisitID 按问诊 ID 查询控制行，不存在返回 etrelay.ErrControlNotFound
	GetByVisitID(ctx context.Context, visitID string) (*etrelay.DeliveryControl, error)

	// GetByVoucher 按凭证号查询控制行，不存在返回 etrelay.ErrControlNotFound
	GetByVoucher(ctx context.Context, voucherCode string) (*etrelay.DeliveryControl, error)

	// CanSend 快速判定是否允许投递（仅短路常见情况，不防并发；
	// 正确性由 AcquireLock 保证）
	CanSend(ctx context.Context, visitID string) (etrelay.Decision, error)

	// AcquireLock 抢占处理锁（原子条件写）
	// 无行则插入 attempts=1、processing_since=now；有行则仅当未成功投递
	// 且 processing_since 为空或已超时，才递增 attempts 并续锁。
	// 影响 0 行（含唯一键冲突）视为抢锁失败，返回 false
	AcquireLock(ctx context.Context, visitID, voucherCode string) (bool, error)

	// ReleaseLock 释放处理锁（清空 processing_since），幂等
	ReleaseLock(ctx context.Context, visitID string) error

	// CleanupStuckLocks 回收僵死锁：processing_since 早于 2 倍锁超时
	// 且未成功投递的行，返回回收数量
	CleanupStuckLocks(ctx context.Context) (int64, error)

	// RecordOutcome 落库外发结果：delivered、响应快照、报文快照、
	// 冗余展示字段，并在同一条 UPDATE 中清空 processing_since。
	// 非 2xx 按 outcome.NextRetryAt 安排下次重试，成功投递时清空重试时间
	RecordOutcome(ctx context.Context, visitID string, outcome *etrelay.DeliveryOutcome) error

	// RecordError 落库错误信息与下次重试时间（nextRetryAt 为 nil 表示
	// 不安排重试，如记录不存在类错误），同时清空 processing_since
	RecordError(ctx context.Context, visitID string, errMsg string, nextRetryAt *time.Time) error

	// ResetForRetry 将控制行复位为可重投状态：delivered=0、锁与重试时间清空、
	// attempts 减一（最低为 0）
	ResetForRetry(ctx context.Context, voucherCode string) error
}
