package rpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/infra/persistence/entity"
)

// ControlRepositoryImpl 投递控制行仓储实现（MySQL）
type ControlRepositoryImpl struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewControlRepository 创建控制行仓储实例
// lockTimeout: 处理锁超时时间（僵死阈值为其 2 倍）
func NewControlRepository(db *gorm.DB, lockTimeout time.Duration) ControlRepository {
	return &ControlRepositoryImpl{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

// GetByVisitID 按问诊 ID 查询控制行
func (r *ControlRepositoryImpl) GetByVisitID(ctx context.Context, visitID string) (*etrelay.DeliveryControl, error) {
	var po entity.DeliveryControl
	err := r.db.WithContext(ctx).Where("visit_id = ?", visitID).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etrelay.ErrControlNotFound
		}
		return nil, fmt.Errorf("failed to get delivery control: %w", err)
	}
	return r.toDomainModel(&po), nil
}

// GetByVoucher 按凭证号查询控制行
func (r *ControlRepositoryImpl) GetByVoucher(ctx context.Context, voucherCode string) (*etrelay.DeliveryControl, error) {
	var po entity.DeliveryControl
	err := r.db.WithContext(ctx).Where("voucher_code = ?", voucherCode).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etrelay.ErrControlNotFound
		}
		return nil, fmt.Errorf("failed to get delivery control: %w", err)
	}
	return r.toDomainModel(&po), nil
}

// CanSend 快速判定是否允许投递
// 已成功投递 → 拒绝（原因含投递时间）；锁仍在有效期内 → 拒绝（原因含已持锁秒数）
func (r *ControlRepositoryImpl) CanSend(ctx context.Context, visitID string) (etrelay.Decision, error) {
	ctl, err := r.GetByVisitID(ctx, visitID)
	if err != nil {
		if errors.Is(err, etrelay.ErrControlNotFound) {
			return etrelay.Decision{Allowed: true}, nil
		}
		return etrelay.Decision{}, err
	}

	if ctl.DeliveredOK() {
		deliveredAt := ""
		if ctl.DeliveredAt != nil {
			deliveredAt = ctl.DeliveredAt.Format(time.RFC3339)
		}
		return etrelay.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("already delivered at %s", deliveredAt),
		}, nil
	}

	// delivered 检查与持锁检查防护的是不同竞态，两者都要保留
	if ctl.ProcessingSince != nil {
		elapsed := time.Since(*ctl.ProcessingSince)
		if elapsed < r.lockTimeout {
			return etrelay.Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("processing in progress for %ds", int(elapsed.Seconds())),
			}, nil
		}
	}

	return etrelay.Decision{Allowed: true}, nil
}

// AcquireLock 抢占处理锁
// 第一步：条件 UPDATE（原子），影响行数为 1 即抢锁成功；
// 第二步：影响 0 行时尝试 INSERT，由唯一键仲裁并发插入，
// 唯一键冲突（1062）意味着他人已建行并持锁/已投递，判定失败。
// 两步均为单条原子语句，不存在先读后写的竞态窗口
func (r *ControlRepositoryImpl) AcquireLock(ctx context.Context, visitID, voucherCode string) (bool, error) {
	now := time.Now()
	stale := now.Add(-r.lockTimeout)

	res := r.db.WithContext(ctx).
		Model(&entity.DeliveryControl{}).
		Where("visit_id = ?", visitID).
		Where("NOT (delivered = ? AND last_response_status = ?)", true, 200).
		Where("processing_since IS NULL OR processing_since < ?", stale).
		Updates(map[string]interface{}{
			"attempts":         gorm.Expr("attempts + 1"),
			"processing_since": now,
			"last_attempt_at":  now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// 无可更新行：要么行不存在（插入），要么他人持锁/已投递（冲突→失败）
	po := entity.DeliveryControl{
		VisitID:         visitID,
		VoucherCode:     voucherCode,
		Attempts:        1,
		ProcessingSince: &now,
		LastAttemptAt:   &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.db.WithContext(ctx).Create(&po).Error; err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create delivery control: %w", err)
	}

	return true, nil
}

// ReleaseLock 释放处理锁，幂等
func (r *ControlRepositoryImpl) ReleaseLock(ctx context.Context, visitID string) error {
	err := r.db.WithContext(ctx).
		Model(&entity.DeliveryControl{}).
		Where("visit_id = ?", visitID).
		Updates(map[string]interface{}{
			"processing_since": nil,
			"updated_at":       time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// CleanupStuckLocks 回收僵死锁（崩溃 worker 遗留）
func (r *ControlRepositoryImpl) CleanupStuckLocks(ctx context.Context) (int64, error) {
	threshold := time.Now().Add(-2 * r.lockTimeout)

	res := r.db.WithContext(ctx).
		Model(&entity.DeliveryControl{}).
		Where("processing_since IS NOT NULL AND processing_since < ?", threshold).
		Where("delivered = ?", false).
		Updates(map[string]interface{}{
			"processing_since": nil,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cleanup stuck locks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordOutcome 落库外发结果（同一条 UPDATE 中清锁）
func (r *ControlRepositoryImpl) RecordOutcome(ctx context.Context, visitID string, outcome *etrelay.DeliveryOutcome) error {
	now := time.Now()

	headersJSON, err := json.Marshal(outcome.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	updates := map[string]interface{}{
		"delivered":                 outcome.Delivered(),
		"last_response_status":      outcome.StatusCode,
		"last_response_body":        outcome.Body,
		"last_response_headers":     datatypes.JSON(headersJSON),
		"last_payload_sent":         datatypes.JSON(outcome.Payload),
		"last_error":                "",
		"patient_name":              outcome.PatientName,
		"professional_name":         outcome.ProfessionalName,
		"professional_registration": outcome.ProfessionalRegistration,
		"external_case_code":        outcome.ExternalCaseCode,
		"processing_since":          nil,
		"updated_at":                now,
	}
	if outcome.Delivered() {
		updates["delivered_at"] = now
		updates["next_retry_at"] = nil
	} else if outcome.NextRetryAt != nil {
		updates["next_retry_at"] = *outcome.NextRetryAt
	}

	res := r.db.WithContext(ctx).
		Model(&entity.DeliveryControl{}).
		Where("visit_id = ?", visitID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to record outcome: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return etrelay.ErrControlNotFound
	}
	return nil
}

// RecordError 落库错误信息与下次重试时间（同一条 UPDATE 中清锁）
func (r *ControlRepositoryImpl) RecordError(ctx context.Context, visitID string, errMsg string, nextRetryAt *time.Time) error {
	updates := map[string]interface{}{
		"last_error":       errMsg,
		"processing_since": nil,
		"updated_at":       time.Now(),
	}
	if nextRetryAt != nil {
		updates["next_retry_at"] = *nextRetryAt
	}

	res := r.db.WithContext(ctx).
		Model(&entity.DeliveryControl{}).
		Where("visit_id = ?", visitID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to record error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return etrelay.ErrControlNotFound
	}
	return nil
}

// ResetForRetry 复位控制行为可重投状态
func (r *ControlRepositoryImpl) ResetForRetry(ctx context.Context, voucherCode string) error {
	res := r.db.WithContext(ctx).
		Model(&entity.DeliveryControl{}).
		Where("voucher_code = ?", voucherCode).
		Updates(map[string]interface{}{
			"delivered":        false,
			"delivered_at":     nil,
			"processing_since": nil,
			"next_retry_at":    nil,
			"attempts":         gorm.Expr("GREATEST(attempts - 1, 0)"),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset delivery control: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return etrelay.ErrControlNotFound
	}
	return nil
}

// isUniqueConstraintError 检查是否是唯一索引冲突错误
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	me := new(mysql.MySQLError)
	if errors.As(err, &me) {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// toDomainModel GORM 模型转换为领域对象
func (r *ControlRepositoryImpl) toDomainModel(po *entity.DeliveryControl) *etrelay.DeliveryControl {
	return &etrelay.DeliveryControl{
		VisitID:     po.VisitID,
		VoucherCode: po.VoucherCode,

		Delivered:   po.Delivered,
		DeliveredAt: po.DeliveredAt,

		Attempts:        po.Attempts,
		LastAttemptAt:   po.LastAttemptAt,
		NextRetryAt:     po.NextRetryAt,
		ProcessingSince: po.ProcessingSince,

		LastResponseStatus:  po.LastResponseStatus,
		LastResponseBody:    po.LastResponseBody,
		LastResponseHeaders: string(po.LastResponseHeaders),
		LastError:           po.LastError,
		LastPayloadSent:     string(po.LastPayloadSent),

		PatientName:              po.PatientName,
		ProfessionalName:         po.ProfessionalName,
		ProfessionalRegistration: po.ProfessionalRegistration,
		ExternalCaseCode:         po.ExternalCaseCode,

		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
}
