package rpvisit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/app/infra/persistence/entity"
)

// VisitRepositoryImpl 问诊记录仓储实现（MySQL）
type VisitRepositoryImpl struct {
	db          *gorm.DB
	lockTimeout time.Duration
	maxAttempts int
}

// NewVisitRepository 创建问诊记录仓储实例
// lockTimeout/maxAttempts 用于候选查询的重试策略过滤
func NewVisitRepository(db *gorm.DB, lockTimeout time.Duration, maxAttempts int) VisitRepository {
	return &VisitRepositoryImpl{
		db:          db,
		lockTimeout: lockTimeout,
		maxAttempts: maxAttempts,
	}
}

// GetByID 按问诊 ID 查询完整读模型
func (r *VisitRepositoryImpl) GetByID(ctx context.Context, visitID string) (*etvisit.Visit, error) {
	var po entity.Visit
	err := r.db.WithContext(ctx).Where("id = ?", visitID).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etvisit.ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return r.loadWithNote(ctx, &po)
}

// GetByVoucher 按凭证号查询完整读模型
func (r *VisitRepositoryImpl) GetByVoucher(ctx context.Context, voucherCode string) (*etvisit.Visit, error) {
	var po entity.Visit
	err := r.db.WithContext(ctx).Where("voucher_code = ?", voucherCode).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, etvisit.ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return r.loadWithNote(ctx, &po)
}

// candidateRow 候选查询的扫描行（显式定型，避免未定型数据外流）
type candidateRow struct {
	VisitID     string `gorm:"column:visit_id"`
	VoucherCode string `gorm:"column:voucher_code"`
	Attempts    int    `gorm:"column:attempts"`
}

// FindCandidates 查找可投递候选
func (r *VisitRepositoryImpl) FindCandidates(ctx context.Context, sinceDays, limit int) ([]etvisit.CandidateRef, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -sinceDays)
	stale := now.Add(-r.lockTimeout)

	var rows []candidateRow
	err := r.db.WithContext(ctx).
		Table("visits AS v").
		Select("v.id AS visit_id, v.voucher_code AS voucher_code, COALESCE(c.attempts, 0) AS attempts").
		Joins("JOIN clinical_notes AS n ON n.visit_id = v.id").
		Joins("LEFT JOIN stt_delivery_controls AS c ON c.visit_id = v.id").
		Where("v.status = ?", entity.VisitStatusFinalized).
		Where("v.updated_at >= ?", since).
		Where(`c.id IS NULL OR (
			c.delivered = 0
			AND c.attempts < ?
			AND (c.next_retry_at IS NULL OR c.next_retry_at <= ?)
			AND (c.processing_since IS NULL OR c.processing_since < ?)
		)`, r.maxAttempts, now, stale).
		Order("v.updated_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find candidates: %w", err)
	}

	candidates := make([]etvisit.CandidateRef, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, etvisit.CandidateRef{
			VisitID:     row.VisitID,
			VoucherCode: row.VoucherCode,
			Attempts:    row.Attempts,
		})
	}
	return candidates, nil
}

// loadWithNote 补充临床记录并转换为领域对象
func (r *VisitRepositoryImpl) loadWithNote(ctx context.Context, po *entity.Visit) (*etvisit.Visit, error) {
	visit := r.toDomainModel(po)

	var note entity.ClinicalNote
	err := r.db.WithContext(ctx).Where("visit_id = ?", po.ID).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 临床记录可能尚未建立，读模型容忍缺失
			return visit, nil
		}
		return nil, fmt.Errorf("failed to get clinical note: %w", err)
	}

	visit.Note = &etvisit.ClinicalNote{
		ClinicalStatus: note.ClinicalStatus,
		AttendanceType: note.AttendanceType,

		Complaint:   note.Complaint,
		History:     note.History,
		Diagnosis:   note.Diagnosis,
		Disposition: note.Disposition,

		CertificateIssued:  note.CertificateIssued,
		PrescriptionIssued: note.PrescriptionIssued,
		ReferralIssued:     note.ReferralIssued,
	}
	return visit, nil
}

// toDomainModel GORM 模型转换为领域对象
func (r *VisitRepositoryImpl) toDomainModel(po *entity.Visit) *etvisit.Visit {
	return &etvisit.Visit{
		ID:          po.ID,
		VoucherCode: po.VoucherCode,
		Status:      po.Status,

		ExternalCaseCode: po.ExternalCaseCode,

		PatientName:              po.PatientName,
		ProfessionalName:         po.ProfessionalName,
		ProfessionalRegistration: po.ProfessionalRegistration,

		StartedAt:            po.StartedAt,
		EndedAt:              po.EndedAt,
		ProfessionalJoinedAt: po.ProfessionalJoinedAt,

		UpdatedAt: po.UpdatedAt,
	}
}
