package svrelay

import (
	"context"
	"errors"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/repo/rpcontrol"
	"vcp/sttrelay/internal/app/domains/repo/rpvisit"
	"vcp/sttrelay/pkg/idgen"
	"vcp/sttrelay/pkg/logger"
)

// 批量扫描缺省参数
const (
	DefaultLookbackDays = 7
	DefaultScanLimit    = 50
)

// RunParams 批量扫描参数
type RunParams struct {
	LookbackDays int  // 回看天数，<=0 时取缺省值
	Limit        int  // 单批上限，<=0 时取缺省值
	DryRun       bool // 试运行：只列出候选，不产生任何写入和外发
}

// Scanner 批量扫描服务
// 职责：回收僵死锁 → 拣选候选 → 逐条交给编排器，单条失败不中断批次
type Scanner struct {
	visitRepo    rpvisit.VisitRepository
	controlRepo  rpcontrol.ControlRepository
	orchestrator *Orchestrator
	logger       logger.Logger
}

// NewScanner 创建批量扫描服务实例
func NewScanner(visitRepo rpvisit.VisitRepository, controlRepo rpcontrol.ControlRepository,
	orchestrator *Orchestrator, log logger.Logger) *Scanner {
	return &Scanner{
		visitRepo:    visitRepo,
		controlRepo:  controlRepo,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// Run 执行一次批量扫描
// 1. 回收僵死锁（失败只记日志，不阻断本批）
// 2. 按回看窗口与重试策略拣选候选
// 3. 顺序逐条投递；试运行模式下仅登记明细
func (s *Scanner) Run(ctx context.Context, params RunParams) (*etrelay.RunReport, error) {
	if params.LookbackDays <= 0 {
		params.LookbackDays = DefaultLookbackDays
	}
	if params.Limit <= 0 {
		params.Limit = DefaultScanLimit
	}

	report := &etrelay.RunReport{
		RunID:  idgen.GenerateID(),
		DryRun: params.DryRun,
	}

	if !params.DryRun {
		if reclaimed, err := s.controlRepo.CleanupStuckLocks(ctx); err != nil {
			s.logger.Warnf(ctx, "[Scanner] cleanup stuck locks failed: err=%v", err)
		} else if reclaimed > 0 {
			s.logger.Infof(ctx, "[Scanner] reclaimed stuck locks: count=%d", reclaimed)
		}
	}

	candidates, err := s.visitRepo.FindCandidates(ctx, params.LookbackDays, params.Limit)
	if err != nil {
		return nil, err
	}
	report.Total = len(candidates)

	s.logger.Infof(ctx, "[Scanner] run started: run_id=%d, candidates=%d, lookback_days=%d, dry_run=%v",
		report.RunID, report.Total, params.LookbackDays, params.DryRun)

	for _, candidate := range candidates {
		if params.DryRun {
			report.Add(etrelay.RunItem{
				VisitID:     candidate.VisitID,
				VoucherCode: candidate.VoucherCode,
				Status:      etrelay.SendStatusDryRun,
				Attempts:    candidate.Attempts,
			})
			continue
		}

		outcome := s.orchestrator.SendToSTT(ctx, candidate.VisitID, candidate.VoucherCode)
		report.Add(etrelay.RunItem{
			VisitID:     outcome.VisitID,
			VoucherCode: outcome.VoucherCode,
			Status:      outcome.Status,
			HTTPStatus:  outcome.HTTPStatus,
			Attempts:    outcome.Attempts,
			Reason:      outcome.Reason,
		})
	}

	s.logger.Infof(ctx, "[Scanner] run finished: run_id=%d, processed=%d, succeeded=%d, blocked=%d, errored=%d",
		report.RunID, report.Processed, report.Succeeded, report.Blocked, report.Errored)
	return report, nil
}

// RetryVoucher 手工重投指定凭证号
// 先将控制行复位为可重投状态，再走完整投递链路
func (s *Scanner) RetryVoucher(ctx context.Context, voucherCode string) (*etrelay.SendOutcome, error) {
	visit, err := s.visitRepo.GetByVoucher(ctx, voucherCode)
	if err != nil {
		return nil, err
	}

	// 从未投递过的凭证没有控制行，直接走首次投递
	if err := s.controlRepo.ResetForRetry(ctx, voucherCode); err != nil && !errors.Is(err, etrelay.ErrControlNotFound) {
		return nil, err
	}

	s.logger.Infof(ctx, "[Scanner] manual retry: voucher=%s, visit=%s", voucherCode, visit.ID)
	return s.orchestrator.SendToSTT(ctx, visit.ID, visit.VoucherCode), nil
}
