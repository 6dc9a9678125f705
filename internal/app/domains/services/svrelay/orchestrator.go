package svrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/app/domains/modules/mddispatch"
	"vcp/sttrelay/internal/app/domains/modules/mdnotify"
	"vcp/sttrelay/internal/app/domains/modules/mdrender"
	"vcp/sttrelay/internal/app/domains/repo/rpcontrol"
	"vcp/sttrelay/internal/app/domains/repo/rpvisit"
	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/logger"
)

// Renderer 文书渲染依赖（失败折叠为空文书，不返回 error）
type Renderer interface {
	Render(ctx context.Context, voucherCode string) mdrender.RenderResult
}

// Dispatcher 外发依赖（非 2xx 是正常结果，只有传输层失败才返回 error）
type Dispatcher interface {
	Dispatch(ctx context.Context, payload *model.STTPayload) (*mddispatch.DispatchResult, error)
}

// ResultNotifier 结果通知依赖（尽力而为）
type ResultNotifier interface {
	NotifyResult(ctx context.Context, result *mdnotify.VoucherResult)
}

// Orchestrator 单据投递编排器
// 固定步骤：CHECK → LOCK → FETCH → BUILD → DISPATCH → RECORD → RELEASE
// 所有退出路径都返回带标签的 SendOutcome，锁的释放由 defer 兜底
type Orchestrator struct {
	visitRepo   rpvisit.VisitRepository
	controlRepo rpcontrol.ControlRepository
	renderer    Renderer
	dispatcher  Dispatcher
	notifier    ResultNotifier // 可为 nil
	builder     *PayloadBuilder
	retryDelay  time.Duration // 外发失败后的固定重试间隔
	logger      logger.Logger
}

// NewOrchestrator 创建编排器实例
func NewOrchestrator(
	visitRepo rpvisit.VisitRepository,
	controlRepo rpcontrol.ControlRepository,
	renderer Renderer,
	dispatcher Dispatcher,
	notifier ResultNotifier,
	builder *PayloadBuilder,
	retryDelay time.Duration,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		visitRepo:   visitRepo,
		controlRepo: controlRepo,
		renderer:    renderer,
		dispatcher:  dispatcher,
		notifier:    notifier,
		builder:     builder,
		retryDelay:  retryDelay,
		logger:      log,
	}
}

// SendToSTT 投递单条问诊记录（至多一次语义）
func (s *Orchestrator) SendToSTT(ctx context.Context, visitID, voucherCode string) (outcome *etrelay.SendOutcome) {
	outcome = &etrelay.SendOutcome{VisitID: visitID, VoucherCode: voucherCode}
	defer s.notifyOutcome(ctx, outcome)

	// 1. CHECK：快速短路（已投递 / 他人持锁），正确性仍由抢锁保证
	decision, err := s.controlRepo.CanSend(ctx, visitID)
	if err != nil {
		outcome.Status = etrelay.SendStatusError
		outcome.Reason = fmt.Sprintf("check control failed: %v", err)
		return outcome
	}
	if !decision.Allowed {
		outcome.Status = etrelay.SendStatusBlocked
		outcome.Reason = decision.Reason
		return outcome
	}

	// 2. LOCK：原子抢占处理锁
	acquired, err := s.controlRepo.AcquireLock(ctx, visitID, voucherCode)
	if err != nil {
		outcome.Status = etrelay.SendStatusError
		outcome.Reason = fmt.Sprintf("acquire lock failed: %v", err)
		return outcome
	}
	if !acquired {
		outcome.Status = etrelay.SendStatusLockFailed
		outcome.Reason = "lock held by another worker or already delivered"
		return outcome
	}

	// 抢锁成功后填充尝试次数（尽力而为）
	if ctl, err := s.controlRepo.GetByVisitID(ctx, visitID); err == nil {
		outcome.Attempts = ctl.Attempts
	}

	// 锁释放兜底：panic 或遗漏的提前返回都不会留下僵死锁；
	// RecordOutcome / RecordError 自身清锁后置位 released，避免重复释放
	released := false
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf(ctx, "[Orchestrator] panic during send: visit=%s, panic=%v", visitID, r)
			outcome.Status = etrelay.SendStatusError
			outcome.Reason = fmt.Sprintf("panic: %v", r)
		}
		if !released {
			if err := s.controlRepo.ReleaseLock(ctx, visitID); err != nil {
				s.logger.Errorf(ctx, "[Orchestrator] release lock failed: visit=%s, err=%v", visitID, err)
			}
		}
	}()

	// 3. FETCH：拉取问诊读模型
	visit, err := s.visitRepo.GetByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, etvisit.ErrVisitNotFound) {
			// 记录不存在不安排重试
			released = s.recordError(ctx, visitID, "visit not found", nil)
			outcome.Status = etrelay.SendStatusError
			outcome.Reason = "visit not found"
			return outcome
		}
		nextRetry := time.Now().Add(s.retryDelay)
		released = s.recordError(ctx, visitID, fmt.Sprintf("fetch visit failed: %v", err), &nextRetry)
		outcome.Status = etrelay.SendStatusError
		outcome.Reason = fmt.Sprintf("fetch visit failed: %v", err)
		return outcome
	}

	// 4. BUILD：渲染文书（失败折叠为空）并构造报文
	renderResult := s.renderer.Render(ctx, voucherCode)
	payload := s.builder.Build(visit, renderResult.Document)

	// 5. DISPATCH：外发（传输层失败安排固定间隔重试）
	result, err := s.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		nextRetry := time.Now().Add(s.retryDelay)
		released = s.recordError(ctx, visitID, fmt.Sprintf("dispatch failed: %v", err), &nextRetry)
		outcome.Status = etrelay.SendStatusError
		outcome.Reason = fmt.Sprintf("dispatch failed: %v", err)
		return outcome
	}

	// 6. RECORD：落库外发结果（同一条 UPDATE 中清锁）
	// 非 2xx 与传输层失败同属可重试：按固定间隔安排下次重试
	payloadBytes, _ := json.Marshal(payload)
	dbOutcome := &etrelay.DeliveryOutcome{
		StatusCode:               result.StatusCode,
		Body:                     result.Body,
		Headers:                  result.Headers,
		Payload:                  payloadBytes,
		PatientName:              visit.PatientName,
		ProfessionalName:         visit.ProfessionalName,
		ProfessionalRegistration: visit.ProfessionalRegistration,
		ExternalCaseCode:         visit.ExternalCaseCode,
	}
	if !result.Delivered() {
		nextRetry := time.Now().Add(s.retryDelay)
		dbOutcome.NextRetryAt = &nextRetry
	}
	if err := s.controlRepo.RecordOutcome(ctx, visitID, dbOutcome); err != nil {
		s.logger.Errorf(ctx, "[Orchestrator] record outcome failed: visit=%s, status=%d, err=%v",
			visitID, result.StatusCode, err)
		outcome.Status = etrelay.SendStatusError
		outcome.HTTPStatus = result.StatusCode
		outcome.Reason = fmt.Sprintf("record outcome failed: %v", err)
		return outcome
	}
	released = true

	// 7. 结果判定：200 成功，其余状态码记为错误（到期后按尝试上限重拣）
	outcome.HTTPStatus = result.StatusCode
	if result.Delivered() {
		outcome.Status = etrelay.SendStatusSent
		s.logger.Infof(ctx, "[Orchestrator] delivered: visit=%s, voucher=%s, attempts=%d",
			visitID, voucherCode, outcome.Attempts)
	} else {
		outcome.Status = etrelay.SendStatusError
		outcome.Reason = fmt.Sprintf("stt returned status %d", result.StatusCode)
		s.logger.Warnf(ctx, "[Orchestrator] delivery rejected: visit=%s, status=%d", visitID, result.StatusCode)
	}
	return outcome
}

// BuildPreview 构造报文预览（只读：不抢锁、不外发、不落库）
func (s *Orchestrator) BuildPreview(ctx context.Context, voucherCode string) (*model.STTPayload, error) {
	visit, err := s.visitRepo.GetByVoucher(ctx, voucherCode)
	if err != nil {
		return nil, err
	}
	renderResult := s.renderer.Render(ctx, voucherCode)
	return s.builder.Build(visit, renderResult.Document), nil
}

// recordError 落库错误并返回锁是否已随之清空
func (s *Orchestrator) recordError(ctx context.Context, visitID, errMsg string, nextRetryAt *time.Time) bool {
	if err := s.controlRepo.RecordError(ctx, visitID, errMsg, nextRetryAt); err != nil {
		s.logger.Errorf(ctx, "[Orchestrator] record error failed: visit=%s, err=%v", visitID, err)
		return false
	}
	return true
}

// notifyOutcome 推送单据结果通知（尽力而为，notifier 未配置时跳过）
func (s *Orchestrator) notifyOutcome(ctx context.Context, outcome *etrelay.SendOutcome) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyResult(ctx, &mdnotify.VoucherResult{
		VoucherCode: outcome.VoucherCode,
		Status:      string(outcome.Status),
		HTTPStatus:  outcome.HTTPStatus,
		Reason:      outcome.Reason,
	})
}
