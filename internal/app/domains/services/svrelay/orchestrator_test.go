package svrelay

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/app/domains/modules/mddispatch"
	"vcp/sttrelay/internal/app/domains/modules/mdrender"
	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/logger"
)

// fakeVisitRepo 问诊仓储测试替身
type fakeVisitRepo struct {
	visits     map[string]*etvisit.Visit
	getErr     error
	candidates []etvisit.CandidateRef
	findErr    error
}

func (f *fakeVisitRepo) GetByID(ctx context.Context, visitID string) (*etvisit.Visit, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if v, ok := f.visits[visitID]; ok {
		return v, nil
	}
	return nil, etvisit.ErrVisitNotFound
}

func (f *fakeVisitRepo) GetByVoucher(ctx context.Context, voucherCode string) (*etvisit.Visit, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, v := range f.visits {
		if v.VoucherCode == voucherCode {
			return v, nil
		}
	}
	return nil, etvisit.ErrVisitNotFound
}

func (f *fakeVisitRepo) FindCandidates(ctx context.Context, sinceDays, limit int) ([]etvisit.CandidateRef, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if limit < len(f.candidates) {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

// fakeControlRepo 控制行仓储测试替身，记录所有写操作
type fakeControlRepo struct {
	decision   etrelay.Decision
	canSendErr error

	acquired   bool
	acquireErr error
	control    *etrelay.DeliveryControl

	releaseCalled   bool
	cleanupCalled   bool
	cleanupReturned int64

	recordedOutcome   *etrelay.DeliveryOutcome
	recordOutcomeErr  error
	recordedErrMsg    string
	recordedNextRetry *time.Time
	recordErrCalled   bool

	resetCalled  bool
	resetVoucher string
	resetErr     error
}

func (f *fakeControlRepo) GetByVisitID(ctx context.Context, visitID string) (*etrelay.DeliveryControl, error) {
	if f.control == nil {
		return nil, etrelay.ErrControlNotFound
	}
	return f.control, nil
}

func (f *fakeControlRepo) GetByVoucher(ctx context.Context, voucherCode string) (*etrelay.DeliveryControl, error) {
	if f.control == nil {
		return nil, etrelay.ErrControlNotFound
	}
	return f.control, nil
}

func (f *fakeControlRepo) CanSend(ctx context.Context, visitID string) (etrelay.Decision, error) {
	if f.canSendErr != nil {
		return etrelay.Decision{}, f.canSendErr
	}
	return f.decision, nil
}

func (f *fakeControlRepo) AcquireLock(ctx context.Context, visitID, voucherCode string) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	return f.acquired, nil
}

func (f *fakeControlRepo) ReleaseLock(ctx context.Context, visitID string) error {
	f.releaseCalled = true
	return nil
}

func (f *fakeControlRepo) CleanupStuckLocks(ctx context.Context) (int64, error) {
	f.cleanupCalled = true
	return f.cleanupReturned, nil
}

func (f *fakeControlRepo) RecordOutcome(ctx context.Context, visitID string, outcome *etrelay.DeliveryOutcome) error {
	if f.recordOutcomeErr != nil {
		return f.recordOutcomeErr
	}
	f.recordedOutcome = outcome
	return nil
}

func (f *fakeControlRepo) RecordError(ctx context.Context, visitID string, errMsg string, nextRetryAt *time.Time) error {
	f.recordErrCalled = true
	f.recordedErrMsg = errMsg
	f.recordedNextRetry = nextRetryAt
	return nil
}

func (f *fakeControlRepo) ResetForRetry(ctx context.Context, voucherCode string) error {
	f.resetCalled = true
	f.resetVoucher = voucherCode
	return f.resetErr
}

// fakeRenderer 渲染模块测试替身
type fakeRenderer struct {
	result mdrender.RenderResult
}

func (f *fakeRenderer) Render(ctx context.Context, voucherCode string) mdrender.RenderResult {
	return f.result
}

// fakeDispatcher 投递模块测试替身
type fakeDispatcher struct {
	result     *mddispatch.DispatchResult
	err        error
	dispatched []*model.STTPayload
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, payload *model.STTPayload) (*mddispatch.DispatchResult, error) {
	f.dispatched = append(f.dispatched, payload)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestOrchestrator(visitRepo *fakeVisitRepo, controlRepo *fakeControlRepo,
	dispatcher *fakeDispatcher) *Orchestrator {
	builder := NewPayloadBuilder("UTC")
	return NewOrchestrator(visitRepo, controlRepo,
		&fakeRenderer{result: mdrender.RenderResult{OK: true, Document: "ZG9j"}},
		dispatcher, nil, builder, 30*time.Minute, logger.NewNopLogger())
}

func testVisit() *etvisit.Visit {
	ended := time.Date(2026, 8, 15, 13, 25, 0, 0, time.UTC)
	return &etvisit.Visit{
		ID:          "visit-1",
		VoucherCode: "VC-001",
		PatientName: "Maria Silva",
		EndedAt:     &ended,
		Note:        &etvisit.ClinicalNote{Diagnosis: "flu"},
	}
}

func TestSendToSTT_Success(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
		control:  &etrelay.DeliveryControl{VisitID: "visit-1", Attempts: 1},
	}
	dispatcher := &fakeDispatcher{result: &mddispatch.DispatchResult{
		StatusCode: http.StatusOK,
		Body:       `{"ok":true}`,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
	}}

	orch := newTestOrchestrator(visitRepo, controlRepo, dispatcher)
	outcome := orch.SendToSTT(context.Background(), "visit-1", "VC-001")

	assert.Equal(t, etrelay.SendStatusSent, outcome.Status)
	assert.Equal(t, http.StatusOK, outcome.HTTPStatus)
	assert.Equal(t, 1, outcome.Attempts)
	assert.True(t, outcome.Success())

	// 外发结果完整落库，锁随 RecordOutcome 清空，不再二次释放
	require.NotNil(t, controlRepo.recordedOutcome)
	assert.Equal(t, http.StatusOK, controlRepo.recordedOutcome.StatusCode)
	assert.Equal(t, "Maria Silva", controlRepo.recordedOutcome.PatientName)
	assert.NotEmpty(t, controlRepo.recordedOutcome.Payload)
	assert.Nil(t, controlRepo.recordedOutcome.NextRetryAt)
	assert.False(t, controlRepo.releaseCalled)
	assert.False(t, controlRepo.recordErrCalled)

	// 报文携带渲染文书
	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, "ZG9j", dispatcher.dispatched[0].DocumentBase64)
}

func TestSendToSTT_BlockedByCheck(t *testing.T) {
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: false, Reason: "already delivered at 2026-08-01T10:00:00Z"},
	}
	dispatcher := &fakeDispatcher{}

	orch := newTestOrchestrator(&fakeVisitRepo{}, controlRepo, dispatcher)
	outcome := orch.SendToSTT(context.Background(), "visit-1", "VC-001")

	assert.Equal(t, etrelay.SendStatusBlocked, outcome.Status)
	assert.Contains(t, outcome.Reason, "already delivered")
	assert.Empty(t, dispatcher.dispatched)
	assert.False(t, controlRepo.releaseCalled)
}

func TestSendToSTT_LockFailed(t *testing.T) {
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: false,
	}
	dispatcher := &fakeDispatcher{}

	orch := newTestOrchestrator(&fakeVisitRepo{}, controlRepo, dispatcher)
	outcome := orch.SendToSTT(context.Background(), "visit-1", "VC-001")

	assert.Equal(t, etrelay.SendStatusLockFailed, outcome.Status)
	assert.Empty(t, dispatcher.dispatched)
	// 没抢到锁就没有锁可释放
	assert.False(t, controlRepo.releaseCalled)
}

func TestSendToSTT_TransportError(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
	}
	dispatcher := &fakeDispatcher{err: errors.New("dial tcp: i/o timeout")}

	orch := newTestOrchestrator(visitRepo, controlRepo, dispatcher)

	before := time.Now()
	outcome := orch.SendToSTT(context.Background(), "visit-1", "VC-001")

	assert.Equal(t, etrelay.SendStatusError, outcome.Status)
	assert.Contains(t, outcome.Reason, "dispatch failed")

	// 错误落库并安排固定 30 分钟后重试，锁随 RecordError 清空
	assert.True(t, controlRepo.recordErrCalled)
	assert.Contains(t, controlRepo.recordedErrMsg, "i/o timeout")
	require.NotNil(t, controlRepo.recordedNextRetry)
	assert.WithinDuration(t, before.Add(30*time.Minute), *controlRepo.recordedNextRetry, 5*time.Second)
	assert.False(t, controlRepo.releaseCalled)
	assert.Nil(t, controlRepo.recordedOutcome)
}

func TestSendToSTT_VisitGone(t *testing.T) {
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
	}
	dispatcher := &fakeDispatcher{}

	orch := newTestOrchestrator(&fakeVisitRepo{}, controlRepo, dispatcher)
	outcome := orch.SendToSTT(context.Background(), "visit-gone", "VC-404")

	assert.Equal(t, etrelay.SendStatusError, outcome.Status)
	assert.Equal(t, "visit not found", outcome.Reason)

	// 记录不存在不安排重试
	assert.True(t, controlRepo.recordErrCalled)
	assert.Nil(t, controlRepo.recordedNextRetry)
	assert.Empty(t, dispatcher.dispatched)
}

func TestSendToSTT_RejectedByDownstream(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
	}
	dispatcher := &fakeDispatcher{result: &mddispatch.DispatchResult{
		StatusCode: http.StatusUnprocessableEntity,
		Body:       `{"error":"invalid case code"}`,
	}}

	orch := newTestOrchestrator(visitRepo, controlRepo, dispatcher)

	before := time.Now()
	outcome := orch.SendToSTT(context.Background(), "visit-1", "VC-001")

	// 非 200 也要完整落库（响应快照），结果标记为错误
	assert.Equal(t, etrelay.SendStatusError, outcome.Status)
	assert.Equal(t, http.StatusUnprocessableEntity, outcome.HTTPStatus)
	require.NotNil(t, controlRepo.recordedOutcome)
	assert.Equal(t, http.StatusUnprocessableEntity, controlRepo.recordedOutcome.StatusCode)
	assert.False(t, controlRepo.recordedOutcome.Delivered())

	// 非 2xx 与传输层失败同样安排固定 30 分钟后重试
	require.NotNil(t, controlRepo.recordedOutcome.NextRetryAt)
	assert.WithinDuration(t, before.Add(30*time.Minute), *controlRepo.recordedOutcome.NextRetryAt, 5*time.Second)
}

func TestSendToSTT_RecordOutcomeFailureReleasesLock(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{
		decision:         etrelay.Decision{Allowed: true},
		acquired:         true,
		recordOutcomeErr: errors.New("db gone"),
	}
	dispatcher := &fakeDispatcher{result: &mddispatch.DispatchResult{StatusCode: http.StatusOK}}

	orch := newTestOrchestrator(visitRepo, controlRepo, dispatcher)
	outcome := orch.SendToSTT(context.Background(), "visit-1", "VC-001")

	assert.Equal(t, etrelay.SendStatusError, outcome.Status)
	// 落库失败时由 defer 兜底释放锁
	assert.True(t, controlRepo.releaseCalled)
}

func TestBuildPreview_ReadOnly(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{}
	dispatcher := &fakeDispatcher{}

	orch := newTestOrchestrator(visitRepo, controlRepo, dispatcher)
	payload, err := orch.BuildPreview(context.Background(), "VC-001")

	require.NoError(t, err)
	assert.Equal(t, "VC-001", payload.VoucherCode)
	assert.Equal(t, "flu", payload.Diagnosis)

	// 预览不加锁、不外发、不落库
	assert.Empty(t, dispatcher.dispatched)
	assert.False(t, controlRepo.releaseCalled)
	assert.False(t, controlRepo.recordErrCalled)
	assert.Nil(t, controlRepo.recordedOutcome)
}
