package svrelay

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/app/domains/modules/mddispatch"
	"vcp/sttrelay/pkg/logger"
)

func newTestScanner(visitRepo *fakeVisitRepo, controlRepo *fakeControlRepo,
	dispatcher *fakeDispatcher) *Scanner {
	orch := newTestOrchestrator(visitRepo, controlRepo, dispatcher)
	return NewScanner(visitRepo, controlRepo, orch, logger.NewNopLogger())
}

func TestScannerRun_DryRunTouchesNothing(t *testing.T) {
	visitRepo := &fakeVisitRepo{
		candidates: []etvisit.CandidateRef{
			{VisitID: "visit-1", VoucherCode: "VC-001", Attempts: 1},
			{VisitID: "visit-2", VoucherCode: "VC-002"},
		},
	}
	controlRepo := &fakeControlRepo{}
	dispatcher := &fakeDispatcher{}

	scanner := newTestScanner(visitRepo, controlRepo, dispatcher)
	report, err := scanner.Run(context.Background(), RunParams{DryRun: true})

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Total)
	require.Len(t, report.Items, 2)
	assert.Equal(t, etrelay.SendStatusDryRun, report.Items[0].Status)
	assert.Equal(t, 1, report.Items[0].Attempts)

	// 试运行不进管线：不计 processed，不清理、不外发、不写库
	assert.Equal(t, 0, report.Processed)
	assert.False(t, controlRepo.cleanupCalled)
	assert.Empty(t, dispatcher.dispatched)
	assert.Nil(t, controlRepo.recordedOutcome)
	assert.False(t, controlRepo.recordErrCalled)
}

func TestScannerRun_CleanupRunsBeforeBatch(t *testing.T) {
	visitRepo := &fakeVisitRepo{}
	controlRepo := &fakeControlRepo{cleanupReturned: 2}
	scanner := newTestScanner(visitRepo, controlRepo, &fakeDispatcher{})

	report, err := scanner.Run(context.Background(), RunParams{})

	require.NoError(t, err)
	assert.True(t, controlRepo.cleanupCalled)
	assert.Equal(t, 0, report.Total)
	assert.NotZero(t, report.RunID)
}

func TestScannerRun_PerCandidateFaultIsolation(t *testing.T) {
	// visit-2 在仓储中不存在，单条失败不应中断后续候选
	visitRepo := &fakeVisitRepo{
		visits: map[string]*etvisit.Visit{
			"visit-1": testVisit(),
			"visit-3": {ID: "visit-3", VoucherCode: "VC-003"},
		},
		candidates: []etvisit.CandidateRef{
			{VisitID: "visit-1", VoucherCode: "VC-001"},
			{VisitID: "visit-2", VoucherCode: "VC-002"},
			{VisitID: "visit-3", VoucherCode: "VC-003"},
		},
	}
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
	}
	dispatcher := &fakeDispatcher{result: &mddispatch.DispatchResult{StatusCode: http.StatusOK}}

	scanner := newTestScanner(visitRepo, controlRepo, dispatcher)
	report, err := scanner.Run(context.Background(), RunParams{})

	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 0, report.Blocked)
	require.Len(t, report.Items, 3)
	assert.Equal(t, etrelay.SendStatusError, report.Items[1].Status)
	assert.Len(t, dispatcher.dispatched, 2)
}

func TestScannerRun_CandidateQueryFailure(t *testing.T) {
	visitRepo := &fakeVisitRepo{findErr: errors.New("db gone")}
	scanner := newTestScanner(visitRepo, &fakeControlRepo{}, &fakeDispatcher{})

	_, err := scanner.Run(context.Background(), RunParams{})
	assert.Error(t, err)
}

func TestRetryVoucher_ResetsThenSends(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
	}
	dispatcher := &fakeDispatcher{result: &mddispatch.DispatchResult{StatusCode: http.StatusOK}}

	scanner := newTestScanner(visitRepo, controlRepo, dispatcher)
	outcome, err := scanner.RetryVoucher(context.Background(), "VC-001")

	require.NoError(t, err)
	assert.True(t, controlRepo.resetCalled)
	assert.Equal(t, "VC-001", controlRepo.resetVoucher)
	assert.Equal(t, etrelay.SendStatusSent, outcome.Status)
}

func TestRetryVoucher_ToleratesMissingControl(t *testing.T) {
	visitRepo := &fakeVisitRepo{visits: map[string]*etvisit.Visit{"visit-1": testVisit()}}
	controlRepo := &fakeControlRepo{
		decision: etrelay.Decision{Allowed: true},
		acquired: true,
		resetErr: etrelay.ErrControlNotFound,
	}
	dispatcher := &fakeDispatcher{result: &mddispatch.DispatchResult{StatusCode: http.StatusOK}}

	scanner := newTestScanner(visitRepo, controlRepo, dispatcher)
	outcome, err := scanner.RetryVoucher(context.Background(), "VC-001")

	require.NoError(t, err)
	assert.Equal(t, etrelay.SendStatusSent, outcome.Status)
}

func TestRetryVoucher_UnknownVoucher(t *testing.T) {
	scanner := newTestScanner(&fakeVisitRepo{}, &fakeControlRepo{}, &fakeDispatcher{})

	_, err := scanner.RetryVoucher(context.Background(), "VC-404")
	assert.ErrorIs(t, err, etvisit.ErrVisitNotFound)
}
