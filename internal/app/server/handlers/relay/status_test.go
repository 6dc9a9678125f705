package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcp/sttrelay/internal/app/domains/entity/etrelay"
	"vcp/sttrelay/internal/app/domains/modules/mdnotify"
	"vcp/sttrelay/pkg/logger"
)

// fakeControlRepo 控制行仓储测试替身，状态查询只用到 GetByVoucher
type fakeControlRepo struct {
	control *etrelay.DeliveryControl
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
	return etrelay.Decision{Allowed: true}, nil
}

func (f *fakeControlRepo) AcquireLock(ctx context.Context, visitID, voucherCode string) (bool, error) {
	return false, nil
}

func (f *fakeControlRepo) ReleaseLock(ctx context.Context, visitID string) error { return nil }

func (f *fakeControlRepo) CleanupStuckLocks(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeControlRepo) RecordOutcome(ctx context.Context, visitID string, outcome *etrelay.DeliveryOutcome) error {
	return nil
}

func (f *fakeControlRepo) RecordError(ctx context.Context, visitID string, errMsg string, nextRetryAt *time.Time) error {
	return nil
}

func (f *fakeControlRepo) ResetForRetry(ctx context.Context, voucherCode string) error { return nil }

// fakeWaiter Smart Wait 测试替身
type fakeWaiter struct {
	waited  []string
	timeout time.Duration
	result  *mdnotify.VoucherResult
	err     error
}

func (f *fakeWaiter) WaitResult(ctx context.Context, voucherCode string, timeout time.Duration) (*mdnotify.VoucherResult, error) {
	f.waited = append(f.waited, voucherCode)
	f.timeout = timeout
	return f.result, f.err
}

func newStatusRouter(repo *fakeControlRepo, waiter ResultWaiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRelayHandler(nil, nil, repo, waiter, logger.NewNopLogger())
	engine := gin.New()
	engine.GET("/api/v1/relay/status/:voucher", h.Status)
	return engine
}

func deliveredControl() *etrelay.DeliveryControl {
	status := 200
	at := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return &etrelay.DeliveryControl{
		VisitID:            "visit-1",
		VoucherCode:        "VC-001",
		Delivered:          true,
		DeliveredAt:        &at,
		Attempts:           1,
		LastResponseStatus: &status,
	}
}

func TestStatus_SmartWaitBeforeQuery(t *testing.T) {
	waiter := &fakeWaiter{result: &mdnotify.VoucherResult{VoucherCode: "VC-001", Status: "SENT"}}
	engine := newStatusRouter(&fakeControlRepo{control: deliveredControl()}, waiter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relay/status/VC-001?wait_seconds=5", nil)
	engine.ServeHTTP(w, req)

	// 先等通知再查库，返回的是落库后的最终状态
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "VC-001")
	require.Equal(t, []string{"VC-001"}, waiter.waited)
	assert.Equal(t, 5*time.Second, waiter.timeout)
}

func TestStatus_WaitTimeoutFallsBackToQuery(t *testing.T) {
	waiter := &fakeWaiter{err: context.DeadlineExceeded}
	engine := newStatusRouter(&fakeControlRepo{control: deliveredControl()}, waiter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relay/status/VC-001?wait_seconds=2", nil)
	engine.ServeHTTP(w, req)

	// 等待超时降级为直接查库，不影响响应
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "VC-001")
}

func TestStatus_NoWaitSkipsWaiter(t *testing.T) {
	waiter := &fakeWaiter{}
	engine := newStatusRouter(&fakeControlRepo{control: deliveredControl()}, waiter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relay/status/VC-001", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, waiter.waited)
}

func TestStatus_WaitCappedAtMax(t *testing.T) {
	waiter := &fakeWaiter{}
	engine := newStatusRouter(&fakeControlRepo{control: deliveredControl()}, waiter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relay/status/VC-001?wait_seconds=600", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Duration(maxWaitSeconds)*time.Second, waiter.timeout)
}

func TestStatus_NotFound(t *testing.T) {
	engine := newStatusRouter(&fakeControlRepo{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relay/status/VC-404", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
