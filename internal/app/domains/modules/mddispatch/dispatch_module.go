package mddispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/errorutil"
	"vcp/sttrelay/pkg/logger"
)

// DispatchResult 外部系统投递结果
// 非 2xx 也是正常结果（由编排层按状态码落库），只有网络层失败才返回 error
type DispatchResult struct {
	StatusCode int
	Body       string
	Headers    http.Header
}

// Delivered 是否投递成功（以 200 为准）
func (r *DispatchResult) Delivered() bool {
	return r.StatusCode == http.StatusOK
}

// DispatchModule 投递模块
// 职责：将就诊报文 POST 到外部报告系统；测试模式下不产生任何网络 I/O
type DispatchModule struct {
	url      string
	token    string
	testMode bool
	client   *http.Client
	logger   logger.Logger
}

// NewDispatchModule 创建投递模块实例
func NewDispatchModule(url, token string, timeout time.Duration, testMode bool, log logger.Logger) *DispatchModule {
	return &DispatchModule{
		url:      url,
		token:    token,
		testMode: testMode,
		client:   &http.Client{Timeout: timeout},
		logger:   log,
	}
}

// Dispatch 投递报文
// 1. 测试模式：打印报文并合成 200 响应，不访问网络
// 2. 正常模式：POST JSON 报文，携带 Bearer 令牌
func (m *DispatchModule) Dispatch(ctx context.Context, payload *model.STTPayload) (*DispatchResult, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errorutil.NonRetriableWithDetails("marshal payload failed", err.Error())
	}

	if m.testMode {
		m.logger.Infof(ctx, "[DispatchModule] test mode, payload not sent: voucher=%s, payload=%s",
			payload.VoucherCode, string(payloadBytes))
		return &DispatchResult{
			StatusCode: http.StatusOK,
			Body:       `{"test_mode":true}`,
			Headers:    http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, errorutil.NonRetriableWithDetails("build dispatch request failed", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.token)

	resp, err := m.client.Do(req)
	if err != nil {
		// 网络层失败（超时、连接拒绝等），可重试
		return nil, errorutil.RetriableWithDetails("dispatch request failed", fmt.Sprintf("%+v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorutil.RetriableWithDetails("read dispatch response failed", err.Error())
	}

	m.logger.Infof(ctx, "[DispatchModule] dispatch done: voucher=%s, status=%d",
		payload.VoucherCode, resp.StatusCode)

	return &DispatchResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Headers:    resp.Header,
	}, nil
}
