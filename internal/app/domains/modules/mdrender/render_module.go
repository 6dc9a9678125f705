package mdrender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vcp/sttrelay/pkg/logger"
)

// RenderResult 渲染结果（显式定型：成功 / 失败原因）
// 渲染失败不阻断投递主链路，在 PayloadBuilder 边界折叠为空串
type RenderResult struct {
	OK       bool
	Document string // Base64 文书内容
	Reason   string // 失败原因（仅供日志/排查）
}

// RenderModule 文书渲染模块
// 职责：调用渲染服务，将就诊凭证号渲染为报告文书（Base64）
type RenderModule struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewRenderModule 创建渲染模块实例
func NewRenderModule(baseURL string, timeout time.Duration, log logger.Logger) *RenderModule {
	return &RenderModule{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// renderResponse 渲染服务响应结构
type renderResponse struct {
	Document string `json:"document"` // Base64
}

// Render 渲染报告文书
// 任何失败都折叠为 RenderResult{OK:false}，不返回 error
func (m *RenderModule) Render(ctx context.Context, voucherCode string) RenderResult {
	if m.baseURL == "" {
		return RenderResult{OK: false, Reason: "render service not configured"}
	}

	endpoint := fmt.Sprintf("%s/api/v1/reports/%s", m.baseURL, voucherCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return m.failed(ctx, voucherCode, fmt.Sprintf("build request failed: %v", err))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return m.failed(ctx, voucherCode, fmt.Sprintf("render request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return m.failed(ctx, voucherCode, fmt.Sprintf("render service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return m.failed(ctx, voucherCode, fmt.Sprintf("read render response failed: %v", err))
	}

	var renderResp renderResponse
	if err := json.Unmarshal(body, &renderResp); err != nil {
		return m.failed(ctx, voucherCode, fmt.Sprintf("decode render response failed: %v", err))
	}

	if renderResp.Document == "" {
		return m.failed(ctx, voucherCode, "render service returned empty document")
	}

	return RenderResult{OK: true, Document: renderResp.Document}
}

// failed 记录失败原因并返回失败结果
func (m *RenderModule) failed(ctx context.Context, voucherCode, reason string) RenderResult {
	m.logger.Warnf(ctx, "[RenderModule] render failed: voucher=%s, reason=%s", voucherCode, reason)
	return RenderResult{OK: false, Reason: reason}
}
