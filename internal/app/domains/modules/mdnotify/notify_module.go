package mdnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vcp/sttrelay/internal/app/infra/persistence/redis"
	"vcp/sttrelay/internal/model"
	"vcp/sttrelay/pkg/logger"
)

// resultChannelPrefix 投递结果频道前缀，按凭证号区分
const resultChannelPrefix = "stt:result:"

// ResultChannel 返回指定凭证号对应的结果频道名
func ResultChannel(voucherCode string) string {
	return resultChannelPrefix + voucherCode
}

// NotifyModule 结果通知模块
// 职责：worker 完成单据投递后，通过 Redis Pub/Sub 推送结果；
// 接口侧可订阅对应频道实现 Smart Wait（不轮询数据库）
type NotifyModule struct {
	pubsub *redis.PubSubClient
	logger logger.Logger
}

// NewNotifyModule 创建通知模块实例
func NewNotifyModule(pubsub *redis.PubSubClient, log logger.Logger) *NotifyModule {
	return &NotifyModule{pubsub: pubsub, logger: log}
}

// VoucherResult 单凭证投递结果通知
type VoucherResult struct {
	VoucherCode string `json:"voucher_code"`
	Status      string `json:"status"`      // SENT / BLOCKED / LOCK_FAILED / ERROR / DRY_RUN
	HTTPStatus  int    `json:"http_status"` // 外部系统响应状态码（未发送时为 0）
	Reason      string `json:"reason,omitempty"`
	NotifiedAt  string `json:"notified_at"`
}

// NotifyResult 推送单凭证投递结果
// 通知是尽力而为的，失败只记日志不影响主链路
func (m *NotifyModule) NotifyResult(ctx context.Context, result *VoucherResult) {
	if m.pubsub == nil {
		return
	}

	result.NotifiedAt = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(result)
	if err != nil {
		m.logger.Warnf(ctx, "[NotifyModule] marshal result failed: voucher=%s, err=%v", result.VoucherCode, err)
		return
	}

	channel := ResultChannel(result.VoucherCode)
	if err := m.pubsub.Publish(ctx, channel, string(data)); err != nil {
		m.logger.Warnf(ctx, "[NotifyModule] publish result failed: channel=%s, err=%v", channel, err)
		return
	}

	m.logger.Infof(ctx, "[NotifyModule] result published: channel=%s, status=%s", channel, result.Status)
}

// WaitResult 订阅指定凭证号的结果频道并等待通知（Smart Wait）
// 超时返回 error，由调用方降级为查库
func (m *NotifyModule) WaitResult(ctx context.Context, voucherCode string, timeout time.Duration) (*VoucherResult, error) {
	if m.pubsub == nil {
		return nil, fmt.Errorf("pubsub not configured")
	}

	payload, err := m.pubsub.Subscribe(ctx, ResultChannel(voucherCode), timeout)
	if err != nil {
		return nil, err
	}

	var result VoucherResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode result notification failed: %w", err)
	}
	return &result, nil
}

// NotifyRunCallback 推送批次回调（批次级结果，供触发方查询）
func (m *NotifyModule) NotifyRunCallback(ctx context.Context, callback *model.RelayRunCallback) {
	if m.pubsub == nil {
		return
	}

	data, err := json.Marshal(callback)
	if err != nil {
		m.logger.Warnf(ctx, "[NotifyModule] marshal run callback failed: run_id=%d, err=%v", callback.RunID, err)
		return
	}

	channel := "stt:run:" + callback.RequestID
	if err := m.pubsub.Publish(ctx, channel, string(data)); err != nil {
		m.logger.Warnf(ctx, "[NotifyModule] publish run callback failed: channel=%s, err=%v", channel, err)
	}
}
