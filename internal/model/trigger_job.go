package model

// 任务动作类型常量
const (
	// ActionProcessPending 批量扫描待投递记录
	ActionProcessPending = "stt_process_pending"
	// ActionRetryVoucher 单条记录重投
	ActionRetryVoucher = "stt_retry_voucher"
)

// RelayJob 标准化触发任务消息
// 用于 调度方/apiserver → worker 的消息传递
type RelayJob struct {
	Payload RelayJobPayload `json:"payload"`
}

// RelayJobPayload Job 负载
type RelayJobPayload struct {
	Data RelayJobData `json:"data"`
}

// RelayJobData Job 数据层
type RelayJobData struct {
	// 元信息
	RequestID  string `json:"request_id"`  // 请求 ID（全链路追踪）
	OrgID      string `json:"org_id"`      // 组织 ID（当前固定为 "0"）
	ActionType string `json:"action_type"` // 动作类型: stt_process_pending / stt_retry_voucher
	ID         string `json:"id"`          // 业务 ID（重投时为凭证号）

	// 业务数据
	Data RelayJobParams `json:"data"`
}

// RelayJobParams 触发任务业务参数
type RelayJobParams struct {
	LookbackDays int    `json:"lookback_days"` // 回溯窗口（天）
	Limit        int    `json:"limit"`         // 候选上限
	DryRun       bool   `json:"dry_run"`       // 试运行：不加锁、不外发、不写控制行
	VoucherCode  string `json:"voucher_code"`  // 重投目标凭证号（stt_retry_voucher 使用）
}
