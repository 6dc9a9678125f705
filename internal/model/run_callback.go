package model

// RelayRunCallback 批量扫描回调消息（标准化）
// 用于 worker → 调度方回调队列的消息传递
type RelayRunCallback struct {
	RequestID   string         `json:"request_id"`       // 对应触发任务的 request_id（链路追踪）
	RunID       int64          `json:"run_id"`           // 批次 ID
	Status      string         `json:"status"`           // 回调状态: SUCCESS / FAILED
	Report      *RunReportData `json:"report,omitempty"` // 批次报告（成功时返回）
	Error       string         `json:"error,omitempty"`  // 错误信息（失败时返回）
	ProcessedAt int64          `json:"processed_at"`     // 处理时间戳（Unix timestamp）
}

// 回调状态常量
const (
	CallbackStatusSuccess = "SUCCESS"
	CallbackStatusFailed  = "FAILED"
)

// RunReportData 批次报告数据（队列/HTTP 共用的传输结构）
type RunReportData struct {
	RunID     int64         `json:"run_id"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Blocked   int           `json:"blocked"`
	Errored   int           `json:"errored"`
	DryRun    bool          `json:"dry_run"`
	Items     []RunItemData `json:"items"`
}

// RunItemData 批次报告明细
type RunItemData struct {
	VisitID     string `json:"visit_id"`
	VoucherCode string `json:"voucher_code"`
	Status      string `json:"status"` // SENT / BLOCKED / LOCK_FAILED / ERROR / DRY_RUN
	HTTPStatus  int    `json:"http_status,omitempty"`
	Attempts    int    `json:"attempts"`
	Reason      string `json:"reason,omitempty"`
}
