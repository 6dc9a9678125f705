package etrelay

// SendStatus 单条投递结果标签
type SendStatus string

const (
	// SendStatusSent 投递成功（下游返回 200 且已落库）
	SendStatusSent SendStatus = "SENT"
	// SendStatusBlocked 已投递或他人持锁，未进入管线
	SendStatusBlocked SendStatus = "BLOCKED"
	// SendStatusLockFailed 抢锁失败（并发竞争落败）
	SendStatusLockFailed SendStatus = "LOCK_FAILED"
	// SendStatusError 拉取/外发/内部错误
	SendStatusError SendStatus = "ERROR"
	// SendStatusDryRun 试运行，未进入管线
	SendStatusDryRun SendStatus = "DRY_RUN"
)

// SendOutcome 编排器单次调用的结果（所有退出路径都带标签，不抛未处理错误）
type SendOutcome struct {
	VisitID     string
	VoucherCode string
	Status      SendStatus
	HTTPStatus  int
	Attempts    int
	Reason      string
}

// Success 是否投递成功
func (o *SendOutcome) Success() bool {
	return o.Status == SendStatusSent
}

// RunReport 批量扫描报告（仅存在于单次调用内，不落库）
type RunReport struct {
	RunID     int64
	Total     int
	Processed int
	Succeeded int
	Blocked   int
	Errored   int
	DryRun    bool
	Items     []RunItem
}

// RunItem 批量扫描明细项
type RunItem struct {
	VisitID     string
	VoucherCode string
	Status      SendStatus
	HTTPStatus  int
	Attempts    int
	Reason      string
}

// Add 追加一条明细并累加计数
func (r *RunReport) Add(item RunItem) {
	r.Items = append(r.Items, item)

	switch item.Status {
	case SendStatusDryRun:
		return
	case SendStatusSent:
		r.Succeeded++
	case SendStatusBlocked, SendStatusLockFailed:
		r.Blocked++
	case SendStatusError:
		r.Errored++
	}
	r.Processed++
}
