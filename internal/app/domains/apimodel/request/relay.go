package request

// ProcessRelayRequest 触发批量扫描请求
type ProcessRelayRequest struct {
	LookbackDays int  `json:"lookback_days" binding:"omitempty,min=1,max=90" example:"7"`
	Limit        int  `json:"limit" binding:"omitempty,min=1,max=500" example:"50"`
	DryRun       bool `json:"dry_run" example:"false"`
}
