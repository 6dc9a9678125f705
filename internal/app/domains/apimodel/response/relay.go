package response

import "time"

// RunReportResponse 批量扫描报告（DTO）
type RunReportResponse struct {
	RunID     int64             `json:"run_id"`
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Succeeded int               `json:"succeeded"`
	Blocked   int               `json:"blocked"`
	Errored   int               `json:"errored"`
	DryRun    bool              `json:"dry_run"`
	Items     []RunItemResponse `json:"items"`
}

// RunItemResponse 批量扫描明细项（DTO）
type RunItemResponse struct {
	VisitID     string `json:"visit_id"`
	VoucherCode string `json:"voucher_code"`
	Status      string `json:"status"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	Attempts    int    `json:"attempts"`
	Reason      string `json:"reason,omitempty"`
}

// SendOutcomeResponse 单条投递结果（DTO）
type SendOutcomeResponse struct {
	VisitID     string `json:"visit_id"`
	VoucherCode string `json:"voucher_code"`
	Status      string `json:"status"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	Attempts    int    `json:"attempts"`
	Reason      string `json:"reason,omitempty"`
}

// ControlStatusResponse 投递控制行状态（DTO）
type ControlStatusResponse struct {
	VisitID     string     `json:"visit_id"`
	VoucherCode string     `json:"voucher_code"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	Processing    bool       `json:"processing"`

	LastResponseStatus *int   `json:"last_response_status,omitempty"`
	LastError          string `json:"last_error,omitempty"`

	PatientName      string `json:"patient_name,omitempty"`
	ProfessionalName string `json:"professional_name,omitempty"`
	ExternalCaseCode string `json:"external_case_code,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
