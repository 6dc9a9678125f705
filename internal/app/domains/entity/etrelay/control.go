package etrelay

import (
	"errors"
	"time"
)

// 错误定义
var (
	ErrControlNotFound = errors.New("delivery control not found")
)

// DeliveryControl 投递控制行（领域对象）
type DeliveryControl struct {
	VisitID     string
	VoucherCode string

	Delivered   bool
	DeliveredAt *time.Time

	Attempts        int
	LastAttemptAt   *time.Time
	NextRetryAt     *time.Time
	ProcessingSince *time.Time

	LastResponseStatus  *int
	LastResponseBody    string
	LastResponseHeaders string
	LastError           string
	LastPayloadSent     string

	PatientName              string
	ProfessionalName         string
	ProfessionalRegistration string
	ExternalCaseCode         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeliveredOK 是否已成功投递（终态：不再重投）
func (c *DeliveryControl) DeliveredOK() bool {
	return c.Delivered && c.LastResponseStatus != nil && *c.LastResponseStatus == 200
}

// Decision CanSend 判定结果（仅作快速短路，正确性由 AcquireLock 保证）
type Decision struct {
	Allowed bool
	Reason  string
}

// DeliveryOutcome 单次外发的落库结果
type DeliveryOutcome struct {
	StatusCode  int
	Body        string
	Headers     map[string][]string
	Payload     []byte     // 实际发送的报文快照
	NextRetryAt *time.Time // 非 2xx 时的下次重试时间，成功投递时清空

	// 冗余展示字段（来自问诊记录）
	PatientName              string
	ProfessionalName         string
	ProfessionalRegistration string
	ExternalCaseCode         string
}

// Delivered 本次外发是否判定为成功投递
func (o *DeliveryOutcome) Delivered() bool {
	return o.StatusCode == 200
}
