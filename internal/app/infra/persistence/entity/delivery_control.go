package entity

import (
	"time"

	"gorm.io/datatypes"
)

// DeliveryControl STT 投递控制行（每条问诊记录至多一行）
// 去重/加锁协议的唯一事实来源：delivered + processing_since + attempts
type DeliveryControl struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	VisitID     string `gorm:"column:visit_id;type:varchar(64);not null;uniqueIndex:uk_ctl_visit"`
	VoucherCode string `gorm:"column:voucher_code;type:varchar(64);not null;index:idx_ctl_voucher"`

	// 投递状态
	Delivered   bool       `gorm:"column:delivered;not null;default:0;index:idx_ctl_delivered"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`

	// 重试与锁
	Attempts        int        `gorm:"column:attempts;not null;default:0"`
	LastAttemptAt   *time.Time `gorm:"column:last_attempt_at"`
	NextRetryAt     *time.Time `gorm:"column:next_retry_at"`
	ProcessingSince *time.Time `gorm:"column:processing_since"`

	// 最近一次外发的响应快照（审计）
	LastResponseStatus  *int           `gorm:"column:last_response_status"`
	LastResponseBody    string         `gorm:"column:last_response_body;type:text"`
	LastResponseHeaders datatypes.JSON `gorm:"column:last_response_headers;type:json"`
	LastError           string         `gorm:"column:last_error;type:text"`
	LastPayloadSent     datatypes.JSON `gorm:"column:last_payload_sent;type:json"`

	// 冗余展示字段（仅用于报表）
	PatientName              string `gorm:"column:patient_name;type:varchar(128)"`
	ProfessionalName         string `gorm:"column:professional_name;type:varchar(128)"`
	ProfessionalRegistration string `gorm:"column:professional_registration;type:varchar(32)"`
	ExternalCaseCode         string `gorm:"column:external_case_code;type:varchar(64)"`

	// 时间戳
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (DeliveryControl) TableName() string {
	return "stt_delivery_controls"
}
