package entity

import (
	"time"
)

// Visit 问诊记录实体（只读，生命周期由主平台管理）
type Visit struct {
	ID          string `gorm:"column:id;primaryKey;type:varchar(64)"`
	VoucherCode string `gorm:"column:voucher_code;type:varchar(64);not null;uniqueIndex:uk_voucher"`

	// 状态与排班关联
	Status           string `gorm:"column:status;type:varchar(16);not null;index:idx_status_updated,priority:1"`
	ExternalCaseCode string `gorm:"column:external_case_code;type:varchar(64)"`

	// 展示字段
	PatientName              string `gorm:"column:patient_name;type:varchar(128)"`
	ProfessionalName         string `gorm:"column:professional_name;type:varchar(128)"`
	ProfessionalRegistration string `gorm:"column:professional_registration;type:varchar(32)"`

	// 时间里程碑
	StartedAt            *time.Time `gorm:"column:started_at"`
	EndedAt              *time.Time `gorm:"column:ended_at"`
	ProfessionalJoinedAt *time.Time `gorm:"column:professional_joined_at"`

	// 时间戳
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index:idx_status_updated,priority:2"`
}

// TableName 指定表名
func (Visit) TableName() string {
	return "visits"
}

// 问诊状态常量
const (
	VisitStatusFinalized = "FINALIZED"
)
