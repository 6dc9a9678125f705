package entity

import "time"

// ClinicalNote 临床记录实体（只读）
type ClinicalNote struct {
	ID      uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	VisitID string `gorm:"column:visit_id;type:varchar(64);not null;uniqueIndex:uk_note_visit"`

	// 状态与类型
	ClinicalStatus string `gorm:"column:clinical_status;type:varchar(32)"`
	AttendanceType string `gorm:"column:attendance_type;type:varchar(8)"`

	// 记录正文
	Complaint   string `gorm:"column:complaint;type:text"`
	History     string `gorm:"column:history;type:text"`
	Diagnosis   string `gorm:"column:diagnosis;type:text"`
	Disposition string `gorm:"column:disposition;type:text"`

	// 文书开具标记
	CertificateIssued  bool `gorm:"column:certificate_issued;not null;default:0"`
	PrescriptionIssued bool `gorm:"column:prescription_issued;not null;default:0"`
	ReferralIssued     bool `gorm:"column:referral_issued;not null;default:0"`

	// 时间戳
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (ClinicalNote) TableName() string {
	return "clinical_notes"
}
