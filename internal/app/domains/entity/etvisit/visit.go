package etvisit

import (
	"errors"
	"time"
)

// 错误定义
var (
	ErrVisitNotFound = errors.New("visit not found")
)

// Visit 问诊记录读模型（领域对象，核心只读）
// 由仓储层将问诊、临床记录、排班与时间里程碑拼装为显式类型，
// 不允许未定型数据流入编排器
type Visit struct {
	ID          string
	VoucherCode string
	Status      string

	// 排班关联
	ExternalCaseCode string

	// 展示字段
	PatientName              string
	ProfessionalName         string
	ProfessionalRegistration string

	// 时间里程碑
	StartedAt            *time.Time
	EndedAt              *time.Time
	ProfessionalJoinedAt *time.Time

	// 临床记录（可能不存在）
	Note *ClinicalNote

	UpdatedAt time.Time
}

// ClinicalNote 临床记录（值对象）
type ClinicalNote struct {
	ClinicalStatus string
	AttendanceType string

	Complaint   string
	History     string
	Diagnosis   string
	Disposition string

	CertificateIssued  bool
	PrescriptionIssued bool
	ReferralIssued     bool
}

// CandidateRef 候选记录引用（批量扫描结果项）
type CandidateRef struct {
	VisitID     string
	VoucherCode string
	Attempts    int // 已有控制行的尝试次数，无控制行时为 0
}

// AttendanceStart 就诊开始时间
// 优先取正式开始里程碑，缺失时回退到医生加入时间，两者皆无返回 nil
func (v *Visit) AttendanceStart() *time.Time {
	if v.StartedAt != nil {
		return v.StartedAt
	}
	return v.ProfessionalJoinedAt
}
