package svrelay

import (
	"time"

	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/model"
)

// PayloadBuilder 报文构造器（纯函数式：不访问数据库和网络）
// 所有缺省值与时区规则集中在此处，便于离线验证
type PayloadBuilder struct {
	loc *time.Location
	now func() time.Time // 可注入，测试时固定时钟
}

// NewPayloadBuilder 创建报文构造器
// tzName 为 IANA 时区名，加载失败时回退 UTC
func NewPayloadBuilder(tzName string) *PayloadBuilder {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}
	return &PayloadBuilder{loc: loc, now: time.Now}
}

// Build 由问诊读模型构造外发报文
// 缺省规则：
// 1. 临床状态缺省 "effective"，就诊类型缺省 "05"
// 2. 自由文本字段缺省空串，文书开具标记缺省 false
// 3. 开始时间：正式开始 → 医生加入 → null
// 4. 结束时间：结束里程碑缺失时取配置时区的当前时间
func (b *PayloadBuilder) Build(visit *etvisit.Visit, documentBase64 string) *model.STTPayload {
	p := &model.STTPayload{
		VoucherCode:              visit.VoucherCode,
		ExternalCaseCode:         visit.ExternalCaseCode,
		PatientName:              visit.PatientName,
		ProfessionalName:         visit.ProfessionalName,
		ProfessionalRegistration: visit.ProfessionalRegistration,

		ClinicalStatus: model.DefaultClinicalStatus,
		AttendanceType: model.DefaultAttendanceType,

		DocumentBase64: documentBase64,
	}

	if note := visit.Note; note != nil {
		if note.ClinicalStatus != "" {
			p.ClinicalStatus = note.ClinicalStatus
		}
		if note.AttendanceType != "" {
			p.AttendanceType = note.AttendanceType
		}
		p.Complaint = note.Complaint
		p.History = note.History
		p.Diagnosis = note.Diagnosis
		p.Disposition = note.Disposition
		p.CertificateIssued = note.CertificateIssued
		p.PrescriptionIssued = note.PrescriptionIssued
		p.ReferralIssued = note.ReferralIssued
	}

	if start := visit.AttendanceStart(); start != nil {
		s := b.formatTime(*start)
		p.AttendanceStart = &s
	}

	if visit.EndedAt != nil {
		p.AttendanceEnd = b.formatTime(*visit.EndedAt)
	} else {
		p.AttendanceEnd = b.formatTime(b.now())
	}

	return p
}

// formatTime 统一时间序列化：转配置时区后输出带偏移的 RFC3339
func (b *PayloadBuilder) formatTime(t time.Time) string {
	return t.In(b.loc).Format(time.RFC3339)
}
