package model

// STT 报文默认值
const (
	// DefaultClinicalStatus 临床记录状态缺省值
	DefaultClinicalStatus = "effective"
	// DefaultAttendanceType 就诊类型缺省编码（远程问诊）
	DefaultAttendanceType = "05"
)

// STTPayload STT 投递报文（外发 JSON 结构）
// 字段与 STT 接收端约定一一对应，缺省值规则见 PayloadBuilder
type STTPayload struct {
	VoucherCode              string `json:"voucher_code"`              // 就诊凭证号
	ExternalCaseCode         string `json:"external_case_code"`       // 外部病例编码（排班关联）
	PatientName              string `json:"patient_name"`              // 患者姓名
	ProfessionalName         string `json:"professional_name"`         // 医生姓名
	ProfessionalRegistration string `json:"professional_registration"` // 医生执业注册号

	ClinicalStatus string `json:"clinical_status"` // 临床记录状态，缺省 "effective"
	AttendanceType string `json:"attendance_type"` // 就诊类型编码，缺省 "05"

	Complaint   string `json:"complaint"`   // 主诉
	History     string `json:"history"`     // 病史
	Diagnosis   string `json:"diagnosis"`   // 诊断
	Disposition string `json:"disposition"` // 处置意见

	CertificateIssued  bool `json:"certificate_issued"`  // 是否开具诊断证明
	PrescriptionIssued bool `json:"prescription_issued"` // 是否开具处方
	ReferralIssued     bool `json:"referral_issued"`     // 是否开具转诊单

	// 时间戳均为配置时区的 RFC3339（带 UTC 偏移）
	AttendanceStart *string `json:"attendance_start"` // 就诊开始时间，可为 null
	AttendanceEnd   string  `json:"attendance_end"`   // 就诊结束时间，无结束里程碑时取当前时间

	DocumentBase64 string `json:"document_base64"` // 渲染后的报告文书（Base64，可为空）
}
