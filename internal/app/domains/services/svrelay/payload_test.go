package svrelay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcp/sttrelay/internal/app/domains/entity/etvisit"
)

func newTestBuilder(t *testing.T) *PayloadBuilder {
	t.Helper()
	builder := NewPayloadBuilder("America/Sao_Paulo")
	builder.now = func() time.Time {
		return time.Date(2026, 8, 15, 18, 30, 0, 0, time.UTC)
	}
	return builder
}

func fullVisit() *etvisit.Visit {
	started := time.Date(2026, 8, 15, 13, 0, 0, 0, time.UTC)
	ended := time.Date(2026, 8, 15, 13, 25, 0, 0, time.UTC)
	return &etvisit.Visit{
		ID:                       "visit-1",
		VoucherCode:              "VC-001",
		ExternalCaseCode:         "CASE-01",
		PatientName:              "Maria Silva",
		ProfessionalName:         "Dr. Carlos Souza",
		ProfessionalRegistration: "CRM-12345",
		StartedAt:                &started,
		EndedAt:                  &ended,
		Note: &etvisit.ClinicalNote{
			ClinicalStatus:     "amended",
			AttendanceType:     "07",
			Complaint:          "headache",
			Diagnosis:          "tension headache",
			CertificateIssued:  true,
			PrescriptionIssued: true,
		},
	}
}

func TestPayloadBuilder_FullVisit(t *testing.T) {
	builder := newTestBuilder(t)

	payload := builder.Build(fullVisit(), "ZG9j")

	assert.Equal(t, "VC-001", payload.VoucherCode)
	assert.Equal(t, "CASE-01", payload.ExternalCaseCode)
	assert.Equal(t, "amended", payload.ClinicalStatus)
	assert.Equal(t, "07", payload.AttendanceType)
	assert.Equal(t, "headache", payload.Complaint)
	assert.True(t, payload.CertificateIssued)
	assert.True(t, payload.PrescriptionIssued)
	assert.False(t, payload.ReferralIssued)
	assert.Equal(t, "ZG9j", payload.DocumentBase64)

	// 时间戳转为圣保罗时区（UTC-3）并带偏移
	require.NotNil(t, payload.AttendanceStart)
	assert.Equal(t, "2026-08-15T10:00:00-03:00", *payload.AttendanceStart)
	assert.Equal(t, "2026-08-15T10:25:00-03:00", payload.AttendanceEnd)
}

func TestPayloadBuilder_Defaults(t *testing.T) {
	builder := newTestBuilder(t)

	visit := &etvisit.Visit{
		ID:          "visit-2",
		VoucherCode: "VC-002",
	}

	payload := builder.Build(visit, "")

	assert.Equal(t, "effective", payload.ClinicalStatus)
	assert.Equal(t, "05", payload.AttendanceType)
	assert.Equal(t, "", payload.Complaint)
	assert.Equal(t, "", payload.History)
	assert.False(t, payload.CertificateIssued)
	assert.False(t, payload.PrescriptionIssued)
	assert.False(t, payload.ReferralIssued)
	assert.Equal(t, "", payload.DocumentBase64)

	// 无任何开始里程碑 → null
	assert.Nil(t, payload.AttendanceStart)

	// 无结束里程碑 → 当前时间（固定时钟，圣保罗时区）
	assert.Equal(t, "2026-08-15T15:30:00-03:00", payload.AttendanceEnd)
}

func TestPayloadBuilder_NoteFieldsEmptyFallBackToDefaults(t *testing.T) {
	builder := newTestBuilder(t)

	visit := &etvisit.Visit{
		ID:          "visit-3",
		VoucherCode: "VC-003",
		Note:        &etvisit.ClinicalNote{Diagnosis: "flu"},
	}

	payload := builder.Build(visit, "")

	// 临床记录存在但状态/类型为空串时仍取缺省值
	assert.Equal(t, "effective", payload.ClinicalStatus)
	assert.Equal(t, "05", payload.AttendanceType)
	assert.Equal(t, "flu", payload.Diagnosis)
}

func TestPayloadBuilder_StartFallsBackToProfessionalJoined(t *testing.T) {
	builder := newTestBuilder(t)

	joined := time.Date(2026, 8, 15, 12, 55, 0, 0, time.UTC)
	visit := &etvisit.Visit{
		ID:                   "visit-4",
		VoucherCode:          "VC-004",
		ProfessionalJoinedAt: &joined,
	}

	payload := builder.Build(visit, "")

	require.NotNil(t, payload.AttendanceStart)
	assert.Equal(t, "2026-08-15T09:55:00-03:00", *payload.AttendanceStart)
}

func TestPayloadBuilder_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	builder := NewPayloadBuilder("Not/AZone")
	builder.now = func() time.Time {
		return time.Date(2026, 8, 15, 18, 30, 0, 0, time.UTC)
	}

	payload := builder.Build(&etvisit.Visit{VoucherCode: "VC-005"}, "")

	assert.Equal(t, "2026-08-15T18:30:00Z", payload.AttendanceEnd)
}
