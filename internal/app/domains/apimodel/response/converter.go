package response

import (
	"vcp/sttrelay/internal/app/domains/entity/etrelay"
)

// FromRunReport 从领域对象转换为响应 DTO
func FromRunReport(report *etrelay.RunReport) *RunReportResponse {
	items := make([]RunItemResponse, 0, len(report.Items))
	for _, item := range report.Items {
		items = append(items, RunItemResponse{
			VisitID:     item.VisitID,
			VoucherCode: item.VoucherCode,
			Status:      string(item.Status),
			HTTPStatus:  item.HTTPStatus,
			Attempts:    item.Attempts,
			Reason:      item.Reason,
		})
	}

	return &RunReportResponse{
		RunID:     report.RunID,
		Total:     report.Total,
		Processed: report.Processed,
		Succeeded: report.Succeeded,
		Blocked:   report.Blocked,
		Errored:   report.Errored,
		DryRun:    report.DryRun,
		Items:     items,
	}
}

// FromSendOutcome 从领域对象转换为响应 DTO
func FromSendOutcome(outcome *etrelay.SendOutcome) *SendOutcomeResponse {
	return &SendOutcomeResponse{
		VisitID:     outcome.VisitID,
		VoucherCode: outcome.VoucherCode,
		Status:      string(outcome.Status),
		HTTPStatus:  outcome.HTTPStatus,
		Attempts:    outcome.Attempts,
		Reason:      outcome.Reason,
	}
}

// FromControl 从领域对象转换为响应 DTO
func FromControl(control *etrelay.DeliveryControl) *ControlStatusResponse {
	return &ControlStatusResponse{
		VisitID:            control.VisitID,
		VoucherCode:        control.VoucherCode,
		Delivered:          control.Delivered,
		DeliveredAt:        control.DeliveredAt,
		Attempts:           control.Attempts,
		LastAttemptAt:      control.LastAttemptAt,
		NextRetryAt:        control.NextRetryAt,
		Processing:         control.ProcessingSince != nil,
		LastResponseStatus: control.LastResponseStatus,
		LastError:          control.LastError,
		PatientName:        control.PatientName,
		ProfessionalName:   control.ProfessionalName,
		ExternalCaseCode:   control.ExternalCaseCode,
		UpdatedAt:          control.UpdatedAt,
	}
}
