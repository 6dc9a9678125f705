package etrelay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReport_Accounting(t *testing.T) {
	report := &RunReport{}

	report.Add(RunItem{Status: SendStatusSent})
	report.Add(RunItem{Status: SendStatusSent})
	report.Add(RunItem{Status: SendStatusBlocked})
	report.Add(RunItem{Status: SendStatusLockFailed})
	report.Add(RunItem{Status: SendStatusError})
	report.Add(RunItem{Status: SendStatusDryRun})

	assert.Equal(t, 2, report.Succeeded)
	// 抢锁失败与短路拦截同属"未进入外发"，合并计入 blocked
	assert.Equal(t, 2, report.Blocked)
	assert.Equal(t, 1, report.Errored)
	// DRY_RUN 登记明细但不计 processed
	assert.Equal(t, 5, report.Processed)
	assert.Len(t, report.Items, 6)
}

func TestDeliveredOK(t *testing.T) {
	status200 := 200
	status502 := 502

	assert.True(t, (&DeliveryControl{Delivered: true, LastResponseStatus: &status200}).DeliveredOK())
	assert.False(t, (&DeliveryControl{Delivered: true, LastResponseStatus: &status502}).DeliveredOK())
	assert.False(t, (&DeliveryControl{Delivered: true}).DeliveredOK())
	assert.False(t, (&DeliveryControl{LastResponseStatus: &status200}).DeliveredOK())
}
