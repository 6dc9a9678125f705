package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"vcp/sttrelay/internal/app/domains/entity/etvisit"
	"vcp/sttrelay/internal/app/domains/modules/mddispatch"
	"vcp/sttrelay/internal/app/domains/services/svrelay"
	"vcp/sttrelay/pkg/config"
	"vcp/sttrelay/pkg/logger"
)

var (
	configPath   = flag.String("config", "./config/config.yaml", "配置文件路径")
	testcasePath = flag.String("testcase", "./tools/fasttest/testcase/visits.json", "测试用例路径")
	dispatch     = flag.Bool("dispatch", false, "报文构造后走测试模式投递（不发起网络请求）")
)

// TestCase 测试用例结构（问诊记录快照）
type TestCase struct {
	VisitID          string `json:"visit_id"`
	VoucherCode      string `json:"voucher_code"`
	ExternalCaseCode string `json:"external_case_code"`
	PatientName      string `json:"patient_name"`
	ProfessionalName string `json:"professional_name"`
	StartedAt        string `json:"started_at"` // RFC3339，可为空
	EndedAt          string `json:"ended_at"`   // RFC3339，可为空
	Complaint        string `json:"complaint"`
	Diagnosis        string `json:"diagnosis"`
}

func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("  FastTest - STT 报文构造快速测试工具")
	fmt.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Config loaded: %s, timezone: %s\n", cfg.App.Name, cfg.STT.Timezone)

	// 2. 加载测试用例
	testCases, err := loadTestCases(*testcasePath)
	if err != nil {
		fmt.Printf("❌ Failed to load test cases: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Loaded %d test cases from %s\n", len(testCases), *testcasePath)

	builder := svrelay.NewPayloadBuilder(cfg.STT.Timezone)

	var dispatcher *mddispatch.DispatchModule
	if *dispatch {
		// 强制测试模式，不产生网络 I/O
		dispatcher = mddispatch.NewDispatchModule(cfg.STT.URL, cfg.STT.Token, cfg.STT.Timeout,
			true, logger.NewNopLogger())
		fmt.Println("⚠️  Dispatch mode: test mode forced, no network I/O")
	}

	// 3. 执行测试用例
	fmt.Println("\n========================================")
	fmt.Println("  Running Test Cases")
	fmt.Println("========================================")

	successCount := 0
	failureCount := 0

	for i, tc := range testCases {
		fmt.Printf("\n[Test %d/%d] VisitID=%s, Voucher=%s\n", i+1, len(testCases), tc.VisitID, tc.VoucherCode)
		fmt.Println("----------------------------------------")

		visit := toVisit(tc)
		payload := builder.Build(visit, "")

		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			fmt.Printf("❌ Marshal payload failed: %v\n", err)
			failureCount++
			continue
		}
		fmt.Println(string(out))

		if dispatcher != nil {
			result, err := dispatcher.Dispatch(context.Background(), payload)
			if err != nil {
				fmt.Printf("❌ Dispatch failed: %v\n", err)
				failureCount++
				continue
			}
			fmt.Printf("✅ Dispatch (test mode): status=%d\n", result.StatusCode)
		}

		successCount++
	}

	// 4. 汇总
	fmt.Println("\n========================================")
	fmt.Printf("  Done: %d success, %d failure\n", successCount, failureCount)
	fmt.Println("========================================")

	if failureCount > 0 {
		os.Exit(1)
	}
}

// loadTestCases 加载测试用例文件
func loadTestCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var testCases []TestCase
	if err := json.Unmarshal(data, &testCases); err != nil {
		return nil, err
	}
	return testCases, nil
}

// toVisit 测试用例转领域读模型
func toVisit(tc TestCase) *etvisit.Visit {
	visit := &etvisit.Visit{
		ID:               tc.VisitID,
		VoucherCode:      tc.VoucherCode,
		ExternalCaseCode: tc.ExternalCaseCode,
		PatientName:      tc.PatientName,
		ProfessionalName: tc.ProfessionalName,
	}

	if tc.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339, tc.StartedAt); err == nil {
			visit.StartedAt = &t
		}
	}
	if tc.EndedAt != "" {
		if t, err := time.Parse(time.RFC3339, tc.EndedAt); err == nil {
			visit.EndedAt = &t
		}
	}

	if tc.Complaint != "" || tc.Diagnosis != "" {
		visit.Note = &etvisit.ClinicalNote{
			Complaint: tc.Complaint,
			Diagnosis: tc.Diagnosis,
		}
	}

	return visit
}
