package attester

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/pinio-labs/pinioscan/src/internal"
)

func sampleReport() *internal.PinioscanReport {
	return &internal.PinioscanReport{
		Token: internal.TokenInfo{
			Address: "0x1234567890abcdef1234567890abcdef12345678",
			Name:    "Test Token",
			Symbol:  "TEST",
		},
		OverallScore:   72,
		RiskLevel:      internal.RiskSafe,
		Summary:        "Looks fine.",
		Flags:          []string{"🟢 Verified"},
		Recommendation: "Trade with normal caution.",
		Timestamp:      1756500000000,
	}
}

func TestReportCIDStable(t *testing.T) {
	report := sampleReport()

	a, err := ReportCID(report)
	if err != nil {
		t.Fatalf("计算 CID 失败: %v", err)
	}
	b, err := ReportCID(report)
	if err != nil {
		t.Fatalf("计算 CID 失败: %v", err)
	}

	if a != b {
		t.Errorf("同一份报告的 CID 应当稳定: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 66 {
		t.Errorf("CID 应为 0x 前缀的 32 字节 hex: %q", a)
	}
}

func TestReportCIDSensitiveToContent(t *testing.T) {
	report := sampleReport()
	base, _ := ReportCID(report)

	changed := *report
	changed.OverallScore = 71
	other, _ := ReportCID(&changed)

	if base == other {
		t.Error("分数变化后 CID 应当不同")
	}
}

func TestReportCIDFieldOrder(t *testing.T) {
	report := sampleReport()

	data, err := json.Marshal(canonicalReport{
		Score:          report.OverallScore,
		RiskLevel:      report.RiskLevel,
		Summary:        report.Summary,
		Categories:     report.Categories,
		Flags:          report.Flags,
		Recommendation: report.Recommendation,
		Timestamp:      report.Timestamp,
	})
	if err != nil {
		t.Fatal(err)
	}

	s := string(data)
	order := []string{`"score"`, `"riskLevel"`, `"summary"`, `"categories"`, `"flags"`, `"recommendation"`, `"timestamp"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(s, key)
		if idx < 0 {
			t.Fatalf("规范化 JSON 缺少 %s", key)
		}
		if idx < last {
			t.Errorf("字段 %s 顺序错误", key)
		}
		last = idx
	}
}

func TestNewAttesterConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"缺合约地址", Config{DeployerKey: "ab"}, ErrNoContractAddress},
		{"缺私钥", Config{ContractAddress: "0x1234567890abcdef1234567890abcdef12345678"}, ErrNoDeployerKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAttester(nil, tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewAttesterBadInputs(t *testing.T) {
	// 地址非法
	_, err := NewAttester(nil, Config{ContractAddress: "not-an-address", DeployerKey: "ab"})
	if err == nil {
		t.Error("非法合约地址应当报错")
	}

	// 私钥非法
	_, err = NewAttester(nil, Config{
		ContractAddress: "0x1234567890abcdef1234567890abcdef12345678",
		DeployerKey:     "0xzz",
	})
	if err == nil {
		t.Error("非法私钥应当报错")
	}
}

func TestNewReaderConfigErrors(t *testing.T) {
	if _, err := NewReader(nil, ""); !errors.Is(err, ErrNoContractAddress) {
		t.Errorf("err = %v, want ErrNoContractAddress", err)
	}
	if _, err := NewReader(nil, "bogus"); err == nil {
		t.Error("非法地址应当报错")
	}
}
