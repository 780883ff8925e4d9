package analyzer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pinio-labs/pinioscan/src/internal"
)

// fakeAI 可编程的 AI 客户端
type fakeAI struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeAI) GetName() string { return "fake" }
func (f *fakeAI) Close() error    { return nil }

func verifiedEvidence() *internal.Evidence {
	return &internal.Evidence{
		Token: internal.TokenInfo{
			Address:     "0x1234567890abcdef1234567890abcdef12345678",
			Name:        "Test Token",
			Symbol:      "TEST",
			Decimals:    18,
			TotalSupply: "1000000000000000000000000",
			IsVerified:  true,
		},
		Holders: []internal.HolderInfo{
			{Address: "0xaaa", Percentage: 12.5},
			{Address: "0xbbb", Percentage: 8.0},
		},
		Liquidity: []internal.LiquidityInfo{
			{Dex: "Uniswap V3 (0.3% fee)", LiquidityUSD: 50000},
		},
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	client := &fakeAI{response: `{
		"overallScore": 68,
		"riskLevel": "CAUTION",
		"summary": "Decent token with some concentration risk.",
		"recommendation": "Trade carefully.",
		"contract": {"score": 75, "level": "safe", "findings": ["Verified"]},
		"concentration": {"score": 55, "level": "caution", "findings": []},
		"liquidity": {"score": 70, "level": "safe", "findings": []},
		"trading": {"score": 65, "level": "caution", "findings": []},
		"flags": ["🟢 Verified contract"]
	}`}

	report := NewAnalyzer(client).Analyze(context.Background(), verifiedEvidence())

	if report.OverallScore != 68 {
		t.Errorf("overallScore = %d, want 68", report.OverallScore)
	}
	if report.RiskLevel != internal.RiskCaution {
		t.Errorf("riskLevel = %q, want CAUTION", report.RiskLevel)
	}
	if report.Categories.Contract.Name != "Contract Security" {
		t.Errorf("分类名错误: %q", report.Categories.Contract.Name)
	}
	if len(report.TopHolders) != 2 {
		t.Errorf("报告应携带证据里的持仓数据")
	}
	if report.Timestamp == 0 {
		t.Error("timestamp 未填充")
	}
	if len(client.prompts) != 1 {
		t.Fatalf("期望 1 次推理，实际 %d", len(client.prompts))
	}
}

func TestAnalyzeFallbackOnAIError(t *testing.T) {
	client := &fakeAI{err: errors.New("connection refused")}

	report := NewAnalyzer(client).Analyze(context.Background(), verifiedEvidence())

	if report.OverallScore != 30 {
		t.Errorf("降级报告总分 = %d, want 30", report.OverallScore)
	}
	if report.RiskLevel != internal.RiskDanger {
		t.Errorf("降级报告等级 = %q, want DANGER", report.RiskLevel)
	}
}

func TestAnalyzeFallbackOnGarbageResponse(t *testing.T) {
	client := &fakeAI{response: "I refuse to answer in JSON."}

	report := NewAnalyzer(client).Analyze(context.Background(), verifiedEvidence())

	if report.OverallScore != 30 || report.RiskLevel != internal.RiskDanger {
		t.Errorf("不可解析响应应触发降级: score=%d level=%s", report.OverallScore, report.RiskLevel)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	ev := verifiedEvidence()
	a := FallbackReport(ev)
	b := FallbackReport(ev)

	a.Timestamp, b.Timestamp = 0, 0
	if !reflect.DeepEqual(a, b) {
		t.Error("降级报告应当可复现")
	}
}

func TestFallbackCategoryRules(t *testing.T) {
	tests := []struct {
		name          string
		ev            *internal.Evidence
		wantContract  int
		wantConc      int
		wantConcLevel string
		wantLiquidity int
	}{
		{
			name: "未验证合约无流动性",
			ev: &internal.Evidence{
				Token: internal.TokenInfo{IsVerified: false},
			},
			wantContract:  10,
			wantConc:      30,
			wantConcLevel: internal.LevelDanger,
			wantLiquidity: 10,
		},
		{
			name: "大户超 50% 且深度过万",
			ev: &internal.Evidence{
				Token:   internal.TokenInfo{IsVerified: true},
				Holders: []internal.HolderInfo{{Percentage: 60}},
				Liquidity: []internal.LiquidityInfo{
					{LiquidityUSD: 25000},
				},
			},
			wantContract:  50,
			wantConc:      20,
			wantConcLevel: internal.LevelDanger,
			wantLiquidity: 60,
		},
		{
			name: "大户超 20% 低深度",
			ev: &internal.Evidence{
				Token:   internal.TokenInfo{IsVerified: true},
				Holders: []internal.HolderInfo{{Percentage: 25}},
				Liquidity: []internal.LiquidityInfo{
					{LiquidityUSD: 3000},
				},
			},
			wantContract:  50,
			wantConc:      40,
			wantConcLevel: internal.LevelDanger,
			wantLiquidity: 40,
		},
		{
			name: "持仓分散",
			ev: &internal.Evidence{
				Token:   internal.TokenInfo{IsVerified: true},
				Holders: []internal.HolderInfo{{Percentage: 5}},
				Liquidity: []internal.LiquidityInfo{
					{LiquidityUSD: 25000},
				},
			},
			wantContract:  50,
			wantConc:      60,
			wantConcLevel: internal.LevelCaution,
			wantLiquidity: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := FallbackReport(tt.ev)
			if got := report.Categories.Contract.Score; got != tt.wantContract {
				t.Errorf("contract = %d, want %d", got, tt.wantContract)
			}
			if got := report.Categories.Concentration.Score; got != tt.wantConc {
				t.Errorf("concentration = %d, want %d", got, tt.wantConc)
			}
			if got := report.Categories.Concentration.Level; got != tt.wantConcLevel {
				t.Errorf("concentration.level = %q, want %q", got, tt.wantConcLevel)
			}
			if got := report.Categories.Liquidity.Score; got != tt.wantLiquidity {
				t.Errorf("liquidity = %d, want %d", got, tt.wantLiquidity)
			}
		})
	}
}
