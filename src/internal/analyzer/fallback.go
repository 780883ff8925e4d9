package analyzer

import (
	"fmt"

	"github.com/pinio-labs/pinioscan/src/internal"
)

// FallbackReport AI 不可用时的确定性降级报告。
// 对同一份证据包，输出完全可复现：固定总分 30 / DANGER，
// 各分类按证据里的硬指标打分
func FallbackReport(ev *internal.Evidence) *internal.PinioscanReport {
	return &internal.PinioscanReport{
		Token:        ev.Token,
		OverallScore: 30,
		RiskLevel:    internal.RiskDanger,
		Summary:      "AI analysis unavailable. Based on raw data: review the findings below carefully before trading.",
		Categories: internal.ReportCategories{
			Contract:      fallbackContract(ev),
			Concentration: fallbackConcentration(ev),
			Liquidity:     fallbackLiquidity(ev),
			Trading: internal.RiskCategory{
				Name:     "Trading Patterns",
				Score:    50,
				Level:    internal.LevelCaution,
				Findings: []string{"Trading analysis unavailable"},
			},
		},
		TopHolders:     ev.Holders,
		Liquidity:      ev.Liquidity,
		Flags:          []string{"⚠️ AI analysis failed — showing raw data only"},
		Recommendation: "Unable to complete full analysis. Treat with caution.",
		Timestamp:      internal.NowMillis(),
	}
}

func fallbackContract(ev *internal.Evidence) internal.RiskCategory {
	if ev.Token.IsVerified {
		return internal.RiskCategory{
			Name:     "Contract Security",
			Score:    50,
			Level:    internal.LevelCaution,
			Findings: []string{"Contract is verified on BaseScan"},
		}
	}
	return internal.RiskCategory{
		Name:     "Contract Security",
		Score:    10,
		Level:    internal.LevelCritical,
		Findings: []string{"Contract is NOT verified on BaseScan"},
	}
}

func fallbackConcentration(ev *internal.Evidence) internal.RiskCategory {
	if len(ev.Holders) == 0 {
		return internal.RiskCategory{
			Name:     "Holder Concentration",
			Score:    30,
			Level:    internal.LevelDanger,
			Findings: []string{"No holder data available"},
		}
	}

	top10 := ev.Top10HolderPct()
	score := 60
	switch {
	case top10 > 50:
		score = 20
	case top10 > 20:
		score = 40
	}
	// 等级由分数推导，50 分以下一律 danger
	level := internal.LevelCaution
	if score < 50 {
		level = internal.LevelDanger
	}

	return internal.RiskCategory{
		Name:     "Holder Concentration",
		Score:    score,
		Level:    level,
		Findings: []string{fmt.Sprintf("Top 10 holders control %.1f%% of supply", top10)},
	}
}

func fallbackLiquidity(ev *internal.Evidence) internal.RiskCategory {
	total := ev.TotalLiquidityUSD()
	if len(ev.Liquidity) == 0 {
		return internal.RiskCategory{
			Name:     "Liquidity",
			Score:    10,
			Level:    internal.LevelCritical,
			Findings: []string{"No DEX liquidity found"},
		}
	}

	score := 40
	level := internal.LevelCaution
	if total > 10000 {
		score, level = 60, internal.LevelCaution
	}

	return internal.RiskCategory{
		Name:     "Liquidity",
		Score:    score,
		Level:    level,
		Findings: []string{fmt.Sprintf("Total DEX liquidity: $%.0f USD", total)},
	}
}
