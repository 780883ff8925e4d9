package analyzer

import (
	"context"
	"fmt"

	"github.com/pinio-labs/pinioscan/src/internal"
	"github.com/pinio-labs/pinioscan/src/internal/ai"
	"github.com/pinio-labs/pinioscan/src/internal/common"
)

// Analyzer 把证据包合成为最终报告。AI 推理失败时回落到确定性打分
type Analyzer struct {
	client ai.Client
	parser *ai.Parser
}

// NewAnalyzer 创建分析器
func NewAnalyzer(client ai.Client) *Analyzer {
	return &Analyzer{
		client: client,
		parser: ai.NewParser(),
	}
}

// Analyze 生成报告。返回的 error 仅表示不可恢复的内部问题；
// AI 失败不算错误，会返回降级报告
func (a *Analyzer) Analyze(ctx context.Context, ev *internal.Evidence) *internal.PinioscanReport {
	assessment, err := a.assess(ctx, ev)
	if err != nil {
		common.Log.WithError(err).WithField("token", ev.Token.Address).
			Warn("⚠️ AI 分析失败，使用降级评分")
		return FallbackReport(ev)
	}
	return buildReport(ev, assessment)
}

// assess 跑一轮推理并解析
func (a *Analyzer) assess(ctx context.Context, ev *internal.Evidence) (*ai.Assessment, error) {
	prompt := ai.BuildAnalysisPrompt(ev)

	response, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("AI 推理失败: %w", err)
	}

	assessment, err := a.parser.Parse(response)
	if err != nil {
		return nil, fmt.Errorf("AI 响应解析失败: %w", err)
	}
	if err := a.parser.ValidateResult(assessment); err != nil {
		return nil, fmt.Errorf("AI 评估不完整: %w", err)
	}
	return assessment, nil
}

// buildReport 把归一化后的评估装配成报告
func buildReport(ev *internal.Evidence, assessment *ai.Assessment) *internal.PinioscanReport {
	return &internal.PinioscanReport{
		Token:        ev.Token,
		OverallScore: assessment.OverallScore,
		RiskLevel:    assessment.RiskLevel,
		Summary:      assessment.Summary,
		Categories: internal.ReportCategories{
			Contract:      toCategory("Contract Security", assessment.Contract),
			Concentration: toCategory("Holder Concentration", assessment.Concentration),
			Liquidity:     toCategory("Liquidity", assessment.Liquidity),
			Trading:       toCategory("Trading Patterns", assessment.Trading),
		},
		TopHolders:     ev.Holders,
		Liquidity:      ev.Liquidity,
		Flags:          assessment.Flags,
		Recommendation: assessment.Recommendation,
		Timestamp:      internal.NowMillis(),
	}
}

func toCategory(name string, c ai.Category) internal.RiskCategory {
	return internal.RiskCategory{
		Name:     name,
		Score:    c.Score,
		Level:    c.Level,
		Findings: c.Findings,
	}
}
