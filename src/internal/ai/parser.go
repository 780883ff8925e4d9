package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pinio-labs/pinioscan/src/internal"
)

// Assessment AI 返回的安全评估（解析并归一化之后）
type Assessment struct {
	OverallScore   int      `json:"overallScore"`
	RiskLevel      string   `json:"riskLevel"`
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	Contract       Category `json:"contract"`
	Concentration  Category `json:"concentration"`
	Liquidity      Category `json:"liquidity"`
	Trading        Category `json:"trading"`
	Flags          []string `json:"flags"`
	RawResponse    string   `json:"-"` // 原始响应，不序列化
}

// Category 单个风险分类的 AI 评分
type Category struct {
	Score    int      `json:"score"`
	Level    string   `json:"level"`
	Findings []string `json:"findings"`
}

// rawAssessment 解码中间层。分数用指针区分"缺失"和"显式 0"：
// 模型漏掉某个分数时按中等风险 50 处理，而不是按 0 判成 CRITICAL
type rawAssessment struct {
	OverallScore   *int        `json:"overallScore"`
	RiskLevel      string      `json:"riskLevel"`
	Summary        string      `json:"summary"`
	Recommendation string      `json:"recommendation"`
	Contract       rawCategory `json:"contract"`
	Concentration  rawCategory `json:"concentration"`
	Liquidity      rawCategory `json:"liquidity"`
	Trading        rawCategory `json:"trading"`
	Flags          []string    `json:"flags"`
}

type rawCategory struct {
	Score    *int     `json:"score"`
	Level    string   `json:"level"`
	Findings []string `json:"findings"`
}

const defaultScore = 50

func scoreOrDefault(p *int) int {
	if p == nil {
		return defaultScore
	}
	return *p
}

func (r *rawAssessment) toAssessment() Assessment {
	riskLevel := r.RiskLevel
	if riskLevel == "" {
		riskLevel = internal.RiskCaution
	}
	return Assessment{
		OverallScore:   scoreOrDefault(r.OverallScore),
		RiskLevel:      riskLevel,
		Summary:        r.Summary,
		Recommendation: r.Recommendation,
		Contract:       r.Contract.toCategory(),
		Concentration:  r.Concentration.toCategory(),
		Liquidity:      r.Liquidity.toCategory(),
		Trading:        r.Trading.toCategory(),
		Flags:          r.Flags,
	}
}

func (r *rawCategory) toCategory() Category {
	return Category{
		Score:    scoreOrDefault(r.Score),
		Level:    r.Level,
		Findings: r.Findings,
	}
}

// Parser 解析 AI 返回的评估结果
type Parser struct {
	jsonExtractor *regexp.Regexp
}

// NewParser 创建新的解析器
func NewParser() *Parser {
	// 用于提取 JSON 代码块的正则表达式
	jsonRegex := regexp.MustCompile("```(?:json)?\n?([\\s\\S]*?)\n?```")

	return &Parser{
		jsonExtractor: jsonRegex,
	}
}

// Parse 解析 AI 响应文本。任何解析路径成功后都会做 schema 归一化
func (p *Parser) Parse(response string) (*Assessment, error) {
	// 尝试直接解析 JSON
	result, err := p.decode(response)
	if err == nil {
		result.RawResponse = response
		p.normalize(result)
		return result, nil
	}

	// 尝试从 markdown 代码块中提取 JSON
	matches := p.jsonExtractor.FindStringSubmatch(response)
	if len(matches) > 1 {
		result, err = p.decode(strings.TrimSpace(matches[1]))
		if err == nil {
			result.RawResponse = response
			p.normalize(result)
			return result, nil
		}
	}

	// 如果仍然失败，尝试清理响应并再次解析
	result, err = p.decode(p.cleanResponse(response))
	if err == nil {
		result.RawResponse = response
		p.normalize(result)
		return result, nil
	}

	// 解析失败，返回错误
	return nil, fmt.Errorf("failed to parse AI response as JSON: %w", err)
}

// decode 反序列化并补上缺失分数的默认值
func (p *Parser) decode(jsonStr string) (*Assessment, error) {
	var raw rawAssessment
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, err
	}
	result := raw.toAssessment()
	return &result, nil
}

// cleanResponse 清理响应文本
func (p *Parser) cleanResponse(response string) string {
	// 移除常见的非 JSON 前缀
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	// 尝试找到第一个 { 和最后一个 }
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start >= 0 && end > start {
		response = response[start : end+1]
	}

	return response
}

// normalize 把模型输出收敛到合法值域：分数 [0,100]、
// 等级落在封闭集合、findings/flags 不为 nil
func (p *Parser) normalize(a *Assessment) {
	a.OverallScore = internal.ClampScore(a.OverallScore)
	if !internal.ValidRiskLevel(a.RiskLevel) {
		a.RiskLevel = internal.RiskLevelForScore(a.OverallScore)
	}
	if a.Flags == nil {
		a.Flags = []string{}
	}

	for _, c := range []*Category{&a.Contract, &a.Concentration, &a.Liquidity, &a.Trading} {
		c.Score = internal.ClampScore(c.Score)
		c.Level = strings.ToLower(c.Level)
		if !internal.ValidCategoryLevel(c.Level) {
			c.Level = internal.LevelCaution // 默认中等风险
		}
		if c.Findings == nil {
			c.Findings = []string{}
		}
	}
}

// ValidateResult 验证解析结果是否可用于出报告
func (p *Parser) ValidateResult(a *Assessment) error {
	if a == nil {
		return fmt.Errorf("assessment is nil")
	}
	if a.Summary == "" {
		return fmt.Errorf("assessment missing summary")
	}
	if a.Recommendation == "" {
		return fmt.Errorf("assessment missing recommendation")
	}
	return nil
}
