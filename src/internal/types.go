package internal

import (
	"strings"
	"time"
)

// 风险等级常量（报告级别用大写，分类级别用小写）
const (
	RiskSafe     = "SAFE"
	RiskCaution  = "CAUTION"
	RiskDanger   = "DANGER"
	RiskCritical = "CRITICAL"

	LevelSafe     = "safe"
	LevelCaution  = "caution"
	LevelDanger   = "danger"
	LevelCritical = "critical"
)

// ClampScore 把分数收敛到 [0,100]，上游数据不可信时兜底
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RiskLevelForScore 固定区间映射: SAFE(70-100) CAUTION(50-69) DANGER(25-49) CRITICAL(0-24)
func RiskLevelForScore(score int) string {
	switch s := ClampScore(score); {
	case s >= 70:
		return RiskSafe
	case s >= 50:
		return RiskCaution
	case s >= 25:
		return RiskDanger
	default:
		return RiskCritical
	}
}

// ValidRiskLevel 校验报告级风险等级是否在封闭集合内
func ValidRiskLevel(level string) bool {
	switch level {
	case RiskSafe, RiskCaution, RiskDanger, RiskCritical:
		return true
	}
	return false
}

// ValidCategoryLevel 校验分类级别（小写变体）
func ValidCategoryLevel(level string) bool {
	switch level {
	case LevelSafe, LevelCaution, LevelDanger, LevelCritical:
		return true
	}
	return false
}

// TokenInfo 单次扫描收集到的代币基础信息，构建完成后不再修改
type TokenInfo struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"` // 十进制字符串，不用浮点表示
	IsVerified  bool   `json:"isVerified"`
	SourceCode  string `json:"sourceCode,omitempty"`
	Compiler    string `json:"compiler,omitempty"`
	Owner       string `json:"owner,omitempty"` // 空表示已放弃所有权或未知
	Creator     string `json:"creator,omitempty"`
	ContractAge string `json:"contractAge,omitempty"` // 人类可读，例如 "3 months, 12 days"
}

// HolderInfo 单个持仓大户（按数据源返回的排名顺序保留）
type HolderInfo struct {
	Address    string  `json:"address"`
	Balance    string  `json:"balance"`
	Percentage float64 `json:"percentage"` // 0-100，两位精度
	Label      string  `json:"label,omitempty"`
}

// LiquidityInfo 单个流动性池。不变式: Token0 < Token1（按地址字典序）
type LiquidityInfo struct {
	Pair         string  `json:"pair"`
	Dex          string  `json:"dex"`
	Token0       string  `json:"token0"`
	Token1       string  `json:"token1"`
	LiquidityUSD float64 `json:"liquidityUSD"`
	IsLocked     bool    `json:"isLocked"`
	LockExpiry   int64   `json:"lockExpiry,omitempty"`
}

// ContractPatterns 静态源码扫描结果，仅作为参考信号，不是安全结论
type ContractPatterns struct {
	HasProxy           bool     `json:"hasProxy"`
	HasMintFunction    bool     `json:"hasMintFunction"`
	HasBlacklist       bool     `json:"hasBlacklist"`
	HasPausable        bool     `json:"hasPausable"`
	HasFeeModification bool     `json:"hasFeeModification"`
	HasMaxTxLimit      bool     `json:"hasMaxTxLimit"`
	HasAntiBot         bool     `json:"hasAntiBot"`
	HasHiddenOwner     bool     `json:"hasHiddenOwner"`
	SuspiciousPatterns []string `json:"suspiciousPatterns"`
}

// LPLockInfo LP 锁仓信息。IsLocked 当且仅当 LockedPercent > 50
type LPLockInfo struct {
	IsLocked      bool    `json:"isLocked"`
	LockedPercent float64 `json:"lockedPercent"`
	LockPlatform  string  `json:"lockPlatform,omitempty"`
	LockExpiry    int64   `json:"lockExpiry,omitempty"`
}

// PriceData Pinion 价格查询结果
type PriceData struct {
	PriceUSD       float64 `json:"priceUsd"`
	PriceChange24h float64 `json:"priceChange24h"`
	MarketCapUSD   float64 `json:"marketCapUsd"`
}

// TokenTransfer 一条转账记录（BaseScan tokentx，按时间倒序）
type TokenTransfer struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	TokenDecimal string `json:"tokenDecimal"`
	BlockNumber  string `json:"blockNumber"`
	TimeStamp    string `json:"timeStamp"`
	Hash         string `json:"hash"`
}

// DeployerTxInfo 部署者首笔交易的解码结果（Pinion tx skill）
type DeployerTxInfo struct {
	FunctionName string `json:"functionName,omitempty"`
	Args         string `json:"args,omitempty"`
	Value        string `json:"value,omitempty"`
}

// Evidence 证据包：评分前收集到的全部事实，由单次扫描独占
type Evidence struct {
	Token       TokenInfo
	Holders     []HolderInfo
	Liquidity   []LiquidityInfo
	Transfers   []TokenTransfer
	Patterns    ContractPatterns
	LPLock      LPLockInfo
	IsCanonical bool // Base 官方资产白名单命中
	Price       *PriceData
	DeployerTx  *DeployerTxInfo
}

// TotalLiquidityUSD 汇总全部池子的美元深度
func (e *Evidence) TotalLiquidityUSD() float64 {
	var sum float64
	for _, l := range e.Liquidity {
		sum += l.LiquidityUSD
	}
	return sum
}

// Top10HolderPct 前十大户合计占比
func (e *Evidence) Top10HolderPct() float64 {
	var sum float64
	for i, h := range e.Holders {
		if i >= 10 {
			break
		}
		sum += h.Percentage
	}
	return sum
}

// BurnedPct 销毁地址合计占比（按标签识别）
func (e *Evidence) BurnedPct() float64 {
	var sum float64
	for _, h := range e.Holders {
		label := strings.ToLower(h.Label)
		if strings.Contains(label, "burn") || strings.Contains(label, "dead") {
			sum += h.Percentage
		}
	}
	return sum
}

// RiskCategory 单个风险分类。Score 始终被收敛到 [0,100]
type RiskCategory struct {
	Name     string   `json:"name"`
	Score    int      `json:"score"`
	Level    string   `json:"level"`
	Findings []string `json:"findings"`
}

// ReportCategories 固定的四个分类
type ReportCategories struct {
	Contract      RiskCategory `json:"contract"`
	Concentration RiskCategory `json:"concentration"`
	Liquidity     RiskCategory `json:"liquidity"`
	Trading       RiskCategory `json:"trading"`
}

// PinioscanReport 终态产物。创建后只允许补写一次 AttestationTx
type PinioscanReport struct {
	Token          TokenInfo        `json:"token"`
	OverallScore   int              `json:"overallScore"`
	RiskLevel      string           `json:"riskLevel"`
	Summary        string           `json:"summary"`
	Categories     ReportCategories `json:"categories"`
	TopHolders     []HolderInfo     `json:"topHolders"`
	Liquidity      []LiquidityInfo  `json:"liquidity"`
	Flags          []string         `json:"flags"`
	Recommendation string           `json:"recommendation"`
	Timestamp      int64            `json:"timestamp"` // Unix 毫秒
	AttestationTx  string           `json:"attestationTx,omitempty"`
}

// NowMillis 报告时间戳
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
