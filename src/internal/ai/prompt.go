package ai

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pinio-labs/pinioscan/src/internal"
)

// SourceSnippetBudget 嵌入 prompt 的源码字符预算
const SourceSnippetBudget = 8000

// BuildAnalysisPrompt 把证据包编排成单份结构化证据文档。
// 文档内嵌固定评分规则，让下游模型的判断锚定在可复现的标准上
// （模型的具体打分仍是非确定的）
func BuildAnalysisPrompt(ev *internal.Evidence) string {
	token := ev.Token
	stats := struct {
		totalLiquidityUSD float64
		top10HolderPct    float64
		burnedPct         float64
	}{ev.TotalLiquidityUSD(), ev.Top10HolderPct(), ev.BurnedPct()}

	var holderLines []string
	for i, h := range ev.Holders {
		if i >= 15 {
			break
		}
		label := ""
		if h.Label != "" {
			label = fmt.Sprintf(" (%s)", h.Label)
		}
		holderLines = append(holderLines, fmt.Sprintf("  %d. %s...%s — %.2f%%%s",
			i+1, safeSlice(h.Address, 0, 10), safeSlice(h.Address, len(h.Address)-6, len(h.Address)), h.Percentage, label))
	}
	holderSummary := strings.Join(holderLines, "\n")

	var liqLines []string
	for _, l := range ev.Liquidity {
		locked := "Unknown"
		if l.IsLocked {
			locked = "Yes"
		}
		liqLines = append(liqLines, fmt.Sprintf("  %s: $%.0f USD (Locked: %s)", l.Dex, l.LiquidityUSD, locked))
	}
	liqSummary := strings.Join(liqLines, "\n")
	if liqSummary == "" {
		liqSummary = "  No liquidity found on Uniswap V3 or Aerodrome"
	}

	largeTxs := formatLargeTransfers(ev)

	var sourceSection string
	if token.IsVerified && token.SourceCode != "" {
		snippet := token.SourceCode
		if len(snippet) > SourceSnippetBudget {
			snippet = snippet[:SourceSnippetBudget]
		}
		sourceSection = fmt.Sprintf("\nCONTRACT SOURCE CODE (first %d chars):\n```solidity\n%s\n```", SourceSnippetBudget, snippet)
	} else {
		sourceSection = "\nCONTRACT SOURCE: ⚠️ NOT VERIFIED on BaseScan — this is a red flag."
	}

	patternsSection := formatPatternFlags(ev.Patterns)

	var lpLockSection string
	if ev.LPLock.LockedPercent > 0 {
		platform := ""
		if ev.LPLock.LockPlatform != "" {
			platform = fmt.Sprintf(" via %s", ev.LPLock.LockPlatform)
		}
		mark := " (partial)"
		if ev.LPLock.IsLocked {
			mark = " ✅"
		}
		lpLockSection = fmt.Sprintf("\nLP LOCK STATUS: %.1f%% locked%s%s", ev.LPLock.LockedPercent, platform, mark)
	} else {
		lpLockSection = "\nLP LOCK STATUS: ⚠️ No LP tokens found in known lock contracts or burn addresses"
	}

	ageSection := ""
	if token.ContractAge != "" {
		ageSection = fmt.Sprintf("\nCONTRACT AGE: %s", token.ContractAge)
	}

	priceSection := "\nMARKET DATA: Not available"
	if ev.Price != nil {
		warn := ""
		if ev.Price.MarketCapUSD < 10000 {
			warn = " ⚠️ EXTREMELY LOW — extremely high risk"
		} else if ev.Price.MarketCapUSD < 100000 {
			warn = " ⚠️ Very low market cap"
		}
		sign := ""
		if ev.Price.PriceChange24h >= 0 {
			sign = "+"
		}
		priceSection = fmt.Sprintf(`
MARKET DATA (Pinion):
  Price: $%.6f USD
  24h Change: %s%.2f%%
  Market Cap: $%.0f USD%s`, ev.Price.PriceUSD, sign, ev.Price.PriceChange24h, ev.Price.MarketCapUSD, warn)
	}

	deployerSection := ""
	if ev.DeployerTx != nil {
		fn := ev.DeployerTx.FunctionName
		if fn == "" {
			fn = "unknown"
		}
		args := ""
		if ev.DeployerTx.Args != "" {
			args = fmt.Sprintf("\n  Args: %s", safeSlice(ev.DeployerTx.Args, 0, 200))
		}
		value := ev.DeployerTx.Value
		if value == "" {
			value = "0 ETH"
		}
		deployerSection = fmt.Sprintf("\nDEPLOYER FIRST TX (Pinion decoded):\n  Function: %s%s\n  Value: %s", fn, args, value)
	}

	canonicalSection := ""
	if ev.IsCanonical {
		canonicalSection = "\n⚠️ IMPORTANT: This is an OFFICIAL Base canonical token (USDC, WETH, cbETH, EURC, or USDbC). It is a legitimate token. Do NOT flag it as a scam. Proxy/upgradeable patterns are normal for canonical infrastructure. Score based on actual fundamentals."
	}

	owner := token.Owner
	if owner == "" {
		owner = "Unknown / Renounced"
	}
	creator := token.Creator
	if creator == "" {
		creator = "Unknown"
	}
	verified := "No"
	if token.IsVerified {
		verified = "Yes"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`You are Pinioscan, an AI token safety auditor for Base (ERC-20 on Base) tokens. New tokens launch on Base every hour — most are scams. Analyze this token and provide a safety assessment.%s

TOKEN: %s (%s)
ADDRESS: %s
TOTAL SUPPLY: %s
OWNER: %s
CREATOR: %s
VERIFIED: %s%s
%s%s
%s
%s

TOP HOLDERS:
%s
  Top 10 hold: %.1f%% | Burned: %.1f%%

LIQUIDITY (Uniswap V3 / Aerodrome on Base):
%s
  Total: $%.0f USD%s

RECENT LARGE TRANSFERS (>1%% supply):
%s
`, canonicalSection, token.Name, token.Symbol, token.Address, token.TotalSupply,
		owner, creator, verified, ageSection, priceSection, deployerSection,
		sourceSection, patternsSection, holderSummary, stats.top10HolderPct, stats.burnedPct,
		liqSummary, stats.totalLiquidityUSD, lpLockSection, largeTxs))

	sb.WriteString(scoringRules)
	return sb.String()
}

// scoringRules 固定的评分规则文本，保证模型判断有可复现的锚点
const scoringRules = `
SCORING RULES (follow strictly):
1. If unverified contract → contract score ≤ 30
2. If proxy/upgradeable contract → contract score ≤ 40 (unless well-known project)
3. If owner can mint → contract score ≤ 50
4. If top non-burn holder > 50% → concentration score ≤ 20
5. If top non-burn holder > 20% → concentration score ≤ 50
6. If no liquidity → liquidity score ≤ 10
7. If liquidity < $5,000 → liquidity score ≤ 30
8. If liquidity < $10,000 → liquidity score ≤ 40
9. If LP not locked/burned → liquidity score ≤ 60
10. If contract age < 7 days → additional -10 to overall score
11. If market cap < $10,000 → additional -15 to overall score (extremely high rug risk)

TAX TOKEN RULES (Base tokens can have transfer taxes):
- Buy+sell tax 0-5% combined → trading score 80-100
- Buy+sell tax 5-10% combined → trading score 60-80 (moderate)
- Buy+sell tax 10-20% combined → trading score 40-60 (high — rare on Base, yellow flag)
- Buy+sell tax > 20% combined → trading score ≤ 30 (very high, red flag on Base)

BLUE-CHIP DIFFERENTIATION (avoid flat 100s):
- WETH/ETH: 95-98 (native wrapped asset)
- Canonical stablecoins (USDC, USDbC): 90-95 (deduct for centralization risk)
- cbETH, EURC: 85-92 (liquid staking / regulated stablecoin risk)
- Top Base DeFi protocols: 78-88 (deduct for smart contract complexity)
- Use the FULL range 0-100. Differentiate based on: liquidity depth, holder distribution, contract complexity, LP lock status, age, market cap.

NUANCE RULES:
- Proxy/upgradeable contracts used by major protocols (Coinbase, Uniswap, Aave) are NORMAL — don't penalize unless there are other red flags.
- For tokens with low DEX liquidity but verified contracts and good holder distribution, score liquidity low but don't let it drag the overall score below 40.
- The overall score should be a WEIGHTED AVERAGE: contract 30%, concentration 25%, liquidity 25%, trading 20%.
- Scores of 5 or below are ONLY for tokens with multiple critical failures (e.g. unverified + no liquidity + extreme concentration + suspicious deployer behavior).
- Most legitimate Base tokens should score between 35-85. Reserve 90+ for canonical/blue-chip tokens only.

Risk level mapping: SAFE (70-100), CAUTION (50-69), DANGER (25-49), CRITICAL (0-24)

Respond in EXACTLY this JSON format (no markdown, no code blocks, just raw JSON):
{
  "overallScore": <0-100>,
  "riskLevel": "<SAFE|CAUTION|DANGER|CRITICAL>",
  "summary": "<2-3 sentence plain English summary>",
  "recommendation": "<1 sentence actionable recommendation>",
  "contract": {
    "score": <0-100>,
    "level": "<safe|caution|danger|critical>",
    "findings": ["<specific finding referencing actual data>", ...]
  },
  "concentration": {
    "score": <0-100>,
    "level": "<safe|caution|danger|critical>",
    "findings": ["<specific finding referencing actual data>", ...]
  },
  "liquidity": {
    "score": <0-100>,
    "level": "<safe|caution|danger|critical>",
    "findings": ["<specific finding referencing actual data>", ...]
  },
  "trading": {
    "score": <0-100>,
    "level": "<safe|caution|danger|critical>",
    "findings": ["<specific finding referencing actual data>", ...]
  },
  "flags": ["🔴 <red flag>", "🟢 <green flag>", ...]
}

IMPORTANT: Be specific — cite actual numbers, addresses, percentages. No generic statements.`

// formatPatternFlags 把静态扫描结果转为证据条目
func formatPatternFlags(p internal.ContractPatterns) string {
	var flags []string
	if p.HasProxy {
		flags = append(flags, "🚨 Proxy/Upgradeable contract (logic can be changed)")
	}
	if p.HasMintFunction {
		flags = append(flags, "⚠️ Has mint function (can create new tokens)")
	}
	if p.HasBlacklist {
		flags = append(flags, "⚠️ Has blacklist functionality (can block addresses)")
	}
	if p.HasPausable {
		flags = append(flags, "⚠️ Pausable (can freeze all transfers)")
	}
	if p.HasFeeModification {
		flags = append(flags, "⚠️ Fees can be modified by owner")
	}
	if p.HasMaxTxLimit {
		flags = append(flags, "Has max transaction limit")
	}
	if p.HasAntiBot {
		flags = append(flags, "Has anti-bot mechanisms")
	}
	if p.HasHiddenOwner {
		flags = append(flags, "🚨 Hidden owner pattern detected")
	}
	for _, s := range p.SuspiciousPatterns {
		flags = append(flags, fmt.Sprintf("🚨 %s", s))
	}

	if len(flags) == 0 {
		return "\nCONTRACT PATTERNS: No concerning patterns found in source code"
	}
	var sb strings.Builder
	sb.WriteString("\nCONTRACT PATTERNS DETECTED:")
	for _, f := range flags {
		sb.WriteString(fmt.Sprintf("\n  - %s", f))
	}
	return sb.String()
}

// formatLargeTransfers 过滤出超过供应量 1% 的转账，最多 10 条
func formatLargeTransfers(ev *internal.Evidence) string {
	supply, err := strconv.ParseFloat(ev.Token.TotalSupply, 64)
	if err != nil || supply <= 0 {
		return "  No large transfers detected"
	}
	supplyUnits := supply / math.Pow(10, float64(ev.Token.Decimals))

	var lines []string
	for _, tx := range ev.Transfers {
		if len(lines) >= 10 {
			break
		}
		value, err := strconv.ParseFloat(tx.Value, 64)
		if err != nil {
			continue
		}
		decimals, err := strconv.ParseFloat(tx.TokenDecimal, 64)
		if err != nil || decimals <= 0 {
			decimals = 18
		}
		valueUnits := value / math.Pow(10, decimals)
		if supplyUnits > 0 && valueUnits/supplyUnits > 0.01 {
			lines = append(lines, fmt.Sprintf("  %s→%s | %.2f tokens | Block %s",
				safeSlice(tx.From, 0, 10), safeSlice(tx.To, 0, 10), valueUnits, tx.BlockNumber))
		}
	}

	if len(lines) == 0 {
		return "  No large transfers detected"
	}
	return strings.Join(lines, "\n")
}

// safeSlice 越界安全的子串
func safeSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}
