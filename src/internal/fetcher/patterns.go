package fetcher

import (
	"regexp"
	"strings"

	"github.com/pinio-labs/pinioscan/src/internal"
)

// 风险模式检测规则。大小写不敏感（统一转小写后匹配），
// 只做文本启发式，允许漏报和误报，结论交给上层评分
var (
	reProxy      = regexp.MustCompile(`delegatecall|upgradeable|transparent.*proxy|beacon.*proxy`)
	reMint       = regexp.MustCompile(`function\s+mint\s*\(`)
	reMintHint   = regexp.MustCompile(`//.*mint`)
	reBlacklist  = regexp.MustCompile(`blacklist|blocklist|isblacklisted|_isexcluded|isbotaddress|isbot`)
	rePausable   = regexp.MustCompile(`whennotpaused|pausable|function\s+pause\s*\(`)
	reFeeMod     = regexp.MustCompile(`setfee|settax|updatefee|_taxfee|_liquidityfee|setsellfee|setbuyfee`)
	reMaxTx      = regexp.MustCompile(`maxtxamount|_maxtxamount|maxtransaction|maxwalletsize`)
	reAntiBot    = regexp.MustCompile(`antibot|antibotactive|tradingactive|tradingopen|cantradestart`)
	reHiddenOwn  = regexp.MustCompile(`transferownership.*internal|_previousowner`)
	reSelfdestr  = regexp.MustCompile(`selfdestruct|suicide`)
	reAsmSstore  = regexp.MustCompile(`(?s)assembly\s*\{.*?sstore`)
	reBlockGate  = regexp.MustCompile(`block\.number\s*[<>]`)
	reRequire    = regexp.MustCompile(`require`)
	reMaxApprove = regexp.MustCompile(`approve.*type\(uint256\)\.max|approve.*115792`)
)

// AnalyzeContractPatterns 静态扫描合约源码中的风险模式。
// 纯函数：空源码返回全 false，永不失败
func AnalyzeContractPatterns(sourceCode string) internal.ContractPatterns {
	result := internal.ContractPatterns{
		SuspiciousPatterns: []string{},
	}

	if sourceCode == "" {
		return result
	}

	code := strings.ToLower(sourceCode)

	result.HasProxy = reProxy.MatchString(code)
	// mint 函数签名存在且不只是注释里提到
	result.HasMintFunction = reMint.MatchString(code) && !reMintHint.MatchString(code)
	result.HasBlacklist = reBlacklist.MatchString(code)
	result.HasPausable = rePausable.MatchString(code)
	result.HasFeeModification = reFeeMod.MatchString(code)
	result.HasMaxTxLimit = reMaxTx.MatchString(code)
	result.HasAntiBot = reAntiBot.MatchString(code)
	result.HasHiddenOwner = reHiddenOwn.MatchString(code)

	if reSelfdestr.MatchString(code) {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "Contains selfdestruct")
	}
	if reAsmSstore.MatchString(code) {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "Uses raw assembly storage writes")
	}
	if reBlockGate.MatchString(code) && reRequire.MatchString(code) {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "Block-number-based restrictions (possible sniper protection or time bomb)")
	}
	if reMaxApprove.MatchString(code) {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, "Unlimited approval patterns detected")
	}

	return result
}
