package fetcher

import (
	"testing"
)

func TestAnalyzeContractPatternsEmpty(t *testing.T) {
	got := AnalyzeContractPatterns("")
	if got.HasProxy || got.HasMintFunction || got.HasBlacklist || got.HasPausable ||
		got.HasFeeModification || got.HasMaxTxLimit || got.HasAntiBot || got.HasHiddenOwner {
		t.Error("空源码应全部为 false")
	}
	if got.SuspiciousPatterns == nil || len(got.SuspiciousPatterns) != 0 {
		t.Error("SuspiciousPatterns 应为空列表而非 nil")
	}
}

func TestAnalyzeContractPatternsFlags(t *testing.T) {
	cases := []struct {
		name   string
		source string
		field  string
		want   bool
	}{
		{"delegatecall 触发代理", "contract A { function x() public { addr.delegatecall(data); } }", "proxy", true},
		{"Upgradeable 触发代理", "contract TokenUpgradeable is UUPSUpgradeable {}", "proxy", true},
		{"mint 函数签名", "function mint(address to, uint256 amount) external onlyOwner {}", "mint", true},
		{"仅注释提到 mint 不算", "// mint is disabled forever\nfunction mint(address a) internal {}", "mint", false},
		{"普通 ERC20 无 mint", "function transfer(address to, uint256 v) public returns (bool) {}", "mint", false},
		{"blacklist 映射", "mapping(address => bool) private _isExcluded; function blacklist(address a) external {}", "blacklist", true},
		{"whenNotPaused 修饰器", "function transfer(address to) public whenNotPaused {}", "pausable", true},
		{"setFee 函数", "function setFee(uint256 f) external onlyOwner { _taxFee = f; }", "fee", true},
		{"maxTxAmount 限制", "uint256 public _maxTxAmount = 1000e18;", "maxtx", true},
		{"antiBot 开关", "bool public tradingActive = false;", "antibot", true},
		{"_previousOwner 隐藏所有者", "address private _previousOwner;", "hidden", true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			p := AnalyzeContractPatterns(tt.source)
			var got bool
			switch tt.field {
			case "proxy":
				got = p.HasProxy
			case "mint":
				got = p.HasMintFunction
			case "blacklist":
				got = p.HasBlacklist
			case "pausable":
				got = p.HasPausable
			case "fee":
				got = p.HasFeeModification
			case "maxtx":
				got = p.HasMaxTxLimit
			case "antibot":
				got = p.HasAntiBot
			case "hidden":
				got = p.HasHiddenOwner
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestAnalyzeContractPatternsSuspicious(t *testing.T) {
	source := `
contract Rug {
    function destroy() external onlyOwner {
        selfdestruct(payable(owner));
    }
    function sneaky() internal {
        assembly {
            sstore(0x0, caller())
        }
    }
    function transfer(address to, uint256 v) public {
        require(block.number > launchBlock, "not yet");
    }
    function drain(address token) external {
        IERC20(token).approve(spender, type(uint256).max);
    }
}`

	p := AnalyzeContractPatterns(source)

	want := []string{
		"Contains selfdestruct",
		"Uses raw assembly storage writes",
		"Block-number-based restrictions (possible sniper protection or time bomb)",
		"Unlimited approval patterns detected",
	}
	if len(p.SuspiciousPatterns) != len(want) {
		t.Fatalf("可疑模式 = %v, want %v", p.SuspiciousPatterns, want)
	}
	for i := range want {
		if p.SuspiciousPatterns[i] != want[i] {
			t.Errorf("第 %d 条 = %q, want %q", i, p.SuspiciousPatterns[i], want[i])
		}
	}
}

func TestAnalyzeContractPatternsCaseInsensitive(t *testing.T) {
	p := AnalyzeContractPatterns("FUNCTION MINT(address TO) EXTERNAL {} SELFDESTRUCT(x);")
	if !p.HasMintFunction {
		t.Error("大写源码也应命中 mint")
	}
	if len(p.SuspiciousPatterns) == 0 {
		t.Error("大写 SELFDESTRUCT 也应命中")
	}
}

func TestAnalyzeContractPatternsBlockGateNeedsRequire(t *testing.T) {
	// 只有 block.number 比较、没有 require 的不算限制
	p := AnalyzeContractPatterns("uint256 x = block.number > 5 ? 1 : 2;")
	for _, s := range p.SuspiciousPatterns {
		if s == "Block-number-based restrictions (possible sniper protection or time bomb)" {
			t.Error("无 require 的 block.number 比较不应命中")
		}
	}
}
