// Package chain 持有 Base 主网常量、合约 ABI 与节点连接。
package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Base 主网
const (
	BaseChainID = 8453
)

// Uniswap V3 on Base
var (
	UniswapV3Factory = common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD")
	AerodromeFactory = common.HexToAddress("0x420DD381b31aEf6683db6B902084cB0FFECe40Da")

	WETH = common.HexToAddress("0x4200000000000000000000000000000000000006")
	USDC = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

// CanonicalTokens Base 官方资产白名单，命中后跳过部分启发式惩罚
var CanonicalTokens = map[string]string{
	"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": "USDC",
	"0x4200000000000000000000000000000000000006": "WETH",
	"0x2ae3f1ec7f1f5012cfeab0185bfc7aa3cf0dec22": "cbETH",
	"0x60a3e35cc302bfa44cb288bc5a4f316fdb1adb42": "EURC",
	"0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca": "USDbC",
}

// DeadAddresses 销毁地址（黑洞判定）
var DeadAddresses = []string{
	"0x000000000000000000000000000000000000dead",
	"0x0000000000000000000000000000000000000000",
	"0x0000000000000000000000000000000000000001",
}

// KnownAddresses 已知基础设施地址标签
var KnownAddresses = map[string]string{
	"0x33128a8fc17869897dce68ed026d694621f6fdfd": "Uniswap V3 Factory",
	"0x420dd381b31aef6683db6b902084cb0ffece40da": "Aerodrome Factory",
	"0x4200000000000000000000000000000000000006": "WETH",
	"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": "USDC",
	"0x000000000000000000000000000000000000dead": "🔥 Burn Address",
	"0x0000000000000000000000000000000000000000": "🔥 Zero Address",
}

// KnownLockers 已知 LP 时间锁合约
var KnownLockers = map[string]string{
	"0x231278edd38b00b07fbd52120cef685b9baebcc1": "Team Finance",
	"0x71b5759d73262fbb223956913ecf4ecc51057641": "Unicrypt",
	"0xdba68f07d1b7ca219f78ae8582c213d975c25caf": "PinkLock",
}

// IsDeadAddress 判断是否销毁地址
func IsDeadAddress(addr string) bool {
	addr = strings.ToLower(addr)
	for _, d := range DeadAddresses {
		if addr == d {
			return true
		}
	}
	return false
}

// LabelFor 给地址打标签，未知返回空串
func LabelFor(addr string) string {
	lower := strings.ToLower(addr)
	if label, ok := KnownAddresses[lower]; ok {
		return label
	}
	if IsDeadAddress(lower) {
		return "🔥 Burn"
	}
	return ""
}

const erc20ABIJSON = `[
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"owner","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const factoryABIJSON = `[
	{"name":"getPool","type":"function","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"fee","type":"uint24"}],"outputs":[{"name":"","type":"address"}]}
]`

const pinioscanABIJSON = `[
	{"name":"submitAttestation","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"score","type":"uint8"},{"name":"riskLevel","type":"string"},{"name":"reportCID","type":"string"}],"outputs":[]},
	{"name":"getAttestations","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"token","type":"address"},{"name":"score","type":"uint8"},{"name":"riskLevel","type":"string"},{"name":"reportCID","type":"string"},{"name":"timestamp","type":"uint256"},{"name":"scanner","type":"address"}]}]},
	{"name":"getLatestScore","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"score","type":"uint8"},{"name":"riskLevel","type":"string"},{"name":"timestamp","type":"uint256"}]},
	{"name":"totalScans","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getRecentTokens","type":"function","stateMutability":"view","inputs":[{"name":"count","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]}
]`

var (
	ERC20ABI     = mustABI(erc20ABIJSON)
	FactoryABI   = mustABI(factoryABIJSON)
	PinioscanABI = mustABI(pinioscanABIJSON)
)

func mustABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("chain: bad ABI definition: %v", err))
	}
	return parsed
}

// Dial 连接 Base 节点
func Dial(rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 Base 节点失败: %w", err)
	}
	return client, nil
}
