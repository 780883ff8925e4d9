// Package fetcher 证据收集器：按代币地址并发拉取链上与链下数据源，
// 汇总成单个证据包。除字节码不存在外，任何单一数据源失败都不致命，
// 对应字段按文档约定降级为空值/false/nil。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pinio-labs/pinioscan/src/internal"
	"github.com/pinio-labs/pinioscan/src/internal/chain"
	logger "github.com/pinio-labs/pinioscan/src/internal/common"
)

// ErrNotAContract 地址上没有合约字节码（EOA 或不存在），收集阶段唯一的致命错误
var ErrNotAContract = errors.New("address is not a contract (EOA or empty)")

// ChainReader 节点读取能力，ethclient.Client 天然满足
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ExplorerAPI 区块浏览器查询能力，BaseScanClient 是生产实现
type ExplorerAPI interface {
	GetContractSource(ctx context.Context, address string) (SourceInfo, error)
	GetContractCreator(ctx context.Context, address string) (string, error)
	GetTopHolders(ctx context.Context, tokenAddress string, count int) ([]RawHolder, error)
	GetFirstTx(ctx context.Context, address string) (*FirstTx, error)
	GetTokenTransfers(ctx context.Context, tokenAddress string, count int) ([]internal.TokenTransfer, error)
}

// Fetcher 证据收集器。所有外部依赖在构造时注入，便于用假实现测试
type Fetcher struct {
	client   ChainReader
	explorer ExplorerAPI
	pinion   PinionAPI

	holderCount   int
	transferCount int
}

// NewFetcher 创建收集器。pinion 可为 nil（价格/池深度全部降级）
func NewFetcher(client ChainReader, explorer ExplorerAPI, pinion PinionAPI) *Fetcher {
	return &Fetcher{
		client:        client,
		explorer:      explorer,
		pinion:        pinion,
		holderCount:   20,
		transferCount: 50,
	}
}

// callERC20 调一个 ERC-20 只读方法并返回解码结果
func (f *Fetcher) callERC20(ctx context.Context, addr common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := chain.ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s failed: %w", method, err)
	}
	out, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty return", method)
	}
	return chain.ERC20ABI.Unpack(method, out)
}

// FetchTokenInfo 读取代币元数据。字节码为空时返回 ErrNotAContract，
// 其余字段各自降级：name→Unknown symbol→??? decimals→18 totalSupply→0 owner→空
func (f *Fetcher) FetchTokenInfo(ctx context.Context, address string) (internal.TokenInfo, error) {
	addr := common.HexToAddress(address)

	code, err := f.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return internal.TokenInfo{}, fmt.Errorf("读取合约字节码失败: %w", err)
	}
	if len(code) == 0 {
		return internal.TokenInfo{}, fmt.Errorf("%w: %s", ErrNotAContract, address)
	}

	info := internal.TokenInfo{
		Address:     address,
		Name:        "Unknown",
		Symbol:      "???",
		Decimals:    18,
		TotalSupply: "0",
	}

	if vals, err := f.callERC20(ctx, addr, "name"); err == nil && len(vals) == 1 {
		if s, ok := vals[0].(string); ok {
			info.Name = s
		}
	}
	if vals, err := f.callERC20(ctx, addr, "symbol"); err == nil && len(vals) == 1 {
		if s, ok := vals[0].(string); ok {
			info.Symbol = s
		}
	}
	if vals, err := f.callERC20(ctx, addr, "decimals"); err == nil && len(vals) == 1 {
		if d, ok := vals[0].(uint8); ok {
			info.Decimals = d
		}
	}
	if vals, err := f.callERC20(ctx, addr, "totalSupply"); err == nil && len(vals) == 1 {
		if supply, ok := vals[0].(*big.Int); ok {
			info.TotalSupply = supply.String()
		}
	}
	if vals, err := f.callERC20(ctx, addr, "owner"); err == nil && len(vals) == 1 {
		if owner, ok := vals[0].(common.Address); ok && owner != (common.Address{}) {
			info.Owner = owner.Hex()
		}
	}

	// 源码验证状态（失败降级为未验证）
	if src, err := f.explorer.GetContractSource(ctx, address); err == nil {
		info.IsVerified = src.IsVerified
		info.SourceCode = src.SourceCode
		info.Compiler = src.Compiler
	} else {
		logger.Log.WithError(err).WithField("address", address).Warn("contract source lookup failed")
	}

	if creator, err := f.explorer.GetContractCreator(ctx, address); err == nil {
		info.Creator = creator
	} else {
		logger.Log.WithError(err).WithField("address", address).Warn("creator lookup failed")
	}

	return info, nil
}

// FetchTopHolders 查询大户并换算占比。
// 占比用 balance*10000/supply 的整数运算再 /100，避免超大整数的浮点除法
func (f *Fetcher) FetchTopHolders(ctx context.Context, tokenAddress string, totalSupply *big.Int, decimals uint8) ([]internal.HolderInfo, error) {
	raw, err := f.explorer.GetTopHolders(ctx, tokenAddress, f.holderCount)
	if err != nil {
		return nil, err
	}

	holders := make([]internal.HolderInfo, 0, len(raw))
	for _, h := range raw {
		balance, ok := new(big.Int).SetString(h.Quantity, 10)
		if !ok {
			balance = big.NewInt(0)
		}

		var pct float64
		if totalSupply != nil && totalSupply.Sign() > 0 {
			bp := new(big.Int).Div(new(big.Int).Mul(balance, big.NewInt(10000)), totalSupply)
			pct = float64(bp.Int64()) / 100
		}

		holders = append(holders, internal.HolderInfo{
			Address:    h.Address,
			Balance:    formatUnits(balance, decimals),
			Percentage: pct,
			Label:      chain.LabelFor(h.Address),
		})
	}
	return holders, nil
}

// poolProbe 固定的报价资产 × 费率档探测矩阵
var poolProbes = []struct {
	quote common.Address
	fee   int64
}{
	{chain.WETH, 500},
	{chain.WETH, 3000},
	{chain.USDC, 500},
	{chain.USDC, 3000},
}

// FetchLiquidityPools 在 Uniswap V3 工厂上探测池子。不存在的池子静默跳过。
// 池子美元深度来自 Pinion balance skill 对池子地址的估值，属于已知的近似，
// 不是储备量定价。池子只做识别，不做完整解码
func (f *Fetcher) FetchLiquidityPools(ctx context.Context, tokenAddress string) ([]internal.LiquidityInfo, error) {
	token := common.HexToAddress(tokenAddress)
	results := make([]internal.LiquidityInfo, 0, len(poolProbes))

	for _, probe := range poolProbes {
		data, err := chain.FactoryABI.Pack("getPool", token, probe.quote, big.NewInt(probe.fee))
		if err != nil {
			continue
		}
		factory := chain.UniswapV3Factory
		out, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
		if err != nil {
			continue
		}
		vals, err := chain.FactoryABI.Unpack("getPool", out)
		if err != nil || len(vals) != 1 {
			continue
		}
		pool, ok := vals[0].(common.Address)
		if !ok || pool == (common.Address{}) {
			continue
		}

		var liquidityUSD float64
		if f.pinion != nil {
			if balance, err := f.pinion.Balance(ctx, pool.Hex()); err == nil && balance != nil {
				liquidityUSD = balance.TotalUSDValue
			}
		}

		token0, token1 := sortTokenPair(tokenAddress, probe.quote.Hex())
		results = append(results, internal.LiquidityInfo{
			Pair:         pool.Hex(),
			Dex:          fmt.Sprintf("Uniswap V3 (%g%% fee)", float64(probe.fee)/10000),
			Token0:       token0,
			Token1:       token1,
			LiquidityUSD: liquidityUSD,
			IsLocked:     false,
		})
	}

	return results, nil
}

// FetchContractAge 以首笔交易时间计算合约年龄，人类可读格式
func (f *Fetcher) FetchContractAge(ctx context.Context, address string) (string, error) {
	first, err := f.explorer.GetFirstTx(ctx, address)
	if err != nil || first == nil || first.Timestamp <= 0 {
		return "", err
	}
	return humanizeAge(time.Since(time.Unix(first.Timestamp, 0))), nil
}

// FetchAll 汇总全部数据源为一个证据包。FetchTokenInfo 是唯一的致命路径；
// 其余各源以最大并发度拉取，互不取消，各自失败各自降级
func (f *Fetcher) FetchAll(ctx context.Context, address string) (*internal.Evidence, error) {
	tokenInfo, err := f.FetchTokenInfo(ctx, address)
	if err != nil {
		return nil, err
	}

	totalSupply, ok := new(big.Int).SetString(tokenInfo.TotalSupply, 10)
	if !ok {
		totalSupply = big.NewInt(0)
	}

	ev := &internal.Evidence{
		Token:       tokenInfo,
		Holders:     []internal.HolderInfo{},
		Liquidity:   []internal.LiquidityInfo{},
		Transfers:   []internal.TokenTransfer{},
		Patterns:    AnalyzeContractPatterns(tokenInfo.SourceCode),
		IsCanonical: chain.CanonicalTokens[strings.ToLower(address)] != "",
	}

	var wg sync.WaitGroup
	var contractAge string

	wg.Add(4)
	go func() {
		defer wg.Done()
		if holders, err := f.FetchTopHolders(ctx, address, totalSupply, tokenInfo.Decimals); err == nil && holders != nil {
			ev.Holders = holders
		} else if err != nil {
			logger.Log.WithError(err).WithField("address", address).Warn("holder fetch failed")
		}
	}()
	go func() {
		defer wg.Done()
		if pools, err := f.FetchLiquidityPools(ctx, address); err == nil && pools != nil {
			ev.Liquidity = pools
		} else if err != nil {
			logger.Log.WithError(err).WithField("address", address).Warn("liquidity fetch failed")
		}
	}()
	go func() {
		defer wg.Done()
		if transfers, err := f.explorer.GetTokenTransfers(ctx, address, f.transferCount); err == nil && transfers != nil {
			ev.Transfers = transfers
		} else if err != nil {
			logger.Log.WithError(err).WithField("address", address).Warn("transfer fetch failed")
		}
	}()
	go func() {
		defer wg.Done()
		if age, err := f.FetchContractAge(ctx, address); err == nil {
			contractAge = age
		} else {
			logger.Log.WithError(err).WithField("address", address).Warn("contract age fetch failed")
		}
	}()
	wg.Wait()

	ev.Token.ContractAge = contractAge

	// 主池的 LP 锁仓检查
	if len(ev.Liquidity) > 0 {
		lock := f.CheckLPLocks(ctx, ev.Liquidity[0].Pair)
		ev.LPLock = lock
		if lock.IsLocked {
			ev.Liquidity[0].IsLocked = true
			ev.Liquidity[0].LockExpiry = lock.LockExpiry
		}
	}

	// Pinion: 价格与市值（尽力而为）
	if f.pinion != nil {
		if price, err := f.pinion.Price(ctx, ev.Token.Symbol); err == nil {
			ev.Price = price
		}
	}

	// Pinion: 部署者部署后第一件事干了什么（尽力而为）
	if f.pinion != nil && ev.Token.Creator != "" {
		if first, err := f.explorer.GetFirstTx(ctx, ev.Token.Creator); err == nil && first != nil && first.Hash != "" {
			if txInfo, err := f.pinion.Tx(ctx, first.Hash); err == nil {
				ev.DeployerTx = txInfo
			}
		}
	}

	return ev, nil
}

// sortTokenPair 池子代币按地址字典序升序
func sortTokenPair(a, b string) (string, string) {
	if strings.ToLower(a) < strings.ToLower(b) {
		return a, b
	}
	return b, a
}

// formatUnits 把最小单位余额转成十进制代币数量字符串
func formatUnits(balance *big.Int, decimals uint8) string {
	if balance == nil {
		return "0"
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r := new(big.Rat).SetFrac(balance, divisor)
	s := r.FloatString(int(decimals))
	// 去掉小数尾零
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// humanizeAge 时长转人类可读年龄
func humanizeAge(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days < 0 {
		days = 0
	}
	switch {
	case days > 365:
		return fmt.Sprintf("%d years, %d days", days/365, days%365)
	case days > 30:
		return fmt.Sprintf("%d months, %d days", days/30, days%30)
	default:
		return fmt.Sprintf("%d days", days)
	}
}
