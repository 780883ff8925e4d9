package fetcher

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pinio-labs/pinioscan/src/internal"
	"github.com/pinio-labs/pinioscan/src/internal/chain"
)

// CheckLPLocks 检查 LP 代币有多少落在已知锁仓合约或销毁地址里。
// 锁仓占比 > 50% 判定为已锁。任何链上读取失败都降级为未锁
func (f *Fetcher) CheckLPLocks(ctx context.Context, pairAddress string) internal.LPLockInfo {
	none := internal.LPLockInfo{IsLocked: false, LockedPercent: 0}
	if pairAddress == "" || pairAddress == (common.Address{}).Hex() {
		return none
	}

	pair := common.HexToAddress(pairAddress)

	totalLP := f.lpBalanceCall(ctx, pair, "totalSupply")
	if totalLP == nil || totalLP.Sign() == 0 {
		return none
	}

	totalLocked := big.NewInt(0)
	var platforms []string

	for lockerAddr, platform := range chain.KnownLockers {
		balance := f.lpBalanceCall(ctx, pair, "balanceOf", common.HexToAddress(lockerAddr))
		if balance != nil && balance.Sign() > 0 {
			totalLocked.Add(totalLocked, balance)
			platforms = append(platforms, platform)
		}
	}
	for _, dead := range chain.DeadAddresses {
		balance := f.lpBalanceCall(ctx, pair, "balanceOf", common.HexToAddress(dead))
		if balance != nil && balance.Sign() > 0 {
			totalLocked.Add(totalLocked, balance)
			if !containsString(platforms, "Burned") {
				platforms = append(platforms, "Burned")
			}
		}
	}

	bp := new(big.Int).Div(new(big.Int).Mul(totalLocked, big.NewInt(10000)), totalLP)
	lockedPercent := float64(bp.Int64()) / 100

	return internal.LPLockInfo{
		IsLocked:      lockedPercent > 50,
		LockedPercent: lockedPercent,
		LockPlatform:  strings.Join(platforms, ", "),
	}
}

// lpBalanceCall LP 代币上的 uint256 只读调用，失败返回 nil
func (f *Fetcher) lpBalanceCall(ctx context.Context, pair common.Address, method string, args ...interface{}) *big.Int {
	data, err := chain.ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil
	}
	out, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil || len(out) == 0 {
		return nil
	}
	vals, err := chain.ERC20ABI.Unpack(method, out)
	if err != nil || len(vals) != 1 {
		return nil
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
