package attester

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pinio-labs/pinioscan/src/internal/chain"
)

// Attestation 合约里的一条历史认证记录
type Attestation struct {
	Token     common.Address
	Score     uint8
	RiskLevel string
	ReportCID string
	Timestamp *big.Int
	Scanner   common.Address
}

// Reader 认证合约的只读视图，不需要私钥
type Reader struct {
	contract *bind.BoundContract
}

// NewReader 创建只读访问器
func NewReader(backend bind.ContractCaller, contractAddress string) (*Reader, error) {
	if contractAddress == "" {
		return nil, ErrNoContractAddress
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("无效的认证合约地址: %s", contractAddress)
	}

	contract := bind.NewBoundContract(common.HexToAddress(contractAddress), chain.PinioscanABI, backend, nil, nil)
	return &Reader{contract: contract}, nil
}

// TotalScans 全网累计扫描次数
func (r *Reader) TotalScans(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "totalScans"); err != nil {
		return 0, fmt.Errorf("查询 totalScans 失败: %w", err)
	}
	total, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("totalScans 返回类型异常")
	}
	return total.Uint64(), nil
}

// RecentTokens 最近被认证过的代币地址（最多 count 个）
func (r *Reader) RecentTokens(ctx context.Context, count uint64) ([]common.Address, error) {
	var out []interface{}
	err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRecentTokens", new(big.Int).SetUint64(count))
	if err != nil {
		return nil, fmt.Errorf("查询 getRecentTokens 失败: %w", err)
	}
	tokens, ok := out[0].([]common.Address)
	if !ok {
		return nil, errors.New("getRecentTokens 返回类型异常")
	}
	return tokens, nil
}

// LatestScore 某代币最近一次认证的分数
func (r *Reader) LatestScore(ctx context.Context, token common.Address) (uint8, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getLatestScore", token); err != nil {
		return 0, fmt.Errorf("查询 getLatestScore 失败: %w", err)
	}
	score, ok := out[0].(uint8)
	if !ok {
		return 0, errors.New("getLatestScore 返回类型异常")
	}
	return score, nil
}

// Attestations 某代币的全部认证历史
func (r *Reader) Attestations(ctx context.Context, token common.Address) ([]Attestation, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAttestations", token); err != nil {
		return nil, fmt.Errorf("查询 getAttestations 失败: %w", err)
	}

	attestations := *abi.ConvertType(out[0], new([]Attestation)).(*[]Attestation)
	return attestations, nil
}
