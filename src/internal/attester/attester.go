package attester

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pinio-labs/pinioscan/src/internal"
	"github.com/pinio-labs/pinioscan/src/internal/chain"
	logging "github.com/pinio-labs/pinioscan/src/internal/common"
)

// 配置缺失时的哨兵错误，调用方据此决定降级原因
var (
	ErrNoContractAddress = errors.New("attestation contract address not configured")
	ErrNoDeployerKey     = errors.New("deployer private key not configured")
)

// Config 上链认证配置
type Config struct {
	ContractAddress string // Pinioscan 认证合约地址
	DeployerKey     string // 提交认证的私钥（hex，可带 0x 前缀）
}

// Attester 把扫描结论写入 Base 上的认证合约
type Attester struct {
	contract *bind.BoundContract
	client   *ethclient.Client
	auth     *bind.TransactOpts
	address  common.Address
}

// NewAttester 创建认证器。配置不完整直接失败，
// 让调用方在扫描开始前就知道认证会被跳过
func NewAttester(client *ethclient.Client, cfg Config) (*Attester, error) {
	if cfg.ContractAddress == "" {
		return nil, ErrNoContractAddress
	}
	if cfg.DeployerKey == "" {
		return nil, ErrNoDeployerKey
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("无效的认证合约地址: %s", cfg.ContractAddress)
	}

	key, err := parsePrivateKey(cfg.DeployerKey)
	if err != nil {
		return nil, fmt.Errorf("解析部署者私钥失败: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(chain.BaseChainID))
	if err != nil {
		return nil, fmt.Errorf("创建交易签名器失败: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(address, chain.PinioscanABI, client, client, client)

	return &Attester{
		contract: contract,
		client:   client,
		auth:     auth,
		address:  address,
	}, nil
}

// Attest 生成 reportCID 并调用 submitAttestation，等待上链后返回交易哈希
func (a *Attester) Attest(ctx context.Context, report *internal.PinioscanReport) (string, error) {
	cid, err := ReportCID(report)
	if err != nil {
		return "", fmt.Errorf("计算 reportCID 失败: %w", err)
	}

	token := common.HexToAddress(report.Token.Address)
	score := uint8(internal.ClampScore(report.OverallScore))

	opts := *a.auth
	opts.Context = ctx

	tx, err := a.contract.Transact(&opts, "submitAttestation", token, score, report.RiskLevel, cid)
	if err != nil {
		return "", fmt.Errorf("提交认证交易失败: %w", err)
	}

	logging.Log.WithField("tx", tx.Hash().Hex()).WithField("token", report.Token.Address).
		Info("📝 认证交易已提交，等待确认...")

	receipt, err := bind.WaitMined(ctx, a.client, tx)
	if err != nil {
		return "", fmt.Errorf("等待认证交易确认失败: %w", err)
	}
	if receipt.Status == 0 {
		return "", fmt.Errorf("认证交易被回滚: %s", tx.Hash().Hex())
	}

	logging.Log.WithField("tx", tx.Hash().Hex()).Info("✅ 链上认证完成")
	return tx.Hash().Hex(), nil
}

// canonicalReport 固定字段顺序，保证同一份报告的哈希稳定
type canonicalReport struct {
	Score          int                       `json:"score"`
	RiskLevel      string                    `json:"riskLevel"`
	Summary        string                    `json:"summary"`
	Categories     internal.ReportCategories `json:"categories"`
	Flags          []string                  `json:"flags"`
	Recommendation string                    `json:"recommendation"`
	Timestamp      int64                     `json:"timestamp"`
}

// ReportCID 报告的内容标识：规范化 JSON 的 keccak256 哈希（hex）
func ReportCID(report *internal.PinioscanReport) (string, error) {
	data, err := json.Marshal(canonicalReport{
		Score:          report.OverallScore,
		RiskLevel:      report.RiskLevel,
		Summary:        report.Summary,
		Categories:     report.Categories,
		Flags:          report.Flags,
		Recommendation: report.Recommendation,
		Timestamp:      report.Timestamp,
	})
	if err != nil {
		return "", err
	}
	return crypto.Keccak256Hash(data).Hex(), nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}
