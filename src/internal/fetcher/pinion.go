package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pinio-labs/pinioscan/src/internal"
	"github.com/pinio-labs/pinioscan/src/internal/common"
)

// PinionAPI Pinion 工具调用接口（每次调用计费 $0.01），
// 显式注入到收集器，不做隐藏的模块级懒初始化
type PinionAPI interface {
	Price(ctx context.Context, symbol string) (*internal.PriceData, error)
	Balance(ctx context.Context, address string) (*WalletBalance, error)
	Tx(ctx context.Context, hash string) (*internal.DeployerTxInfo, error)
}

// WalletBalance Pinion balance skill 返回的钱包估值
type WalletBalance struct {
	ETHBalance    string  `json:"ethBalance"`
	USDCBalance   string  `json:"usdcBalance"`
	TotalUSDValue float64 `json:"totalUsdValue"`
}

// PinionConfig Pinion 客户端配置
type PinionConfig struct {
	PrivateKey string
	BaseURL    string
	Timeout    time.Duration
	Proxy      string
}

// PinionClient PinionAPI 的 HTTP 实现
type PinionClient struct {
	cfg        PinionConfig
	httpClient *http.Client
}

// NewPinionClient 创建 Pinion 客户端。凭证缺失不是错误：
// 所有 skill 调用都是尽力而为，上层按字段降级
func NewPinionClient(cfg PinionConfig) (*PinionClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pinion-os.xyz/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient, err := common.CreateProxyHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("创建 Pinion HTTP 客户端失败: %w", err)
	}

	return &PinionClient{cfg: cfg, httpClient: httpClient}, nil
}

type pinionResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// callSkill 调用一个 skill 并把 data 解码到 out
func (c *PinionClient) callSkill(ctx context.Context, skill string, payload any, out any) error {
	if c.cfg.PrivateKey == "" {
		return fmt.Errorf("pinion credentials not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/skills/%s", c.cfg.BaseURL, skill)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.PrivateKey))
	req.Header.Set("X-Pinion-Network", "base")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinion skill %s returned status %d: %s", skill, resp.StatusCode, string(raw))
	}

	var envelope pinionResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if envelope.Error != "" {
		return fmt.Errorf("pinion skill %s error: %s", skill, envelope.Error)
	}
	if envelope.Data == nil {
		return fmt.Errorf("pinion skill %s: empty data", skill)
	}
	return json.Unmarshal(envelope.Data, out)
}

// Price 按符号查询价格与市值
func (c *PinionClient) Price(ctx context.Context, symbol string) (*internal.PriceData, error) {
	var out internal.PriceData
	if err := c.callSkill(ctx, "price", map[string]string{"symbol": symbol}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance 查询地址的美元估值（池子深度近似也走这里）
func (c *PinionClient) Balance(ctx context.Context, address string) (*WalletBalance, error) {
	var out WalletBalance
	if err := c.callSkill(ctx, "balance", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tx 解码一笔交易（部署者首笔交易分析用）
func (c *PinionClient) Tx(ctx context.Context, hash string) (*internal.DeployerTxInfo, error) {
	var out internal.DeployerTxInfo
	if err := c.callSkill(ctx, "tx", map[string]string{"hash": hash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
