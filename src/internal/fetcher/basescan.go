package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pinio-labs/pinioscan/src/internal"
	"github.com/pinio-labs/pinioscan/src/internal/common"
)

// BaseScanConfig BaseScan API 配置
type BaseScanConfig struct {
	APIKey  string
	BaseURL string
	Proxy   string // 可选的 HTTP 代理 URL
}

// baseScanEnvelope BaseScan API 响应外壳，result 形状随 action 变化
type baseScanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// BaseScanClient 区块浏览器 REST 客户端，带重试与速率限制
type BaseScanClient struct {
	cfg         BaseScanConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewBaseScanClient 创建客户端（每秒最多 5 个请求，对齐免费额度）
func NewBaseScanClient(cfg BaseScanConfig) (*BaseScanClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.basescan.org/api"
	}

	httpClient, err := common.CreateProxyHTTPClient(cfg.Proxy, 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("创建 BaseScan HTTP 客户端失败: %w", err)
	}

	return &BaseScanClient{
		cfg:         cfg,
		httpClient:  httpClient,
		rateLimiter: NewRateLimiter(5),
	}, nil
}

// Close 释放速率限制器
func (c *BaseScanClient) Close() {
	c.rateLimiter.Stop()
}

// query 发起一次 API 调用。status != "1" 是业务层结果（比如未验证），
// 不是网络错误，返回 (nil, nil)；短暂网络错误/EOF/超时做最多 3 次重试。
func (c *BaseScanClient) query(ctx context.Context, params url.Values) (json.RawMessage, error) {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("解析 BaseScan BaseURL 失败: %w", err)
	}

	params.Set("apikey", strings.TrimSpace(c.cfg.APIKey))
	u.RawQuery = params.Encode()
	finalURL := u.String()

	var lastErr error
	maxAttempts := 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.rateLimiter.Wait()

		req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
		if err != nil {
			return nil, fmt.Errorf("创建 BaseScan 请求失败: %w", err)
		}
		req.Header.Set("User-Agent", "pinioscan/1.0 (+https://pinioscan.xyz)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if isTemporaryNetErr(err) && attempt < maxAttempts {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("请求 BaseScan API 失败: %w", err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if (readErr == io.ErrUnexpectedEOF || isTemporaryNetErr(readErr)) && attempt < maxAttempts {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("读取 BaseScan 响应失败: %w", readErr)
		}

		if resp.StatusCode != http.StatusOK {
			snippet := string(body)
			if len(snippet) > 1024 {
				snippet = snippet[:1024]
			}
			return nil, fmt.Errorf("BaseScan 返回非 200 状态: %d, body: %s", resp.StatusCode, snippet)
		}

		var envelope baseScanEnvelope
		if jerr := json.Unmarshal(body, &envelope); jerr != nil {
			lastErr = jerr
			if attempt < maxAttempts {
				time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("解析 BaseScan JSON 失败: %w", jerr)
		}

		if envelope.Status != "1" {
			return nil, nil
		}
		return envelope.Result, nil
	}

	return nil, fmt.Errorf("请求 BaseScan 多次失败: %w", lastErr)
}

// SourceInfo 源码验证查询结果
type SourceInfo struct {
	IsVerified bool
	SourceCode string
	Compiler   string
}

// GetContractSource 查询合约源码与验证状态。未验证不算错误
func (c *BaseScanClient) GetContractSource(ctx context.Context, address string) (SourceInfo, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return SourceInfo{}, fmt.Errorf("空的地址传入 GetContractSource")
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)

	result, err := c.query(ctx, params)
	if err != nil || result == nil {
		return SourceInfo{}, err
	}

	var entries []struct {
		SourceCode      string `json:"SourceCode"`
		CompilerVersion string `json:"CompilerVersion"`
	}
	if err := json.Unmarshal(result, &entries); err != nil {
		return SourceInfo{}, fmt.Errorf("解析源码结果失败: %w", err)
	}
	if len(entries) == 0 || strings.TrimSpace(entries[0].SourceCode) == "" {
		// 合约未验证
		return SourceInfo{}, nil
	}

	return SourceInfo{
		IsVerified: true,
		SourceCode: entries[0].SourceCode,
		Compiler:   entries[0].CompilerVersion,
	}, nil
}

// GetContractCreator 查询合约创建者地址
func (c *BaseScanClient) GetContractCreator(ctx context.Context, address string) (string, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getcontractcreation")
	params.Set("contractaddresses", strings.TrimSpace(address))

	result, err := c.query(ctx, params)
	if err != nil || result == nil {
		return "", err
	}

	var entries []struct {
		ContractCreator string `json:"contractCreator"`
	}
	if err := json.Unmarshal(result, &entries); err != nil {
		return "", fmt.Errorf("解析创建者结果失败: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	return entries[0].ContractCreator, nil
}

// RawHolder 大户列表原始条目
type RawHolder struct {
	Address  string `json:"TokenHolderAddress"`
	Quantity string `json:"TokenHolderQuantity"`
}

// GetTopHolders 查询前 count 名大户，保持数据源排序
func (c *BaseScanClient) GetTopHolders(ctx context.Context, tokenAddress string, count int) ([]RawHolder, error) {
	if count <= 0 {
		count = 20
	}

	params := url.Values{}
	params.Set("module", "token")
	params.Set("action", "tokenholderlist")
	params.Set("contractaddress", strings.TrimSpace(tokenAddress))
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(count))

	result, err := c.query(ctx, params)
	if err != nil || result == nil {
		return nil, err
	}

	var holders []RawHolder
	if err := json.Unmarshal(result, &holders); err != nil {
		return nil, fmt.Errorf("解析大户列表失败: %w", err)
	}
	return holders, nil
}

// FirstTx 地址首笔交易
type FirstTx struct {
	Hash      string
	Timestamp int64
}

// GetFirstTx 查询地址的第一笔交易（合约年龄、部署者行为分析用）
func (c *BaseScanClient) GetFirstTx(ctx context.Context, address string) (*FirstTx, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", strings.TrimSpace(address))
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("page", "1")
	params.Set("offset", "1")
	params.Set("sort", "asc")

	result, err := c.query(ctx, params)
	if err != nil || result == nil {
		return nil, err
	}

	var txs []struct {
		Hash      string `json:"hash"`
		TimeStamp string `json:"timeStamp"`
	}
	if err := json.Unmarshal(result, &txs); err != nil {
		return nil, fmt.Errorf("解析交易列表失败: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	ts, _ := strconv.ParseInt(txs[0].TimeStamp, 10, 64)
	return &FirstTx{Hash: txs[0].Hash, Timestamp: ts}, nil
}

// GetTokenTransfers 查询最近 count 条转账（时间倒序）
func (c *BaseScanClient) GetTokenTransfers(ctx context.Context, tokenAddress string, count int) ([]internal.TokenTransfer, error) {
	if count <= 0 {
		count = 50
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("contractaddress", strings.TrimSpace(tokenAddress))
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(count))
	params.Set("sort", "desc")

	result, err := c.query(ctx, params)
	if err != nil || result == nil {
		return nil, err
	}

	var transfers []internal.TokenTransfer
	if err := json.Unmarshal(result, &transfers); err != nil {
		return nil, fmt.Errorf("解析转账列表失败: %w", err)
	}
	return transfers, nil
}

// isTemporaryNetErr 判断是否为可重试的网络错误
func isTemporaryNetErr(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout()
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return true
	}
	return false
}

// RateLimiter 简单的速率限制器
type RateLimiter struct {
	ticker *time.Ticker
}

// NewRateLimiter 创建速率限制器（每秒最多 requestsPerSecond 个请求）
func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	interval := time.Second / time.Duration(requestsPerSecond)
	return &RateLimiter{
		ticker: time.NewTicker(interval),
	}
}

// Wait 等待直到可以发送下一个请求
func (r *RateLimiter) Wait() {
	<-r.ticker.C
}

// Stop 停止速率限制器
func (r *RateLimiter) Stop() {
	r.ticker.Stop()
}
