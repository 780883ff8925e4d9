package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CreateProxyHTTPClient 创建可选带代理的 HTTP 客户端。
// proxy 为空时返回只带超时的默认客户端。
func CreateProxyHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	client := &http.Client{
		Timeout: timeout,
	}

	if strings.TrimSpace(proxy) == "" {
		return client, nil
	}

	u, err := url.Parse(strings.TrimSpace(proxy))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme: %s (supported: http, https, socks5)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy host cannot be empty")
	}

	client.Transport = &http.Transport{
		Proxy:               http.ProxyURL(u),
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
	}
	return client, nil
}
