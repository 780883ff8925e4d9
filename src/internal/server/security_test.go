package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"普通错误原样返回", "token is not a contract", "token is not a contract"},
		{"剥离 Unix 路径", "open /etc/pinioscan/secret.yaml: no such file", "open : no such file"},
		{"超长消息替换为通用文案", strings.Repeat("x", 250), genericScanError},
		{"清洗后为空也用通用文案", "/var/lib/pinioscan/data", genericScanError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeError(tt.in); got != tt.want {
				t.Errorf("sanitizeError(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4321"
	if got := clientIP(r); got != "203.0.113.9" {
		t.Errorf("RemoteAddr 解析 = %q", got)
	}

	r.Header.Set("X-Real-Ip", "198.51.100.2")
	if got := clientIP(r); got != "198.51.100.2" {
		t.Errorf("X-Real-Ip = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	if got := clientIP(r); got != "192.0.2.1" {
		t.Errorf("X-Forwarded-For 应取首个 IP: %q", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://pinioscan.xyz", "http://localhost:3000"}

	if !originAllowed("https://pinioscan.xyz", allowed) {
		t.Error("白名单内的 origin 应放行")
	}
	if !originAllowed("HTTPS://PINIOSCAN.XYZ", allowed) {
		t.Error("origin 匹配不区分大小写")
	}
	if originAllowed("https://evil.example", allowed) {
		t.Error("白名单外的 origin 应拒绝")
	}
	if !originAllowed("https://anything.example", nil) {
		t.Error("空白名单应全放行")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)
	now := time.Unix(1756500000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("第 %d 次请求应放行", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("超出配额应拒绝")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("不同 IP 独立计数")
	}

	// 窗口滑动后恢复配额
	now = now.Add(61 * time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("窗口过期后应恢复配额")
	}
}
