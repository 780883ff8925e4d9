package server

import (
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// 扫描接口的默认限流：单 IP 每小时 5 次
const (
	defaultRateLimit  = 5
	defaultRateWindow = time.Hour
)

// genericScanError 错误消息过长或包含敏感内容时的兜底文案
const genericScanError = "Scan failed. Please try again."

var rePathLike = regexp.MustCompile(`(?:[A-Za-z]:)?(?:/[\w.-]+){2,}`)

// sanitizeError 清洗要回给客户端的错误消息：
// 去掉文件路径，超长消息直接替换成通用文案
func sanitizeError(msg string) string {
	cleaned := strings.TrimSpace(rePathLike.ReplaceAllString(msg, ""))
	if cleaned == "" || len(cleaned) > 200 {
		return genericScanError
	}
	return cleaned
}

// clientIP 取真实客户端 IP，优先信任反向代理头
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// originAllowed 空白名单表示全放行（本地开发模式）
func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// applyCORS 设置跨域与基础安全头
func applyCORS(w http.ResponseWriter, r *http.Request, allowed []string) {
	origin := r.Header.Get("Origin")
	if origin != "" && originAllowed(origin, allowed) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

// rateLimiter 进程内滑动窗口限流，按客户端 IP 计数
type rateLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	return &rateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow 判断该 IP 是否还有配额，有则记账
func (rl *rateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.hits[ip][:0]
	for _, t := range rl.hits[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.hits[ip] = kept

	if len(kept) >= rl.limit {
		return false
	}
	rl.hits[ip] = append(kept, now)
	return true
}
