package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/pinio-labs/pinioscan/src/internal/attester"
	logging "github.com/pinio-labs/pinioscan/src/internal/common"
	"github.com/pinio-labs/pinioscan/src/config"
	"github.com/pinio-labs/pinioscan/src/internal/scanner"
)

// ScanService 扫描入口
type ScanService interface {
	Scan(ctx context.Context, address string) <-chan scanner.Event
}

// Archive 历史扫描记录来源（可选）
type Archive interface {
	RecentScans(ctx context.Context, limit int) ([]config.ScanRecord, error)
}

// ChainView 认证合约的只读查询（可选）
type ChainView interface {
	TotalScans(ctx context.Context) (uint64, error)
	Attestations(ctx context.Context, token common.Address) ([]attester.Attestation, error)
}

// Config 服务配置
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RateLimit      int           // 单 IP 窗口内扫描次数，<=0 用默认值
	RateWindow     time.Duration // 限流窗口，<=0 用默认值
	EnableRateLim  bool
}

// Server 对外 HTTP 服务：SSE/WebSocket 扫描流 + 只读查询
type Server struct {
	cfg      Config
	scans    ScanService
	archive  Archive
	chain    ChainView
	metrics  http.Handler
	limiter  *rateLimiter
	upgrader websocket.Upgrader
}

// NewServer 创建服务。archive/chain/metrics 允许为 nil，对应端点返回 503
func NewServer(cfg Config, scans ScanService, archive Archive, chain ChainView, metrics http.Handler) *Server {
	s := &Server{
		cfg:     cfg,
		scans:   scans,
		archive: archive,
		chain:   chain,
		metrics: metrics,
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origin, cfg.AllowedOrigins)
		},
	}
	return s
}

// Routes 注册全部端点
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan-stream", s.handleScanStream)
	mux.HandleFunc("/ws/scan", s.handleScanWS)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/attestations", s.handleAttestations)
	mux.HandleFunc("/api/total-scans", s.handleTotalScans)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// ListenAndServe 启动服务并阻塞
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// 扫描流是长连接，不设全局写超时
	}
	logging.Log.WithField("addr", s.cfg.ListenAddr).Info("🚀 Pinioscan 服务启动")
	return srv.ListenAndServe()
}

// handleScanStream SSE 扫描流: GET /api/scan-stream?address=0x...
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r, s.cfg.AllowedOrigins)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		http.Error(w, "missing address parameter", http.StatusBadRequest)
		return
	}

	if !s.allowScan(r) {
		http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range s.scans.Scan(r.Context(), address) {
		if event.Error != "" {
			event.Error = sanitizeError(event.Error)
		}
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// handleScanWS WebSocket 扫描流: 客户端发 {"address":"0x..."}，服务端推事件
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.WithError(err).Warn("⚠️ WebSocket 升级失败")
		return
	}
	defer conn.Close()

	var req struct {
		Address string `json:"address"`
	}
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	if err := conn.ReadJSON(&req); err != nil || req.Address == "" {
		conn.WriteJSON(scanner.Event{Status: scanner.StatusError, Error: "expected {\"address\":\"0x...\"}"})
		return
	}

	if !s.allowScan(r) {
		conn.WriteJSON(scanner.Event{Status: scanner.StatusError, Error: "rate limit exceeded, try again later"})
		return
	}

	for event := range s.scans.Scan(r.Context(), req.Address) {
		if event.Error != "" {
			event.Error = sanitizeError(event.Error)
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// handleHistory 最近扫描记录: GET /api/history?limit=20
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r, s.cfg.AllowedOrigins)
	if s.archive == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be 1-100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.archive.RecentScans(r.Context(), limit)
	if err != nil {
		logging.Log.WithError(err).Error("❌ 查询扫描历史失败")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

// handleAttestations 某代币的链上认证历史: GET /api/attestations?address=0x...
func (s *Server) handleAttestations(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r, s.cfg.AllowedOrigins)
	if s.chain == nil {
		http.Error(w, "attestation contract not configured", http.StatusServiceUnavailable)
		return
	}

	address := r.URL.Query().Get("address")
	if !common.IsHexAddress(address) {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}

	attestations, err := s.chain.Attestations(r.Context(), common.HexToAddress(address))
	if err != nil {
		logging.Log.WithError(err).Error("❌ 查询链上认证失败")
		http.Error(w, "failed to load attestations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, attestations)
}

// handleTotalScans 全网累计扫描次数: GET /api/total-scans
func (s *Server) handleTotalScans(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r, s.cfg.AllowedOrigins)
	if s.chain == nil {
		http.Error(w, "attestation contract not configured", http.StatusServiceUnavailable)
		return
	}

	total, err := s.chain.TotalScans(r.Context())
	if err != nil {
		logging.Log.WithError(err).Error("❌ 查询 totalScans 失败")
		http.Error(w, "failed to load total scans", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]uint64{"totalScans": total})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) allowScan(r *http.Request) bool {
	if !s.cfg.EnableRateLim {
		return true
	}
	return s.limiter.Allow(clientIP(r))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Log.WithError(err).Warn("⚠️ 响应序列化失败")
	}
}
