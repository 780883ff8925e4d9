package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pinio-labs/pinioscan/src/internal"
	logging "github.com/pinio-labs/pinioscan/src/internal/common"
)

// 扫描进度状态。一次扫描按固定顺序推进，error 是唯一的异常终态
const (
	StatusFetching           = "fetching"
	StatusFetchingDone       = "fetching_done"
	StatusAnalyzing          = "analyzing"
	StatusAnalyzingDone      = "analyzing_done"
	StatusAttesting          = "attesting"
	StatusAttestationSkipped = "attestation_skipped"
	StatusAttestationError   = "attestation_error"
	StatusComplete           = "complete"
	StatusError              = "error"
)

// 认证跳过原因
const (
	ReasonNoContractAddress = "no_contract_address"
	ReasonNoDeployerKey     = "no_deployer_key"
)

// Event 扫描进度事件，直接序列化后推给客户端
type Event struct {
	Status      string                    `json:"status"`
	TokenName   string                    `json:"tokenName,omitempty"`
	TokenSymbol string                    `json:"tokenSymbol,omitempty"`
	Reason      string                    `json:"reason,omitempty"`
	Error       string                    `json:"error,omitempty"`
	CacheHit    bool                      `json:"cacheHit,omitempty"`
	Data        *internal.PinioscanReport `json:"data,omitempty"`
}

// Collector 证据采集
type Collector interface {
	FetchAll(ctx context.Context, address string) (*internal.Evidence, error)
}

// Synthesizer 报告合成（失败时内部降级，不返回错误）
type Synthesizer interface {
	Analyze(ctx context.Context, ev *internal.Evidence) *internal.PinioscanReport
}

// Submitter 链上认证
type Submitter interface {
	Attest(ctx context.Context, report *internal.PinioscanReport) (string, error)
}

// Store 报告缓存
type Store interface {
	Get(address string) (*internal.PinioscanReport, bool)
	Set(address string, report *internal.PinioscanReport)
}

// Archiver 报告归档（可选，失败只告警）
type Archiver interface {
	SaveScan(ctx context.Context, report *internal.PinioscanReport) error
}

// Options 扫描器行为开关
type Options struct {
	// SerializeByKey 同一地址的并发扫描串行执行，后到者直接吃缓存
	SerializeByKey bool
	// SkipAttestReason 非空表示认证器未配置，扫描时直接发 attestation_skipped
	SkipAttestReason string
}

// Scanner 扫描编排器：采集 → 分析 → 认证 → 缓存/归档
type Scanner struct {
	collector Collector
	analyzer  Synthesizer
	submitter Submitter
	store     Store
	archiver  Archiver
	metrics   *Metrics
	opts      Options

	mu    sync.Mutex
	locks map[string]*keyedLock
}

// keyedLock 带引用计数的地址锁，最后一个持有者释放时从锁表移除
type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewScanner 创建扫描器。submitter/archiver 可为 nil
func NewScanner(collector Collector, analyzer Synthesizer, submitter Submitter,
	store Store, archiver Archiver, metrics *Metrics, opts Options) *Scanner {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Scanner{
		collector: collector,
		analyzer:  analyzer,
		submitter: submitter,
		store:     store,
		archiver:  archiver,
		metrics:   metrics,
		opts:      opts,
		locks:     make(map[string]*keyedLock),
	}
}

// Metrics 暴露指标集给 HTTP 层挂载
func (s *Scanner) Metrics() *Metrics { return s.metrics }

// Scan 启动一次扫描，事件按顺序写入返回的 channel。
// channel 在 complete 或 error 之后关闭，且恰好关闭一次
func (s *Scanner) Scan(ctx context.Context, address string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		s.run(ctx, address, events)
	}()
	return events
}

func (s *Scanner) run(ctx context.Context, address string, events chan<- Event) {
	start := time.Now()
	s.metrics.ScansStarted.Inc()

	if !common.IsHexAddress(address) {
		s.metrics.ScansFailed.Inc()
		events <- Event{Status: StatusError, Error: fmt.Sprintf("Invalid token address: %s", address)}
		return
	}
	// 统一成 checksum 形式，缓存 key 再由存储层归一化
	checksummed := common.HexToAddress(address).Hex()

	if s.opts.SerializeByKey {
		unlock := s.lockKey(checksummed)
		defer unlock()
	}

	// 缓存命中：跳过真实采集与分析，但按原有阶段顺序回放事件，
	// 客户端无需区分报告来自缓存还是新扫描
	if report, ok := s.store.Get(checksummed); ok {
		s.metrics.CacheHits.Inc()
		logging.Log.WithField("token", checksummed).Info("⚡ 缓存命中，跳过采集与分析")
		events <- Event{Status: StatusFetching}
		events <- Event{Status: StatusFetchingDone, TokenName: report.Token.Name, TokenSymbol: report.Token.Symbol}
		events <- Event{Status: StatusAnalyzing}
		events <- Event{Status: StatusAnalyzingDone}
		report = s.backfillAttestation(ctx, checksummed, report, events)
		s.metrics.ScansCompleted.Inc()
		events <- Event{Status: StatusComplete, CacheHit: true, Data: report}
		return
	}

	events <- Event{Status: StatusFetching}
	ev, err := s.collector.FetchAll(ctx, checksummed)
	if err != nil {
		s.metrics.ScansFailed.Inc()
		logging.Log.WithError(err).WithField("token", checksummed).Error("❌ 证据采集失败")
		events <- Event{Status: StatusError, Error: err.Error()}
		return
	}
	events <- Event{Status: StatusFetchingDone, TokenName: ev.Token.Name, TokenSymbol: ev.Token.Symbol}

	events <- Event{Status: StatusAnalyzing}
	report := s.analyzer.Analyze(ctx, ev)
	events <- Event{Status: StatusAnalyzingDone}

	report = s.attest(ctx, report, events)

	s.store.Set(checksummed, report)
	s.archive(report)

	s.metrics.ScansCompleted.Inc()
	s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	events <- Event{Status: StatusComplete, Data: report}
}

// attest 执行链上认证。认证跑在与请求解耦的 context 上，
// 客户端断开不应废弃一笔已准备好的交易
func (s *Scanner) attest(ctx context.Context, report *internal.PinioscanReport, events chan<- Event) *internal.PinioscanReport {
	if s.submitter == nil {
		s.metrics.Attestations.WithLabelValues("skipped").Inc()
		events <- Event{Status: StatusAttestationSkipped, Reason: s.skipReason()}
		return report
	}

	events <- Event{Status: StatusAttesting}

	txHash, err := s.submitter.Attest(context.WithoutCancel(ctx), report)
	if err != nil {
		s.metrics.Attestations.WithLabelValues("error").Inc()
		logging.Log.WithError(err).WithField("token", report.Token.Address).Warn("⚠️ 链上认证失败")
		events <- Event{Status: StatusAttestationError, Error: err.Error()}
		return report
	}

	s.metrics.Attestations.WithLabelValues("ok").Inc()
	report.AttestationTx = txHash
	return report
}

// backfillAttestation 缓存命中但缓存报告还没有认证记录时补做认证
func (s *Scanner) backfillAttestation(ctx context.Context, address string, report *internal.PinioscanReport, events chan<- Event) *internal.PinioscanReport {
	if report.AttestationTx != "" || s.submitter == nil {
		return report
	}
	report = s.attest(ctx, report, events)
	if report.AttestationTx != "" {
		s.store.Set(address, report)
		s.archive(report)
	}
	return report
}

// archive 报告归档是尽力而为，失败不影响扫描结果
func (s *Scanner) archive(report *internal.PinioscanReport) {
	if s.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.archiver.SaveScan(ctx, report); err != nil {
		logging.Log.WithError(err).Warn("⚠️ 报告归档失败")
	}
}

func (s *Scanner) skipReason() string {
	if s.opts.SkipAttestReason != "" {
		return s.opts.SkipAttestReason
	}
	return ReasonNoContractAddress
}

// lockKey 获取某地址专属的互斥锁，返回释放函数。
// 地址空间由用户输入决定，锁表按引用计数回收，不能只增不减
func (s *Scanner) lockKey(address string) func() {
	s.mu.Lock()
	entry, ok := s.locks[address]
	if !ok {
		entry = &keyedLock{}
		s.locks[address] = entry
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		s.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(s.locks, address)
		}
		s.mu.Unlock()
	}
}
