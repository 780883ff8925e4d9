package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pinio-labs/pinioscan/src/internal"
)

const testAddr = "0x1234567890abcdef1234567890abcdef12345678"

type fakeCollector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCollector) FetchAll(_ context.Context, address string) (*internal.Evidence, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &internal.Evidence{
		Token: internal.TokenInfo{Address: address, Name: "Test Token", Symbol: "TEST"},
	}, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(_ context.Context, ev *internal.Evidence) *internal.PinioscanReport {
	return &internal.PinioscanReport{
		Token:        ev.Token,
		OverallScore: 55,
		RiskLevel:    internal.RiskCaution,
		Timestamp:    internal.NowMillis(),
	}
}

type fakeSubmitter struct {
	tx    string
	err   error
	calls int
}

func (f *fakeSubmitter) Attest(_ context.Context, _ *internal.PinioscanReport) (string, error) {
	f.calls++
	return f.tx, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*internal.PinioscanReport
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*internal.PinioscanReport)}
}

func (f *fakeStore) Get(address string) (*internal.PinioscanReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.entries[address]
	return r, ok
}

func (f *fakeStore) Set(address string, report *internal.PinioscanReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[address] = report
}

type fakeArchiver struct {
	saved []*internal.PinioscanReport
}

func (f *fakeArchiver) SaveScan(_ context.Context, report *internal.PinioscanReport) error {
	f.saved = append(f.saved, report)
	return nil
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func statuses(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Status
	}
	return out
}

func assertStatuses(t *testing.T, got []Event, want []string) {
	t.Helper()
	gotStatuses := statuses(got)
	if len(gotStatuses) != len(want) {
		t.Fatalf("事件序列 = %v, want %v", gotStatuses, want)
	}
	for i := range want {
		if gotStatuses[i] != want[i] {
			t.Fatalf("事件序列 = %v, want %v", gotStatuses, want)
		}
	}
}

func TestScanFullPipelineWithAttestation(t *testing.T) {
	submitter := &fakeSubmitter{tx: "0xdeadbeef"}
	archiver := &fakeArchiver{}
	s := NewScanner(&fakeCollector{}, fakeAnalyzer{}, submitter, newFakeStore(), archiver, nil, Options{})

	events := collect(s.Scan(context.Background(), testAddr))

	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusAttesting, StatusComplete,
	})

	done := events[1]
	if done.TokenName != "Test Token" || done.TokenSymbol != "TEST" {
		t.Errorf("fetching_done 应携带代币名称: %+v", done)
	}

	final := events[len(events)-1]
	if final.Data == nil {
		t.Fatal("complete 事件应携带报告")
	}
	if final.Data.AttestationTx != "0xdeadbeef" {
		t.Errorf("报告应携带认证交易哈希: %q", final.Data.AttestationTx)
	}
	if len(archiver.saved) != 1 {
		t.Errorf("报告应被归档一次, got %d", len(archiver.saved))
	}
}

func TestScanInvalidAddress(t *testing.T) {
	collector := &fakeCollector{}
	s := NewScanner(collector, fakeAnalyzer{}, nil, newFakeStore(), nil, nil, Options{})

	events := collect(s.Scan(context.Background(), "not-an-address"))

	assertStatuses(t, events, []string{StatusError})
	if collector.calls != 0 {
		t.Error("非法地址不应触发采集")
	}
}

func TestScanFetchFailure(t *testing.T) {
	collector := &fakeCollector{err: errors.New("token is not a contract")}
	s := NewScanner(collector, fakeAnalyzer{}, nil, newFakeStore(), nil, nil, Options{})

	events := collect(s.Scan(context.Background(), testAddr))

	assertStatuses(t, events, []string{StatusFetching, StatusError})
	if events[1].Error == "" {
		t.Error("error 事件应携带原因")
	}
}

func TestScanAttestationSkipped(t *testing.T) {
	s := NewScanner(&fakeCollector{}, fakeAnalyzer{}, nil, newFakeStore(), nil, nil,
		Options{SkipAttestReason: ReasonNoDeployerKey})

	events := collect(s.Scan(context.Background(), testAddr))

	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusAttestationSkipped, StatusComplete,
	})
	if events[4].Reason != ReasonNoDeployerKey {
		t.Errorf("跳过原因 = %q, want %q", events[4].Reason, ReasonNoDeployerKey)
	}
	final := events[len(events)-1]
	if final.Data == nil || final.Data.AttestationTx != "" {
		t.Error("跳过认证时报告不应有交易哈希")
	}
}

func TestScanAttestationErrorStillCompletes(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("insufficient funds")}
	s := NewScanner(&fakeCollector{}, fakeAnalyzer{}, submitter, newFakeStore(), nil, nil, Options{})

	events := collect(s.Scan(context.Background(), testAddr))

	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusAttesting, StatusAttestationError, StatusComplete,
	})
	final := events[len(events)-1]
	if final.Data == nil || final.Data.AttestationTx != "" {
		t.Error("认证失败时报告不应有交易哈希")
	}
}

func TestScanCacheHit(t *testing.T) {
	collector := &fakeCollector{}
	store := newFakeStore()
	s := NewScanner(collector, fakeAnalyzer{}, nil, store, nil, nil, Options{})

	// 第一次扫描填充缓存
	collect(s.Scan(context.Background(), testAddr))
	if collector.calls != 1 {
		t.Fatalf("首次扫描应采集一次, got %d", collector.calls)
	}

	// 第二次吃缓存，但阶段事件照常回放
	events := collect(s.Scan(context.Background(), testAddr))
	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusComplete,
	})
	done := events[1]
	if done.TokenName != "Test Token" || done.TokenSymbol != "TEST" {
		t.Errorf("回放的 fetching_done 应携带缓存报告里的代币名称: %+v", done)
	}
	final := events[len(events)-1]
	if !final.CacheHit {
		t.Error("缓存命中应标记 cacheHit")
	}
	if collector.calls != 1 {
		t.Errorf("缓存命中不应再次采集, calls = %d", collector.calls)
	}
}

func TestScanCacheHitBackfillsAttestation(t *testing.T) {
	store := newFakeStore()
	// 先用无认证配置完成一次扫描
	s1 := NewScanner(&fakeCollector{}, fakeAnalyzer{}, nil, store, nil, nil,
		Options{SkipAttestReason: ReasonNoContractAddress})
	collect(s1.Scan(context.Background(), testAddr))

	// 认证器就位后的缓存命中应补做认证
	submitter := &fakeSubmitter{tx: "0xbackfill"}
	s2 := NewScanner(&fakeCollector{}, fakeAnalyzer{}, submitter, store, nil, nil, Options{})
	events := collect(s2.Scan(context.Background(), testAddr))

	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusAttesting, StatusComplete,
	})
	final := events[len(events)-1]
	if final.Data.AttestationTx != "0xbackfill" {
		t.Errorf("缓存命中应补做认证: %q", final.Data.AttestationTx)
	}

	// 补做结果写回缓存，下一次命中不再认证
	events = collect(s2.Scan(context.Background(), testAddr))
	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusComplete,
	})
	if submitter.calls != 1 {
		t.Errorf("认证应只补做一次, calls = %d", submitter.calls)
	}
}

func TestScanSerializeByKey(t *testing.T) {
	collector := &fakeCollector{}
	s := NewScanner(collector, fakeAnalyzer{}, nil, newFakeStore(), nil, nil,
		Options{SerializeByKey: true})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collect(s.Scan(context.Background(), testAddr))
		}()
	}
	wg.Wait()

	// 串行化后除了第一个，其余都应吃缓存
	if collector.calls != 1 {
		t.Errorf("同地址并发扫描应只采集一次, calls = %d", collector.calls)
	}
}

func TestScanChecksumNormalization(t *testing.T) {
	collector := &fakeCollector{}
	s := NewScanner(collector, fakeAnalyzer{}, nil, newFakeStore(), nil, nil, Options{})

	collect(s.Scan(context.Background(), testAddr))
	// 同一地址的大写变体应命中同一份缓存
	events := collect(s.Scan(context.Background(), "0x1234567890ABCDEF1234567890ABCDEF12345678"))

	assertStatuses(t, events, []string{
		StatusFetching, StatusFetchingDone, StatusAnalyzing, StatusAnalyzingDone,
		StatusComplete,
	})
	if collector.calls != 1 {
		t.Errorf("地址大小写不应绕过缓存, calls = %d", collector.calls)
	}
}

func TestScanLockTableShrinks(t *testing.T) {
	s := NewScanner(&fakeCollector{}, fakeAnalyzer{}, nil, newFakeStore(), nil, nil,
		Options{SerializeByKey: true})

	addrs := []string{
		testAddr,
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	for _, addr := range addrs {
		collect(s.Scan(context.Background(), addr))
	}

	s.mu.Lock()
	remaining := len(s.locks)
	s.mu.Unlock()
	if remaining != 0 {
		t.Errorf("扫描结束后锁表应清空, 剩余 %d 条", remaining)
	}
}
