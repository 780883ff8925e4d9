package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/pinio-labs/pinioscan/src/internal"
)

// DefaultTTL 报告缓存默认过期时间
const DefaultTTL = 6 * time.Hour

const (
	maxEntries = 200
	evictBatch = 50
)

// Store 报告缓存。key 为小写代币地址
type Store interface {
	Get(address string) (*internal.PinioscanReport, bool)
	Set(address string, report *internal.PinioscanReport)
	Delete(address string)
}

type entry struct {
	report    *internal.PinioscanReport
	expiresAt time.Time
}

// MemoryStore 进程内 TTL 缓存。过期条目在 Get 时惰性清理，
// 超过容量上限时按最早过期批量淘汰
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore 创建缓存，ttl <= 0 时使用默认 6 小时
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get 命中且未过期时返回缓存的报告
func (s *MemoryStore) Get(address string) (*internal.PinioscanReport, bool) {
	key := normalizeKey(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.report, true
}

// Set 写入报告并在容量超限时触发淘汰
func (s *MemoryStore) Set(address string, report *internal.PinioscanReport) {
	key := normalizeKey(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	// 先腾位再写入，覆盖已有 key 不算新增
	if _, exists := s.entries[key]; !exists && len(s.entries) >= maxEntries {
		s.evictLocked()
	}
	s.entries[key] = entry{report: report, expiresAt: s.now().Add(s.ttl)}
}

// Delete 移除指定地址的缓存
func (s *MemoryStore) Delete(address string) {
	key := normalizeKey(address)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked 淘汰最早过期的一批条目。持锁调用
func (s *MemoryStore) evictLocked() {
	for i := 0; i < evictBatch; i++ {
		var oldestKey string
		var oldest time.Time
		for k, e := range s.entries {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey = k
				oldest = e.expiresAt
			}
		}
		if oldestKey == "" {
			return
		}
		delete(s.entries, oldestKey)
	}
}

func normalizeKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
