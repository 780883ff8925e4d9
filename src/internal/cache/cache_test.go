package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/pinio-labs/pinioscan/src/internal"
)

func reportFor(address string) *internal.PinioscanReport {
	return &internal.PinioscanReport{
		Token:        internal.TokenInfo{Address: address},
		OverallScore: 50,
		RiskLevel:    internal.RiskCaution,
	}
}

func TestCacheHitAndCaseInsensitiveKey(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	addr := "0xAbCdEf1234567890abcdef1234567890ABCDEF12"

	s.Set(addr, reportFor(addr))

	got, ok := s.Get("0xabcdef1234567890abcdef1234567890abcdef12")
	if !ok {
		t.Fatal("大小写不同的同一地址应当命中")
	}
	if got.Token.Address != addr {
		t.Errorf("返回了错误的报告: %s", got.Token.Address)
	}
}

func TestCacheMiss(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	if _, ok := s.Get("0x0000000000000000000000000000000000000001"); ok {
		t.Error("空缓存不应命中")
	}
}

func TestCacheExpiry(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	now := time.Unix(1756500000, 0)
	s.now = func() time.Time { return now }

	s.Set("0xaaa", reportFor("0xaaa"))

	// TTL 内命中
	now = now.Add(59 * time.Minute)
	if _, ok := s.Get("0xaaa"); !ok {
		t.Fatal("TTL 内应当命中")
	}

	// 过期后惰性清理
	now = now.Add(2 * time.Minute)
	if _, ok := s.Get("0xaaa"); ok {
		t.Fatal("过期后不应命中")
	}
	if s.Len() != 0 {
		t.Error("过期条目应当被清理")
	}
}

func TestCacheDelete(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	s.Set("0xaaa", reportFor("0xaaa"))
	s.Delete("0xAAA")
	if _, ok := s.Get("0xaaa"); ok {
		t.Error("删除后不应命中")
	}
}

func TestCacheEviction(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	base := time.Unix(1756500000, 0)
	now := base
	s.now = func() time.Time { return now }

	for i := 0; i < maxEntries+1; i++ {
		// 每条写入时间递增，保证过期顺序可预测
		now = base.Add(time.Duration(i) * time.Second)
		s.Set(fmt.Sprintf("0x%040x", i), reportFor("x"))
	}

	if got := s.Len(); got != maxEntries+1-evictBatch {
		t.Errorf("淘汰后条目数 = %d, want %d", got, maxEntries+1-evictBatch)
	}
	// 最早写入的应当被淘汰，最新写入的保留
	if _, ok := s.Get(fmt.Sprintf("0x%040x", 0)); ok {
		t.Error("最早的条目应当被淘汰")
	}
	if _, ok := s.Get(fmt.Sprintf("0x%040x", maxEntries)); !ok {
		t.Error("最新的条目应当保留")
	}
}

func TestCacheOverwriteAtCapacityNoEviction(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	for i := 0; i < maxEntries; i++ {
		s.Set(fmt.Sprintf("0x%040x", i), reportFor("x"))
	}
	if got := s.Len(); got != maxEntries {
		t.Fatalf("填满后条目数 = %d, want %d", got, maxEntries)
	}

	// 覆盖已有 key 不算新增，不应触发腾位
	s.Set(fmt.Sprintf("0x%040x", 0), reportFor("y"))
	if got := s.Len(); got != maxEntries {
		t.Errorf("覆盖写入后条目数 = %d, want %d", got, maxEntries)
	}
	if r, ok := s.Get(fmt.Sprintf("0x%040x", 0)); !ok || r.Token.Address != "y" {
		t.Error("覆盖写入应更新原条目")
	}
}
