package guard

import (
	"context"
	"sync"
	"time"
)

// 进程内存储实现。单实例部署与测试使用；过期采用惰性清理，
// 访问到过期条目时当作不存在并删除

type memoryEntry struct {
	fingerprint string
	done        bool
	status      int
	response    []byte
	expiresAt   time.Time
}

// MemoryEntryStore 进程内幂等记录存储
type MemoryEntryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryEntryStore 创建进程内幂等记录存储
func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryEntryStoreWithClock 使用指定时钟创建，供测试推进过期
func NewMemoryEntryStoreWithClock(now func() time.Time) *MemoryEntryStore {
	s := NewMemoryEntryStore()
	s.now = now
	return s
}

// Claim 原子认领一条幂等记录
func (s *MemoryEntryStore) Claim(_ context.Context, key, fingerprint string, ttl time.Duration) (ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if exists && s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		exists = false
	}

	if !exists {
		s.entries[key] = &memoryEntry{
			fingerprint: fingerprint,
			expiresAt:   s.now().Add(ttl),
		}
		return ClaimResult{State: ClaimStateClaimed}, nil
	}

	if entry.fingerprint != fingerprint {
		return ClaimResult{State: ClaimStateConflict}, nil
	}
	if entry.done {
		return ClaimResult{State: ClaimStateDone, Status: entry.status, Response: entry.response}, nil
	}
	return ClaimResult{State: ClaimStatePending}, nil
}

// Complete 写入完成标记与响应，刷新过期时间
func (s *MemoryEntryStore) Complete(_ context.Context, key string, status int, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return nil // 认领已过期，放弃记录
	}
	entry.done = true
	entry.status = status
	entry.response = response
	entry.expiresAt = s.now().Add(ttl)
	return nil
}

// Release 删除认领
func (s *MemoryEntryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore 进程内限流计数器
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewMemoryCounterStore 创建进程内限流计数器
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// NewMemoryCounterStoreWithClock 使用指定时钟创建，供测试推进过期
func NewMemoryCounterStoreWithClock(now func() time.Time) *MemoryCounterStore {
	s := NewMemoryCounterStore()
	s.now = now
	return s
}

// Incr 原子的有上界自增
func (s *MemoryCounterStore) Incr(_ context.Context, key string, quota int, ttl time.Duration) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, exists := s.counters[key]
	if exists && s.now().After(counter.expiresAt) {
		delete(s.counters, key)
		exists = false
	}

	if !exists {
		counter = &memoryCounter{expiresAt: s.now().Add(ttl)}
		s.counters[key] = counter
	}

	if counter.count >= int64(quota) {
		return counter.count, false, nil
	}
	counter.count++

	// 顺带清理其他过期计数器，避免无界增长
	if len(s.counters) > 1024 {
		now := s.now()
		for k, c := range s.counters {
			if now.After(c.expiresAt) {
				delete(s.counters, k)
			}
		}
	}

	return counter.count, true, nil
}
