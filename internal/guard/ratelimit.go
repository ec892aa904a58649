package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"resume-rag-go/internal/constants"
)

// ErrUnauthenticated 无法解析调用方身份，匿名流量不参与限流
var ErrUnauthenticated = errors.New("rate limiting requires an authenticated actor")

// RateLimitExceededError 配额耗尽，Reset为下一窗口起点的Unix时间戳
type RateLimitExceededError struct {
	Reset int64
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %d", e.Reset)
}

// Decision 一次限流判定
type Decision struct {
	Allowed   bool
	Remaining int   // 本窗口剩余配额
	Reset     int64 // 窗口重置的Unix时间戳
}

// CounterStore 窗口计数器的存储契约。Incr必须是有上界的原子自增：
// 计数已达quota时不再增加并返回allowed=false
type CounterStore interface {
	Incr(ctx context.Context, key string, quota int, ttl time.Duration) (count int64, allowed bool, err error)
}

// RateLimiter 按actor的固定窗口限流。
// 窗口编号 = floor(now / 窗口长度)，跨实例以同一存储为准
type RateLimiter struct {
	store  CounterStore
	window time.Duration
	quota  int
	now    func() time.Time // 可注入时钟，测试用
}

// NewRateLimiter 以策略常量创建限流器
func NewRateLimiter(store CounterStore) *RateLimiter {
	return &RateLimiter{
		store:  store,
		window: constants.RateLimitWindow,
		quota:  constants.RateLimitQuota,
		now:    time.Now,
	}
}

// NewRateLimiterWithClock 使用指定时钟创建限流器，供测试推进窗口
func NewRateLimiterWithClock(store CounterStore, now func() time.Time) *RateLimiter {
	rl := NewRateLimiter(store)
	rl.now = now
	return rl
}

// Allow 判定actor的当前请求是否放行。
// 拒绝时返回RateLimitExceededError，Decision中的元数据
// 在放行与拒绝两种情况下都有效
func (rl *RateLimiter) Allow(ctx context.Context, actorID string) (Decision, error) {
	if actorID == "" {
		return Decision{}, ErrUnauthenticated
	}

	windowSec := int64(rl.window / time.Second)
	bucket := rl.now().Unix() / windowSec
	reset := (bucket + 1) * windowSec

	key := constants.RateLimitKeyPrefix + actorID + ":" + strconv.FormatInt(bucket, 10)

	// TTL取两个窗口长度：当前窗口耗尽后计数器自然过期
	count, allowed, err := rl.store.Incr(ctx, key, rl.quota, 2*rl.window)
	if err != nil {
		return Decision{}, fmt.Errorf("限流计数失败: %w", err)
	}

	if !allowed {
		return Decision{Allowed: false, Remaining: 0, Reset: reset}, &RateLimitExceededError{Reset: reset}
	}

	remaining := rl.quota - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining, Reset: reset}, nil
}
