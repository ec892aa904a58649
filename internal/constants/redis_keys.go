package constants

// Redis键布局。幂等记录与限流计数器是系统中仅有的两类进程外共享可变状态，
// 它们的过期完全交给Redis的TTL机制（限流计数器允许惰性过期）。
const (
	// IdempotencyKeyPrefix + "<token>:<endpoint>" -> HASH{fp, done, status, resp}
	IdempotencyKeyPrefix = "idem:"

	// RateLimitKeyPrefix + "<actor>:<bucket>" -> 计数器
	RateLimitKeyPrefix = "ratelimit:"
)
