package guard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript 幂等记录的原子认领。
// 键不存在 -> 写入{fp, done=0}并设置TTL，返回0（认领成功）；
// 指纹不同 -> 返回3（冲突）；
// 已完成   -> 返回2与存储的(status, resp)；
// 执行中   -> 返回1
var claimScript = redis.NewScript(`
local fp = redis.call('HGET', KEYS[1], 'fp')
if not fp then
  redis.call('HSET', KEYS[1], 'fp', ARGV[1], 'done', '0')
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return {0}
end
if fp ~= ARGV[1] then
  return {3}
end
if redis.call('HGET', KEYS[1], 'done') == '1' then
  return {2, redis.call('HGET', KEYS[1], 'status'), redis.call('HGET', KEYS[1], 'resp')}
end
return {1}
`)

// RedisEntryStore 基于Redis的幂等记录存储，多实例部署共享
type RedisEntryStore struct {
	client *redis.Client
}

// NewRedisEntryStore 创建Redis幂等记录存储
func NewRedisEntryStore(client *redis.Client) *RedisEntryStore {
	return &RedisEntryStore{client: client}
}

// Claim 原子认领一条幂等记录
func (s *RedisEntryStore) Claim(ctx context.Context, key, fingerprint string, ttl time.Duration) (ClaimResult, error) {
	raw, err := claimScript.Run(ctx, s.client, []string{key}, fingerprint, ttl.Milliseconds()).Result()
	if err != nil {
		return ClaimResult{}, fmt.Errorf("执行认领脚本失败: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return ClaimResult{}, fmt.Errorf("认领脚本返回了意外的结果: %v", raw)
	}

	state, ok := values[0].(int64)
	if !ok {
		return ClaimResult{}, fmt.Errorf("认领脚本状态位类型错误: %T", values[0])
	}

	switch state {
	case 0:
		return ClaimResult{State: ClaimStateClaimed}, nil
	case 1:
		return ClaimResult{State: ClaimStatePending}, nil
	case 3:
		return ClaimResult{State: ClaimStateConflict}, nil
	case 2:
		if len(values) != 3 {
			return ClaimResult{}, fmt.Errorf("已完成记录缺少响应字段")
		}
		statusStr, _ := values[1].(string)
		respStr, _ := values[2].(string)
		status, err := strconv.Atoi(statusStr)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("已完成记录状态码无效: %q", statusStr)
		}
		return ClaimResult{State: ClaimStateDone, Status: status, Response: []byte(respStr)}, nil
	default:
		return ClaimResult{}, fmt.Errorf("认领脚本返回了未知状态: %d", state)
	}
}

// Complete 写入完成标记与响应，刷新TTL
func (s *RedisEntryStore) Complete(ctx context.Context, key string, status int, response []byte, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "done", "1", "status", strconv.Itoa(status), "resp", string(response))
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入幂等完成记录失败: %w", err)
	}
	return nil
}

// Release 删除认领，供失败的执行者回退
func (s *RedisEntryStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("删除幂等记录失败: %w", err)
	}
	return nil
}

// incrScript 有上界的窗口计数自增。
// 已达quota -> 不自增，返回{count, 0}；
// 否则自增，首次自增时设置TTL，返回{count, 1}
var incrScript = redis.NewScript(`
local c = tonumber(redis.call('GET', KEYS[1]) or '0')
if c >= tonumber(ARGV[1]) then
  return {c, 0}
end
c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {c, 1}
`)

// RedisCounterStore 基于Redis的限流计数器，多实例部署共享
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore 创建Redis限流计数器
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// Incr 原子的有上界自增
func (s *RedisCounterStore) Incr(ctx context.Context, key string, quota int, ttl time.Duration) (int64, bool, error) {
	raw, err := incrScript.Run(ctx, s.client, []string{key}, quota, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, false, fmt.Errorf("执行计数脚本失败: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, false, fmt.Errorf("计数脚本返回了意外的结果: %v", raw)
	}

	count, _ := values[0].(int64)
	allowedFlag, _ := values[1].(int64)
	return count, allowedFlag == 1, nil
}
