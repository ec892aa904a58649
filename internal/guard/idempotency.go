package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/logger"
)

// 幂等保护的哨兵错误
var (
	// ErrInvalidIdempotencyKey 幂等键不是合法的UUID
	ErrInvalidIdempotencyKey = errors.New("idempotency key must be a valid UUID")

	// ErrIdempotencyConflict 同一幂等键携带了不同的请求体
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request body")

	// ErrIdempotencyInFlight 首个请求仍在执行，等待超时
	ErrIdempotencyInFlight = errors.New("request with this idempotency key is still in flight")
)

// ClaimState 幂等记录的认领结果
type ClaimState int

const (
	// ClaimStateClaimed 本次调用成为执行者
	ClaimStateClaimed ClaimState = iota
	// ClaimStatePending 同指纹的首个请求尚未完成
	ClaimStatePending
	// ClaimStateDone 已有完成的记录可供重放
	ClaimStateDone
	// ClaimStateConflict 已有记录的指纹与本次不同
	ClaimStateConflict
)

// ClaimResult 认领的返回值。State为Done时携带已存储的响应
type ClaimResult struct {
	State    ClaimState
	Status   int
	Response []byte
}

// EntryStore 幂等记录的存储契约。Claim必须是原子操作：
// 键不存在时写入{指纹, 未完成}并认领成功；存在时按指纹与完成位
// 返回Pending/Done/Conflict，不修改记录
type EntryStore interface {
	Claim(ctx context.Context, key, fingerprint string, ttl time.Duration) (ClaimResult, error)
	Complete(ctx context.Context, key string, status int, response []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Operation 被保护的业务操作，返回要记录并可能被重放的响应
type Operation func(ctx context.Context) (status int, response []byte, err error)

// Result 一次受保护执行的结果
type Result struct {
	Status   int
	Response []byte
	Replayed bool // true表示响应来自重放，业务操作未执行
}

// 等待执行中请求的轮询参数
const (
	inFlightPollInterval = 100 * time.Millisecond
	inFlightWaitTimeout  = 2 * time.Second
)

// Guard 幂等保护。键为空时完全旁路；键存在时保证同一(键, 端点)对
// 的业务操作至多成功执行一次，后续请求重放首次的响应
type Guard struct {
	store EntryStore
	ttl   time.Duration
}

// NewGuard 创建幂等保护
func NewGuard(store EntryStore) *Guard {
	return &Guard{store: store, ttl: constants.IdempotencyTTL}
}

// Execute 在幂等保护下执行op。
// 失败的op会释放认领，让后续同键请求重新执行；
// 只有成功完成的响应才会被记录并重放
func (g *Guard) Execute(ctx context.Context, key, endpoint string, body []byte, op Operation) (Result, error) {
	if key == "" {
		status, response, err := op(ctx)
		return Result{Status: status, Response: response}, err
	}

	// 键格式在任何存储访问之前校验
	if len(key) != 36 {
		return Result{}, ErrInvalidIdempotencyKey
	}
	if _, err := uuid.Parse(key); err != nil {
		return Result{}, ErrInvalidIdempotencyKey
	}

	sum := sha256.Sum256(body)
	fingerprint := hex.EncodeToString(sum[:])
	storeKey := constants.IdempotencyKeyPrefix + key + ":" + endpoint

	deadline := time.Now().Add(inFlightWaitTimeout)
	for {
		claim, err := g.store.Claim(ctx, storeKey, fingerprint, g.ttl)
		if err != nil {
			return Result{}, fmt.Errorf("认领幂等记录失败: %w", err)
		}

		switch claim.State {
		case ClaimStateClaimed:
			return g.runAsWinner(ctx, storeKey, op)

		case ClaimStateDone:
			logger.Ctx(ctx).Debug().Str("endpoint", endpoint).Msg("幂等键命中，重放已存储的响应")
			return Result{Status: claim.Status, Response: claim.Response, Replayed: true}, nil

		case ClaimStateConflict:
			return Result{}, ErrIdempotencyConflict

		case ClaimStatePending:
			// 首个请求执行中：短暂等待后重试认领。执行者失败释放后，
			// 这里会变成新的执行者
			if time.Now().After(deadline) {
				return Result{}, ErrIdempotencyInFlight
			}
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(inFlightPollInterval):
			}
		}
	}
}

func (g *Guard) runAsWinner(ctx context.Context, storeKey string, op Operation) (Result, error) {
	status, response, err := op(ctx)
	if err != nil {
		// 失败不记录，释放认领供后续请求重试
		if relErr := g.store.Release(ctx, storeKey); relErr != nil {
			logger.Ctx(ctx).Warn().Err(relErr).Msg("释放幂等认领失败")
		}
		return Result{}, err
	}

	if cmpErr := g.store.Complete(ctx, storeKey, status, response, g.ttl); cmpErr != nil {
		// 记录失败不影响本次响应，只丧失后续重放能力
		logger.Ctx(ctx).Warn().Err(cmpErr).Msg("写入幂等记录失败")
	}
	return Result{Status: status, Response: response}, nil
}
