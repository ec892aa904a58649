package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
)

func decodeErrorCode(t *testing.T, ctx *app.RequestContext) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body.Error.Code
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"无文件", processor.ErrNoFiles, 400, "invalid_request"},
		{"损坏压缩包", fmt.Errorf("%w: b.zip", parser.ErrCorruptArchive), 400, "invalid_request"},
		{"非法幂等键", guard.ErrInvalidIdempotencyKey, 400, "invalid_idempotency_key"},
		{"幂等冲突", guard.ErrIdempotencyConflict, 409, "idempotency_conflict"},
		{"幂等执行中", guard.ErrIdempotencyInFlight, 409, "idempotency_in_flight"},
		{"未认证", guard.ErrUnauthenticated, 401, "unauthenticated"},
		{"限流", &guard.RateLimitExceededError{Reset: 1700000000}, 429, "rate_limit_exceeded"},
		{"记录不存在", fmt.Errorf("%w: resume x", storage.ErrRecordNotFound), 404, "not_found"},
		{"embedding未配置", parser.ErrEmbeddingUnavailable, 503, "embedding_unavailable"},
		{"embedding服务错误", &parser.ProviderError{StatusCode: 500, Message: "boom"}, 502, "embedding_provider_error"},
		{"未知错误", errors.New("surprise"), 500, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := app.NewContext(0)
			RespondError(ctx, tc.err)

			assert.Equal(t, tc.wantStatus, ctx.Response.StatusCode())
			assert.Equal(t, tc.wantCode, decodeErrorCode(t, ctx))
		})
	}
}

func TestRespondErrorWrappedChain(t *testing.T) {
	// 经过多层包装的错误仍能映射到正确的状态码
	err := fmt.Errorf("查询向量化失败: %w", fmt.Errorf("inner: %w", parser.ErrEmbeddingUnavailable))

	ctx := app.NewContext(0)
	RespondError(ctx, err)
	assert.Equal(t, 503, ctx.Response.StatusCode())
}
