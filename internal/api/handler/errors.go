package handler

import (
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
)

// errorBody 统一的错误响应格式
func errorBody(code, message string) utils.H {
	return utils.H{
		"error": utils.H{
			"code":    code,
			"message": message,
		},
	}
}

// RespondError 把内部错误映射为HTTP响应。
// 客户端错误原样透出消息，服务端错误只透出类别
func RespondError(ctx *app.RequestContext, err error) {
	var (
		providerErr  *parser.ProviderError
		rateLimitErr *guard.RateLimitExceededError
	)

	switch {
	case errors.Is(err, processor.ErrNoFiles),
		errors.Is(err, processor.ErrTooManyFiles),
		errors.Is(err, processor.ErrJobMissingTitle),
		errors.Is(err, processor.ErrEmptyQuery),
		errors.Is(err, parser.ErrCorruptArchive):
		ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", err.Error()))

	case errors.Is(err, guard.ErrInvalidIdempotencyKey):
		ctx.JSON(consts.StatusBadRequest, errorBody("invalid_idempotency_key", err.Error()))

	case errors.Is(err, guard.ErrIdempotencyConflict):
		ctx.JSON(consts.StatusConflict, errorBody("idempotency_conflict", err.Error()))

	case errors.Is(err, guard.ErrIdempotencyInFlight):
		ctx.JSON(consts.StatusConflict, errorBody("idempotency_in_flight", err.Error()))

	case errors.Is(err, guard.ErrUnauthenticated):
		ctx.JSON(consts.StatusUnauthorized, errorBody("unauthenticated", err.Error()))

	case errors.As(err, &rateLimitErr):
		ctx.JSON(consts.StatusTooManyRequests, errorBody("rate_limit_exceeded", err.Error()))

	case errors.Is(err, storage.ErrRecordNotFound):
		ctx.JSON(consts.StatusNotFound, errorBody("not_found", err.Error()))

	case errors.Is(err, parser.ErrEmbeddingUnavailable):
		ctx.JSON(consts.StatusServiceUnavailable, errorBody("embedding_unavailable", "语义功能未启用：embedding服务未配置"))

	case errors.As(err, &providerErr):
		ctx.JSON(consts.StatusBadGateway, errorBody("embedding_provider_error", "embedding服务调用失败"))

	default:
		logger.Error().Err(err).Msg("请求处理出现内部错误")
		ctx.JSON(consts.StatusInternalServerError, errorBody("internal", "internal server error"))
	}
}
