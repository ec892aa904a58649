package router

import (
	"context"
	"errors"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-rag-go/internal/api/handler"
	"resume-rag-go/internal/config"
	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/logger"
)

// Handlers 路由依赖的全部接口处理器
type Handlers struct {
	Resume *handler.ResumeHandler
	Job    *handler.JobHandler
	Search *handler.SearchHandler
}

// RegisterRoutes 注册 API 路由。
// /health不经过认证与限流，业务路由统一走 API Key 认证 + 固定窗口限流
func RegisterRoutes(h *server.Hertz, cfg *config.Config, limiter *guard.RateLimiter, handlers Handlers) {
	h.GET("/health", handler.Health)
	h.GET("/api/v1/health", handler.Health)

	api := h.Group("/api/v1")
	api.Use(authMiddleware(cfg))
	api.Use(rateLimitMiddleware(limiter))

	api.POST("/resumes", handlers.Resume.Upload)
	api.GET("/resumes", handlers.Resume.List)
	api.GET("/resumes/:id", handlers.Resume.Get)
	api.DELETE("/resumes/:id", handlers.Resume.Delete)
	api.GET("/resumes/:id/original", handlers.Resume.Download)

	api.POST("/jobs", handlers.Job.Create)
	api.GET("/jobs", handlers.Job.List)
	api.GET("/jobs/:id", handlers.Job.Get)
	api.POST("/jobs/:id/match", handlers.Job.Match)

	api.POST("/ask", handlers.Search.Ask)
}

// authMiddleware API Key认证。通过后在上下文中记录actor身份，
// 供限流与PII脱敏使用
func authMiddleware(cfg *config.Config) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			actor, ok := cfg.Auth.APIKeys[key]
			if !ok {
				return false, nil
			}
			ctx.Set("actor_id", actor.ID)
			ctx.Set("actor_role", actor.Role)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, map[string]interface{}{
				"error": map[string]interface{}{
					"code":    "unauthenticated",
					"message": "API Key缺失或无效",
				},
			})
		}),
	)
}

// rateLimitMiddleware 每个actor的固定窗口限流。
// 放行与拒绝都会写X-RateLimit-Remaining / X-RateLimit-Reset响应头
func rateLimitMiddleware(limiter *guard.RateLimiter) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		actorID := ctx.GetString("actor_id")

		decision, err := limiter.Allow(c, actorID)

		// 拒绝时Decision里的元数据仍然有效，照常写响应头
		var rateLimitErr *guard.RateLimitExceededError
		if err == nil || errors.As(err, &rateLimitErr) {
			ctx.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			ctx.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset, 10))
		}

		if err != nil {
			if rateLimitErr == nil {
				logger.Ctx(c).Error().Err(err).Str("actor_id", actorID).Msg("限流检查失败")
			}
			handler.RespondError(ctx, err)
			ctx.Abort()
			return
		}

		ctx.Next(c)
	}
}
