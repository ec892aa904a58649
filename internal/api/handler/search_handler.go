package handler

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/processor"
)

// SearchHandler 语义搜索接口
type SearchHandler struct {
	searcher *processor.Searcher
}

// NewSearchHandler 创建搜索接口处理器
func NewSearchHandler(searcher *processor.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// askRequest 搜索请求体。k用指针区分"未携带"与显式的0
type askRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k"`
}

// Ask 自然语言检索简历 (POST /api/v1/ask)。未携带k时取缺省值5
func (h *SearchHandler) Ask(c context.Context, ctx *app.RequestContext) {
	var req askRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", "请求体不是合法的JSON"))
		return
	}

	k := constants.SearchKDefault
	if req.K != nil {
		k = *req.K
	}

	hits, err := h.searcher.Search(c, req.Question, k)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"query":   req.Question,
		"answers": hits,
	})
}

// Health 健康检查 (GET /health)，不经过认证与限流
func Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}
