package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/types"
)

// JobHandler 岗位相关接口
type JobHandler struct {
	ingestor *processor.Ingestor
	matcher  *processor.Matcher
	records  processor.RecordStore
	guard    *guard.Guard
}

// NewJobHandler 创建岗位接口处理器
func NewJobHandler(ingestor *processor.Ingestor, matcher *processor.Matcher, records processor.RecordStore, g *guard.Guard) *JobHandler {
	return &JobHandler{ingestor: ingestor, matcher: matcher, records: records, guard: g}
}

// Create 创建岗位 (POST /api/v1/jobs)，可携带Idempotency-Key
func (h *JobHandler) Create(c context.Context, ctx *app.RequestContext) {
	var fields types.JobFields
	if err := json.Unmarshal(ctx.Request.Body(), &fields); err != nil {
		ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", "请求体不是合法的JSON"))
		return
	}

	owner := ctx.GetString("actor_id")
	idemKey := string(ctx.GetHeader("Idempotency-Key"))

	result, err := h.guard.Execute(c, idemKey, "POST:/api/v1/jobs", ctx.Request.Body(),
		func(opCtx context.Context) (int, []byte, error) {
			record, err := h.ingestor.CreateJob(opCtx, owner, fields)
			if err != nil {
				return 0, nil, err
			}
			body, err := json.Marshal(utils.H{
				"id":         record.ID,
				"title":      record.Title,
				"created_at": record.CreatedAt.Format(time.RFC3339),
			})
			if err != nil {
				return 0, nil, err
			}
			return consts.StatusCreated, body, nil
		})
	if err != nil {
		RespondError(ctx, err)
		return
	}

	writeStoredResponse(ctx, result)
}

// Get 获取单个岗位 (GET /api/v1/jobs/:id)
func (h *JobHandler) Get(c context.Context, ctx *app.RequestContext) {
	record, err := h.records.GetJob(c, ctx.Param("id"))
	if err != nil {
		RespondError(ctx, err)
		return
	}

	var fields types.JobFields
	if err := json.Unmarshal(record.Fields, &fields); err != nil {
		RespondError(ctx, fmt.Errorf("岗位字段反序列化失败: %w", err))
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"id":         record.ID,
		"job":        fields,
		"owner":      record.Owner,
		"created_at": record.CreatedAt.Format(time.RFC3339),
	})
}

// List 分页列出岗位 (GET /api/v1/jobs)
func (h *JobHandler) List(c context.Context, ctx *app.RequestContext) {
	limit, offset := parsePagination(ctx)
	owner := ctx.Query("owner")

	records, total, err := h.records.ListJobs(c, owner, limit, offset)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	items := make([]utils.H, 0, len(records))
	for i := range records {
		record := &records[i]
		items = append(items, utils.H{
			"id":         record.ID,
			"title":      record.Title,
			"owner":      record.Owner,
			"created_at": record.CreatedAt.Format(time.RFC3339),
		})
	}

	resp := utils.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	}
	if int64(offset+len(items)) < total {
		resp["next_offset"] = offset + len(items)
	}
	ctx.JSON(consts.StatusOK, resp)
}

// matchRequest 匹配请求体。top_n用指针区分"未携带"与显式的0
type matchRequest struct {
	TopN *int `json:"top_n"`
}

// Match 计算岗位的候选匹配 (POST /api/v1/jobs/:id/match)。
// 结果按请求即时计算，从不持久化；未携带top_n时取缺省值10
func (h *JobHandler) Match(c context.Context, ctx *app.RequestContext) {
	var req matchRequest
	if len(ctx.Request.Body()) > 0 {
		if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
			ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", "请求体不是合法的JSON"))
			return
		}
	}

	topN := constants.MatchNDefault
	if req.TopN != nil {
		topN = *req.TopN
	}

	jobID := ctx.Param("id")
	matches, err := h.matcher.Match(c, jobID, topN)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"job_id":    jobID,
		"matches":   matches,
		"ranked_by": "deterministic_score",
	})
}
