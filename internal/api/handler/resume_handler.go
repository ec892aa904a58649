package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"
)

// 能看到完整PII的角色
func roleSeesFullPII(role string) bool {
	return role == "recruiter" || role == "admin"
}

// ResumeHandler 简历相关接口
type ResumeHandler struct {
	ingestor *processor.Ingestor
	records  processor.RecordStore
	guard    *guard.Guard
}

// NewResumeHandler 创建简历接口处理器
func NewResumeHandler(ingestor *processor.Ingestor, records processor.RecordStore, g *guard.Guard) *ResumeHandler {
	return &ResumeHandler{ingestor: ingestor, records: records, guard: g}
}

// Upload 批量上传简历 (POST /api/v1/resumes)。
// multipart表单的files字段，可携带Idempotency-Key做重放保护
func (h *ResumeHandler) Upload(c context.Context, ctx *app.RequestContext) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", "请求必须是multipart表单"))
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		RespondError(ctx, processor.ErrNoFiles)
		return
	}

	var uploads []parser.FileItem
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", fmt.Sprintf("打开上传文件 %s 失败", fh.Filename)))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, errorBody("invalid_request", fmt.Sprintf("读取上传文件 %s 失败", fh.Filename)))
			return
		}
		uploads = append(uploads, parser.FileItem{Filename: fh.Filename, Data: data})
	}

	owner := ctx.GetString("actor_id")
	idemKey := string(ctx.GetHeader("Idempotency-Key"))

	result, err := h.guard.Execute(c, idemKey, "POST:/api/v1/resumes", uploadFingerprint(uploads),
		func(opCtx context.Context) (int, []byte, error) {
			outcomes, err := h.ingestor.IngestResumes(opCtx, owner, uploads)
			if err != nil {
				return 0, nil, err
			}
			body, err := json.Marshal(utils.H{"results": outcomes})
			if err != nil {
				return 0, nil, err
			}
			return consts.StatusOK, body, nil
		})
	if err != nil {
		RespondError(ctx, err)
		return
	}

	writeStoredResponse(ctx, result)
}

// Get 获取单份简历 (GET /api/v1/resumes/:id)
func (h *ResumeHandler) Get(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")

	record, err := h.records.GetResume(c, id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	var profile types.Profile
	if err := json.Unmarshal(record.Profile, &profile); err != nil {
		RespondError(ctx, fmt.Errorf("画像反序列化失败: %w", err))
		return
	}
	redactProfile(&profile, ctx.GetString("actor_role"))

	ctx.JSON(consts.StatusOK, utils.H{
		"id":                record.ID,
		"filename":          record.Filename,
		"profile":           profile,
		"owner":             record.Owner,
		"processing_status": record.ProcessingStatus,
		"created_at":        record.CreatedAt.Format(time.RFC3339),
	})
}

// Download 下载原始文件 (GET /api/v1/resumes/:id/original)
func (h *ResumeHandler) Download(c context.Context, ctx *app.RequestContext) {
	filename, data, err := h.ingestor.OriginalDocument(c, ctx.Param("id"))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(consts.StatusOK, "application/octet-stream", data)
}

// Delete 删除简历及其派生数据 (DELETE /api/v1/resumes/:id)
func (h *ResumeHandler) Delete(c context.Context, ctx *app.RequestContext) {
	if err := h.ingestor.DeleteResume(c, ctx.Param("id")); err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"deleted": true})
}

// List 分页列出简历 (GET /api/v1/resumes)
func (h *ResumeHandler) List(c context.Context, ctx *app.RequestContext) {
	limit, offset := parsePagination(ctx)
	owner := ctx.Query("owner")
	keyword := ctx.Query("q")

	records, total, err := h.records.ListResumes(c, owner, keyword, limit, offset)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	role := ctx.GetString("actor_role")
	items := make([]utils.H, 0, len(records))
	for i := range records {
		record := &records[i]
		var profile types.Profile
		if err := json.Unmarshal(record.Profile, &profile); err != nil {
			continue
		}
		redactProfile(&profile, role)
		items = append(items, utils.H{
			"id":                record.ID,
			"filename":          record.Filename,
			"candidate_name":    profile.Name,
			"email":             profile.Email,
			"skills":            profile.Skills,
			"experience_years":  profile.ExperienceYears,
			"processing_status": record.ProcessingStatus,
			"created_at":        record.CreatedAt.Format(time.RFC3339),
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

// uploadFingerprint 以文件名与文件内容构造幂等指纹的规范字节串。
// multipart边界每次请求随机生成，原始请求体不能做指纹：
// 同一批文件重传会被误判为幂等冲突
func uploadFingerprint(uploads []parser.FileItem) []byte {
	var buf bytes.Buffer
	for _, item := range uploads {
		buf.WriteString(item.Filename)
		buf.WriteByte(0)
		buf.Write(item.Data)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// redactProfile 对低权限角色掩码邮箱与电话
func redactProfile(profile *types.Profile, role string) {
	if roleSeesFullPII(role) {
		return
	}
	profile.Email = tracing.MaskPII(profile.Email)
	profile.Phone = tracing.MaskPII(profile.Phone)
}

// parsePagination 解析limit/offset查询参数并裁剪边界
func parsePagination(ctx *app.RequestContext) (limit, offset int) {
	limit = constants.DefaultPageLimit
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}

	if v := ctx.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeStoredResponse 写出幂等保护返回的（可能是重放的）响应
func writeStoredResponse(ctx *app.RequestContext, result guard.Result) {
	if result.Replayed {
		ctx.Header("Idempotency-Replayed", "true")
	}
	ctx.Data(result.Status, "application/json; charset=utf-8", result.Response)
}
