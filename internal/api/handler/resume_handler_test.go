package handler

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/guard"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/types"
)

func contextWithURI(uri string) *app.RequestContext {
	ctx := app.NewContext(0)
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func TestParsePagination(t *testing.T) {
	limit, offset := parsePagination(contextWithURI("/api/v1/resumes"))
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset = parsePagination(contextWithURI("/api/v1/resumes?limit=5&offset=3"))
	assert.Equal(t, 5, limit)
	assert.Equal(t, 3, offset)

	// 越界与非法值回退到默认并裁剪
	limit, offset = parsePagination(contextWithURI("/api/v1/resumes?limit=9999&offset=-2"))
	assert.Equal(t, 100, limit)
	assert.Equal(t, 0, offset)

	limit, _ = parsePagination(contextWithURI("/api/v1/resumes?limit=abc"))
	assert.Equal(t, 20, limit)
}

func TestRedactProfileByRole(t *testing.T) {
	base := types.Profile{Name: "Jane", Email: "jane@example.com", Phone: "+12345678901"}

	viewer := base
	redactProfile(&viewer, "viewer")
	assert.NotEqual(t, base.Email, viewer.Email, "viewer角色看不到完整邮箱")
	assert.NotEqual(t, base.Phone, viewer.Phone)
	assert.Contains(t, viewer.Email, "*")

	recruiter := base
	redactProfile(&recruiter, "recruiter")
	assert.Equal(t, base.Email, recruiter.Email)
	assert.Equal(t, base.Phone, recruiter.Phone)

	admin := base
	redactProfile(&admin, "admin")
	assert.Equal(t, base.Email, admin.Email)

	unknown := base
	redactProfile(&unknown, "")
	assert.NotEqual(t, base.Email, unknown.Email, "未知角色按最低权限处理")
}

func TestUploadFingerprintIsContentBased(t *testing.T) {
	uploads := []parser.FileItem{
		{Filename: "a.txt", Data: []byte("alpha")},
		{Filename: "b.txt", Data: []byte("beta")},
	}

	// 同一批文件的指纹稳定，与请求报文的编码方式无关
	assert.Equal(t, uploadFingerprint(uploads), uploadFingerprint(uploads))

	changed := []parser.FileItem{
		{Filename: "a.txt", Data: []byte("alpha")},
		{Filename: "b.txt", Data: []byte("gamma")},
	}
	assert.NotEqual(t, uploadFingerprint(uploads), uploadFingerprint(changed))

	renamed := []parser.FileItem{
		{Filename: "a.txt", Data: []byte("alpha")},
		{Filename: "c.txt", Data: []byte("beta")},
	}
	assert.NotEqual(t, uploadFingerprint(uploads), uploadFingerprint(renamed))
}

// buildUploadBody 用指定的multipart边界编码同一个上传文件
func buildUploadBody(t *testing.T, boundary string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.SetBoundary(boundary))
	fw, err := w.CreateFormFile("files", "jane.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Jane Doe\njane@example.com"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// 同一幂等键重传同一批文件，即使multipart边界不同也走重放而非冲突
func TestUploadReplaysAcrossMultipartBoundaries(t *testing.T) {
	store := newStubRecordStore()
	ingestor := processor.NewIngestor(stubExtractor{}, parser.NewProfileExtractor(),
		stubEmbedder{vector: []float64{1, 0}}, store, &stubVectorIndex{}, newStubObjectStore(), nil,
		"resume.events.exchange", "resume.ingested")
	rh := NewResumeHandler(ingestor, store, guard.NewGuard(guard.NewMemoryEntryStore()))

	h := newTestEngine()
	h.POST("/api/v1/resumes", rh.Upload)

	key := "0f8fad5b-d9cb-469f-a165-70867728950e"
	body1, contentType1 := buildUploadBody(t, "boundary-one-1a2b3c4d")
	body2, contentType2 := buildUploadBody(t, "boundary-two-5e6f7a8b")
	require.NotEqual(t, body1.String(), body2.String(), "两次请求的原始报文不同")
	len1, len2 := body1.Len(), body2.Len()

	resp1 := ut.PerformRequest(h.Engine, "POST", "/api/v1/resumes",
		&ut.Body{Body: body1, Len: len1},
		ut.Header{Key: "Content-Type", Value: contentType1},
		ut.Header{Key: "Idempotency-Key", Value: key})
	require.Equal(t, 200, resp1.Result().StatusCode())

	resp2 := ut.PerformRequest(h.Engine, "POST", "/api/v1/resumes",
		&ut.Body{Body: body2, Len: len2},
		ut.Header{Key: "Content-Type", Value: contentType2},
		ut.Header{Key: "Idempotency-Key", Value: key})
	require.Equal(t, 200, resp2.Result().StatusCode())

	assert.Equal(t, "true", resp2.Result().Header.Get("Idempotency-Replayed"))
	assert.Equal(t, string(resp1.Result().Body()), string(resp2.Result().Body()))
	assert.Len(t, store.resumes, 1, "业务操作只执行一次")
}
