package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/types"
)

// stubRecordStore 内存记录存储，覆盖接口测试所需的最小行为
type stubRecordStore struct {
	resumes []models.ResumeRecord
	jobs    map[string]*models.JobRecord
}

func newStubRecordStore() *stubRecordStore {
	return &stubRecordStore{jobs: make(map[string]*models.JobRecord)}
}

func (s *stubRecordStore) InsertResume(_ context.Context, record *models.ResumeRecord) error {
	s.resumes = append(s.resumes, *record)
	return nil
}

func (s *stubRecordStore) GetResume(_ context.Context, id string) (*models.ResumeRecord, error) {
	for i := range s.resumes {
		if s.resumes[i].ID == id {
			return &s.resumes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: resume %s", storage.ErrRecordNotFound, id)
}

func (s *stubRecordStore) ListResumes(_ context.Context, owner, keyword string, limit, offset int) ([]models.ResumeRecord, int64, error) {
	return s.resumes, int64(len(s.resumes)), nil
}

func (s *stubRecordStore) ScanCompletedResumes(_ context.Context) ([]models.ResumeRecord, error) {
	return s.resumes, nil
}

func (s *stubRecordStore) DeleteResume(_ context.Context, id string) error {
	for i := range s.resumes {
		if s.resumes[i].ID == id {
			s.resumes = append(s.resumes[:i], s.resumes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: resume %s", storage.ErrRecordNotFound, id)
}

func (s *stubRecordStore) InsertJob(_ context.Context, record *models.JobRecord) error {
	s.jobs[record.ID] = record
	return nil
}

func (s *stubRecordStore) GetJob(_ context.Context, id string) (*models.JobRecord, error) {
	if job, ok := s.jobs[id]; ok {
		return job, nil
	}
	return nil, fmt.Errorf("%w: job %s", storage.ErrRecordNotFound, id)
}

func (s *stubRecordStore) ListJobs(_ context.Context, owner string, limit, offset int) ([]models.JobRecord, int64, error) {
	jobs := make([]models.JobRecord, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, int64(len(jobs)), nil
}

// stubEmbedder 返回固定向量的TextEmbedder实现
type stubEmbedder struct {
	vector []float64
}

func (e stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = e.vector
	}
	return out, nil
}

func (e stubEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e stubEmbedder) Available() bool    { return true }
func (e stubEmbedder) GetDimensions() int { return len(e.vector) }

// stubVectorIndex 记录检索参数的VectorIndex实现
type stubVectorIndex struct {
	hits      []types.VectorHit
	lastLimit int
}

func (v *stubVectorIndex) UpsertPoint(_ context.Context, id string, vector []float64, payload map[string]interface{}) error {
	return nil
}

func (v *stubVectorIndex) SearchTopK(_ context.Context, queryVector []float64, limit int) ([]types.VectorHit, error) {
	v.lastLimit = limit
	return v.hits, nil
}

func (v *stubVectorIndex) DeletePoint(_ context.Context, id string) error { return nil }

// stubObjectStore 内存对象存储
type stubObjectStore struct {
	saved map[string][]byte
}

func newStubObjectStore() *stubObjectStore {
	return &stubObjectStore{saved: make(map[string][]byte)}
}

func (s *stubObjectStore) SaveOriginal(_ context.Context, recordID, filename string, data []byte) (string, error) {
	s.saved[recordID] = data
	return "originals/" + recordID, nil
}

func (s *stubObjectStore) GetOriginal(_ context.Context, recordID, filename string) ([]byte, error) {
	data, ok := s.saved[recordID]
	if !ok {
		return nil, fmt.Errorf("object %s not found", recordID)
	}
	return data, nil
}

func (s *stubObjectStore) DeleteOriginal(_ context.Context, recordID, filename string) error {
	delete(s.saved, recordID)
	return nil
}

// stubExtractor 把文件字节原样当作文本
type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, data []byte, filename string) (string, error) {
	return string(data), nil
}

// newTestEngine 创建一个只用于ut.PerformRequest的hertz引擎
func newTestEngine() *server.Hertz {
	return server.New(server.WithHostPorts("127.0.0.1:0"))
}

// performJSON 向测试引擎发送一个JSON请求
func performJSON(h *server.Hertz, method, path, body string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, method, path,
		&ut.Body{Body: strings.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func mustJSONBytes(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return datatypes.JSON(b)
}
