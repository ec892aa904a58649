package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// fakeExtractor 把文件字节原样当作文本，.bad文件报损坏
type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, data []byte, filename string) (string, error) {
	if strings.HasSuffix(filename, ".bad") {
		return "", &parser.CorruptDocumentError{Filename: filename, Format: "txt", Err: errors.New("broken")}
	}
	return string(data), nil
}

// unavailableEmbedder 模拟未配置的embedding服务
type unavailableEmbedder struct {
	fakeEmbedder
}

func (unavailableEmbedder) Available() bool { return false }

// capturingEmbedder 记录送入向量化的文本
type capturingEmbedder struct {
	fakeEmbedder
	inputs *[]string
}

func (c capturingEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	*c.inputs = append(*c.inputs, text)
	return c.fakeEmbedder.EmbedText(ctx, text)
}

type fakeObjectStore struct {
	saved   map[string][]byte
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{saved: make(map[string][]byte)}
}

func (s *fakeObjectStore) SaveOriginal(_ context.Context, recordID, filename string, data []byte) (string, error) {
	s.saved[recordID] = data
	return "originals/" + recordID, nil
}

func (s *fakeObjectStore) GetOriginal(_ context.Context, recordID, filename string) ([]byte, error) {
	data, ok := s.saved[recordID]
	if !ok {
		return nil, fmt.Errorf("object %s not found", recordID)
	}
	return data, nil
}

func (s *fakeObjectStore) DeleteOriginal(_ context.Context, recordID, filename string) error {
	delete(s.saved, recordID)
	s.deleted = append(s.deleted, recordID)
	return nil
}

type fakeEventPublisher struct {
	published []string // routing keys
}

func (p *fakeEventPublisher) PublishJSON(_ context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	p.published = append(p.published, routingKey)
	return nil
}

type ingestHarness struct {
	ingestor *Ingestor
	store    *fakeRecordStore
	index    *trackingVectorIndex
	objects  *fakeObjectStore
	events   *fakeEventPublisher
}

// trackingVectorIndex 记录写入与删除的VectorIndex实现
type trackingVectorIndex struct {
	fakeVectorIndex
	upserted []string
	deleted  []string
}

func (f *trackingVectorIndex) UpsertPoint(_ context.Context, id string, vector []float64, payload map[string]interface{}) error {
	f.upserted = append(f.upserted, id)
	return nil
}

func (f *trackingVectorIndex) DeletePoint(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newIngestHarness(embedder TextEmbedder) *ingestHarness {
	store := newFakeRecordStore()
	index := &trackingVectorIndex{}
	objects := newFakeObjectStore()
	events := &fakeEventPublisher{}
	return &ingestHarness{
		ingestor: NewIngestor(fakeExtractor{}, parser.NewProfileExtractor(), embedder, store, index, objects, events,
			"resume.events.exchange", "resume.ingested"),
		store:   store,
		index:   index,
		objects: objects,
		events:  events,
	}
}

func TestIngestResumesRejectsEmptyAndOversizedBatch(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	_, err := h.ingestor.IngestResumes(context.Background(), "owner", nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	uploads := make([]parser.FileItem, 11)
	for i := range uploads {
		uploads[i] = parser.FileItem{Filename: fmt.Sprintf("f%d.txt", i), Data: []byte("text")}
	}
	_, err = h.ingestor.IngestResumes(context.Background(), "owner", uploads)
	assert.ErrorIs(t, err, ErrTooManyFiles)
}

func TestIngestResumesHappyPath(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "jane.txt", Data: []byte("Jane Doe\njane@example.com\nSkills:\nGolang, Python")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, "completed", outcomes[0].Status)
	assert.Len(t, outcomes[0].ID, 36, "记录ID是UUID")
	assert.Empty(t, outcomes[0].Error)

	require.Len(t, h.store.resumes, 1)
	record := h.store.resumes[0]
	assert.Equal(t, outcomes[0].ID, record.ID)
	assert.Equal(t, "owner-1", record.Owner)
	assert.Equal(t, "completed", record.ProcessingStatus)
	assert.NotEmpty(t, record.Embedding)

	assert.Equal(t, []string{record.ID}, h.index.upserted)
	assert.Contains(t, h.objects.saved, record.ID)
	assert.Equal(t, []string{"resume.ingested"}, h.events.published)
}

func TestIngestResumesDegradedWithoutEmbedder(t *testing.T) {
	h := newIngestHarness(unavailableEmbedder{})

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "jane.txt", Data: []byte("Jane Doe resume text")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "completed", outcomes[0].Status)

	// 降级：记录落盘但向量为空，不写向量索引
	require.Len(t, h.store.resumes, 1)
	assert.Empty(t, h.store.resumes[0].Embedding)
	assert.Empty(t, h.index.upserted)
}

func TestIngestResumesPartialFailure(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "broken.bad", Data: []byte("x")},
		{Filename: "fine.txt", Data: []byte("Good Candidate resume")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "failed", outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Error)
	assert.Equal(t, "completed", outcomes[1].Status)
	assert.Len(t, h.store.resumes, 1, "失败的文档不落盘，其余文档正常摄入")
}

func TestIngestResumesExpandsZip(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("resume content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "batch.zip", Data: buf.Bytes()},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "a.txt", outcomes[0].Filename)
	assert.Equal(t, "b.txt", outcomes[1].Filename)
	assert.Len(t, h.store.resumes, 2)
}

func TestIngestResumesCorruptZipIsFailedOutcome(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "broken.zip", Data: []byte("not a zip")},
	})
	require.NoError(t, err, "损坏的压缩包是单项失败，不是整批失败")
	require.Len(t, outcomes, 1)
	assert.Equal(t, "failed", outcomes[0].Status)
}

func TestIngestResumesRollsBackOnPersistFailure(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})
	h.store.insertResumeErr = errors.New("mysql gone")

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "jane.txt", Data: []byte("Jane Doe resume")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "failed", outcomes[0].Status)

	// 已写入的原始文件与向量点被回滚
	assert.Empty(t, h.objects.saved)
	assert.Len(t, h.objects.deleted, 1)
	assert.Len(t, h.index.deleted, 1)
	assert.Empty(t, h.events.published)
}

func TestOriginalDocumentRoundTrip(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	raw := []byte("Jane Doe original bytes")
	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "jane.txt", Data: raw},
	})
	require.NoError(t, err)

	filename, data, err := h.ingestor.OriginalDocument(context.Background(), outcomes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "jane.txt", filename)
	assert.Equal(t, raw, data)

	_, _, err = h.ingestor.OriginalDocument(context.Background(), "missing-id")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestDeleteResumeCleansDerivedData(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	outcomes, err := h.ingestor.IngestResumes(context.Background(), "owner-1", []parser.FileItem{
		{Filename: "jane.txt", Data: []byte("Jane Doe resume text")},
	})
	require.NoError(t, err)
	id := outcomes[0].ID

	require.NoError(t, h.ingestor.DeleteResume(context.Background(), id))

	assert.Empty(t, h.store.resumes)
	assert.Equal(t, []string{id}, h.index.deleted)
	assert.NotContains(t, h.objects.saved, id)

	err = h.ingestor.DeleteResume(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestCreateJobRequiresTitle(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{1, 0}})

	_, err := h.ingestor.CreateJob(context.Background(), "owner", types.JobFields{Title: "   "})
	assert.ErrorIs(t, err, ErrJobMissingTitle)
}

func TestCreateJobPersistsWithEmbedding(t *testing.T) {
	h := newIngestHarness(&fakeEmbedder{vector: []float64{0.5, 0.5}})

	record, err := h.ingestor.CreateJob(context.Background(), "owner", types.JobFields{
		Title:          "Backend Engineer",
		Description:    "Build services",
		RequiredSkills: []string{"Go"},
	})
	require.NoError(t, err)
	assert.Len(t, record.ID, 36)
	assert.Equal(t, "Backend Engineer", record.Title)
	assert.NotEmpty(t, record.Embedding)

	stored, err := h.store.GetJob(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
}

// 岗位向量的输入覆盖标题、描述与要求技能
func TestCreateJobEmbedsRequiredSkills(t *testing.T) {
	var inputs []string
	h := newIngestHarness(capturingEmbedder{
		fakeEmbedder: fakeEmbedder{vector: []float64{0.5, 0.5}},
		inputs:       &inputs,
	})

	_, err := h.ingestor.CreateJob(context.Background(), "owner", types.JobFields{
		Title:          "Backend Engineer",
		Description:    "Build services",
		RequiredSkills: []string{"Go", "Kubernetes"},
	})
	require.NoError(t, err)

	require.Len(t, inputs, 1)
	assert.Equal(t, "Backend Engineer Build services Go Kubernetes", inputs[0])
}
