package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/types"
)

// fakeEmbedder 返回固定向量的TextEmbedder实现
type fakeEmbedder struct {
	vector []float64
}

func (f fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}

func (f fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := f.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f fakeEmbedder) Available() bool    { return true }
func (f fakeEmbedder) GetDimensions() int { return len(f.vector) }

// fakeVectorIndex 记录调用参数并返回预设命中的VectorIndex实现
type fakeVectorIndex struct {
	hits      []types.VectorHit
	lastLimit int
}

func (f *fakeVectorIndex) UpsertPoint(_ context.Context, id string, vector []float64, payload map[string]interface{}) error {
	return nil
}

func (f *fakeVectorIndex) SearchTopK(_ context.Context, queryVector []float64, limit int) ([]types.VectorHit, error) {
	f.lastLimit = limit
	return f.hits, nil
}

func (f *fakeVectorIndex) DeletePoint(_ context.Context, id string) error { return nil }

func TestSearchRejectsEmptyQuery(t *testing.T) {
	searcher := NewSearcher(&fakeEmbedder{vector: []float64{1}}, newFakeRecordStore(), &fakeVectorIndex{})

	_, err := searcher.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchReturnsHitsAndSkipsMissingRecords(t *testing.T) {
	store := newFakeRecordStore()
	addResume(t, store, "r1", types.Profile{Name: "John Smith"}, []float64{1, 0})

	index := &fakeVectorIndex{hits: []types.VectorHit{
		{ID: "r1", Score: 0.87654},
		{ID: "ghost", Score: 0.5}, // 索引与记录存储间的短暂不一致
	}}
	searcher := NewSearcher(&fakeEmbedder{vector: []float64{1, 0}}, store, index)

	hits, err := searcher.Search(context.Background(), "golang engineer", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, "r1", hits[0].ResumeID)
	assert.Equal(t, "John Smith", hits[0].CandidateName)
	assert.Equal(t, 0.88, hits[0].RelevanceScore)
	assert.Equal(t, "r1.txt", hits[0].Metadata["filename"])
}

func TestSearchClampsK(t *testing.T) {
	index := &fakeVectorIndex{}
	searcher := NewSearcher(&fakeEmbedder{vector: []float64{1}}, newFakeRecordStore(), index)

	_, err := searcher.Search(context.Background(), "query", 100)
	require.NoError(t, err)
	assert.Equal(t, 20, index.lastLimit, "k超过上界时裁剪到20")

	_, err = searcher.Search(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, index.lastLimit, "k低于下界时裁剪到1")
}

func TestExtractSnippetShortText(t *testing.T) {
	snippet := ExtractSnippet("short resume text", "resume")
	assert.Equal(t, "short resume text", snippet)
}

func TestExtractSnippetFindsDensestWindow(t *testing.T) {
	text := strings.Repeat("x ", 100) + "golang developer needle" + strings.Repeat(" y", 100)

	snippet := ExtractSnippet(text, "golang needle")

	assert.Contains(t, snippet, "golang developer needle")
	assert.True(t, strings.HasPrefix(snippet, "..."), "片段不在文本开头时加前置省略号")
	assert.True(t, strings.HasSuffix(snippet, "..."), "片段不在文本末尾时加后置省略号")
}

func TestExtractSnippetFirstMaxWins(t *testing.T) {
	text := "0123456789zebra" + strings.Repeat("a", 280) + "zebra" + strings.Repeat("b", 60)

	snippet := ExtractSnippet(text, "ZEBRA")

	// 并列时取最先出现的窗口：起点为0，无前置省略号
	assert.False(t, strings.HasPrefix(snippet, "..."))
	assert.Contains(t, snippet, "0123456789zebra")
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.88, round2(0.87654))
	assert.Equal(t, 10.0, round2(9.999999999999998))
	assert.Equal(t, 0.0, round2(0))
}
