package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/types"
)

// Searcher 语义搜索引擎：查询向量化一次，Top-K检索走向量索引，
// 摘要片段从命中记录的原文中滑窗提取
type Searcher struct {
	embedder TextEmbedder
	records  RecordStore
	vectors  VectorIndex
}

// NewSearcher 创建语义搜索引擎
func NewSearcher(embedder TextEmbedder, records RecordStore, vectors VectorIndex) *Searcher {
	return &Searcher{embedder: embedder, records: records, vectors: vectors}
}

// Search 以自然语言查询检索最相近的k份简历。
// k无论调用方传什么都被裁剪到[1, 20]；
// 结果按相似度降序，同分保持索引返回的顺序
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]types.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if k < constants.SearchKMin {
		k = constants.SearchKMin
	}
	if k > constants.SearchKMax {
		k = constants.SearchKMax
	}

	queryVector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	vectorHits, err := s.vectors.SearchTopK(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	hits := make([]types.SearchHit, 0, len(vectorHits))
	for _, vh := range vectorHits {
		record, err := s.records.GetResume(ctx, vh.ID)
		if err != nil {
			// 索引与记录存储间的短暂不一致（如已删除的记录），跳过该命中
			logger.Ctx(ctx).Warn().Str("resume_id", vh.ID).Err(err).Msg("向量命中的记录不存在，跳过")
			continue
		}

		var profile types.Profile
		if err := json.Unmarshal(record.Profile, &profile); err != nil {
			logger.Ctx(ctx).Warn().Str("resume_id", vh.ID).Err(err).Msg("画像反序列化失败，跳过")
			continue
		}

		hits = append(hits, types.SearchHit{
			ResumeID:       record.ID,
			CandidateName:  profile.Name,
			Snippet:        ExtractSnippet(record.RawText, query),
			RelevanceScore: round2(vh.Score),
			Metadata: map[string]string{
				"filename": record.Filename,
			},
		})
	}

	return hits, nil
}

// ExtractSnippet 在原文上以固定窗口滑动，选出包含最多不同查询词
// （大小写不敏感）的片段。并列时取最先出现的窗口；
// 片段首尾不在文本边界上时加省略号
func ExtractSnippet(text, query string) string {
	window := constants.SnippetWindowChars
	step := constants.SnippetStepChars

	queryTerms := strings.Fields(strings.ToLower(query))
	lowerText := strings.ToLower(text)

	bestPosition := 0
	maxMatches := 0
	for i := 0; i < len(text)-window; i += step {
		candidate := lowerText[i : i+window]
		matches := 0
		for _, term := range queryTerms {
			if strings.Contains(candidate, term) {
				matches++
			}
		}
		if matches > maxMatches {
			maxMatches = matches
			bestPosition = i
		}
	}

	end := bestPosition + window
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[bestPosition:end])

	if bestPosition > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// round2 保留2位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
