package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/logger"
)

// ErrEmbeddingUnavailable 未配置API密钥，embedding服务不可用。
// 语义搜索与持久化向量在此状态下停用，其余功能不受影响
var ErrEmbeddingUnavailable = errors.New("embedding service not configured")

// ProviderError embedding服务端返回的错误，保留状态码供上层映射HTTP响应
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error (status %d): %s", e.StatusCode, e.Message)
}

// DimensionMismatchError 参与运算的两个向量维度不一致
type DimensionMismatchError struct {
	LenA int
	LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// OpenAIEmbedder 通过OpenAI兼容端点生成文本向量，
// 实现 cloudwego/eino embedding.Embedder 接口
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIEmbedder 创建embedding客户端。
// 允许apiKey为空：此时构造成功但每次调用返回ErrEmbeddingUnavailable，
// 由上层决定降级行为
func NewOpenAIEmbedder(cfg config.OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Available 服务是否已配置可用
func (o *OpenAIEmbedder) Available() bool {
	return o.apiKey != ""
}

// GetDimensions 返回配置的向量维度
func (o *OpenAIEmbedder) GetDimensions() int {
	return o.dimensions
}

// openAIEmbeddingRequest OpenAI Embedding请求结构
type openAIEmbeddingRequest struct {
	Input          interface{} `json:"input"` // string 或 []string
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// openAIEmbeddingResponse OpenAI Embedding响应结构
type openAIEmbeddingResponse struct {
	Object string             `json:"object"`
	Data   []openAIDataEntry  `json:"data"`
	Model  string             `json:"model"`
	Usage  openAIUsage        `json:"usage"`
	Error  *openAIErrorDetail `json:"error,omitempty"`
}

type openAIDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// EmbedStrings 将文本批量转换为向量, 实现 cloudwego/eino embedding.Embedder 接口。
// 每段输入先按字符上限截断（字符近似token，非token感知）
func (o *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if !o.Available() {
		return nil, ErrEmbeddingUnavailable
	}

	options := &embedding.Options{}
	embedding.GetCommonOptions(options, opts...)

	effectiveModel := o.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncateRunes(t, constants.EmbeddingMaxChars)
	}

	var inputBody interface{}
	if len(truncated) == 1 {
		inputBody = truncated[0]
	} else {
		inputBody = truncated
	}

	reqBody := openAIEmbeddingRequest{
		Input:          inputBody,
		Model:          effectiveModel,
		EncodingFormat: "float",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化embedding请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	startTime := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取embedding响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errResp openAIEmbeddingResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("model", effectiveModel).
			Msg("embedding服务调用失败")
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed openAIEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析embedding响应JSON失败: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Data) != len(truncated) {
		return nil, fmt.Errorf("embedding响应条目数不匹配: 期望%d, 实际%d", len(truncated), len(parsed.Data))
	}

	// 按Index归位，服务端不保证返回顺序
	out := make([][]float64, len(parsed.Data))
	for _, entry := range parsed.Data {
		if entry.Index < 0 || entry.Index >= len(out) {
			return nil, fmt.Errorf("embedding响应索引越界: %d", entry.Index)
		}
		out[entry.Index] = entry.Embedding
	}

	logger.Debug().
		Int("texts", len(texts)).
		Int("prompt_tokens", parsed.Usage.PromptTokens).
		Dur("duration", time.Since(startTime)).
		Msg("embedding生成完成")

	return out, nil
}

// EmbedText 单段文本的便捷封装
func (o *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := o.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding服务返回空结果")
	}
	return vectors[0], nil
}

// CosineSimilarity 计算两个向量的余弦相似度。
// 维度不一致返回错误；任一向量为零向量时返回0而不报错
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
