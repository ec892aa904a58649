package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"resume-rag-go/internal/logger"
)

// TextExtractor 按文件扩展名分发到对应的解析器，把一份原始文档
// 转换为纯文本。支持 pdf / docx / txt 三种格式。
type TextExtractor struct {
	pdfParser *pdf.PDFParser
}

// NewTextExtractor 初始化文本提取器
// PDF解析配置为不按页面分割，以获取整个文档的连续文本
func NewTextExtractor(ctx context.Context) (*TextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 非常重要：我们希望获取整个PDF的文本作为单个字符串
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF parser: %w", err)
	}

	return &TextExtractor{pdfParser: p}, nil
}

// Extract 从原始文件字节中提取纯文本。
// 格式由filename的扩展名决定；返回ErrUnsupportedFormat、
// ErrEmptyDocument或*CorruptDocumentError之一时，调用方应把
// 该文档记为失败并继续处理批次中的其余文档。
func (t *TextExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = t.extractPDF(ctx, data, filename)
	case "docx":
		text, err = extractDOCX(data, filename)
	case "txt":
		text, err = extractPlainText(data, filename)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return text, nil
}

// SupportedFormat 判断扩展名是否受支持（不含点，小写）
func SupportedFormat(filename string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf", "docx", "txt":
		return true
	}
	return false
}

func (t *TextExtractor) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	startTime := time.Now()

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := t.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(filename),
	)
	if err != nil {
		return "", &CorruptDocumentError{Filename: filename, Format: "pdf", Err: err}
	}
	if len(docs) == 0 {
		return "", &CorruptDocumentError{
			Filename: filename,
			Format:   "pdf",
			Err:      fmt.Errorf("parser returned no documents"),
		}
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}

	logger.Debug().
		Str("filename", filename).
		Int("chars", sb.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本提取完成")

	return sb.String(), nil
}

func extractPlainText(data []byte, filename string) (string, error) {
	if !utf8.Valid(data) {
		return "", &CorruptDocumentError{
			Filename: filename,
			Format:   "txt",
			Err:      fmt.Errorf("content is not valid UTF-8"),
		}
	}
	return string(data), nil
}
