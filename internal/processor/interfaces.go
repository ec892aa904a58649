package processor

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"

	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/types"
)

//
// 文档解析相关接口
//

// DocumentExtractor 文本提取器接口
type DocumentExtractor interface {
	// Extract 从原始文件字节中提取纯文本，格式由filename扩展名决定
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

//
// 向量嵌入相关接口
//

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	// EmbedStrings 将文本批量转换为向量表示
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)

	// EmbedText 单段文本的便捷封装
	EmbedText(ctx context.Context, text string) ([]float64, error)

	// Available 服务是否已配置可用
	Available() bool

	// GetDimensions 返回嵌入向量的维度
	GetDimensions() int
}

//
// 存储相关接口
//

// RecordStore 记录存储接口
type RecordStore interface {
	InsertResume(ctx context.Context, record *models.ResumeRecord) error
	GetResume(ctx context.Context, id string) (*models.ResumeRecord, error)
	ListResumes(ctx context.Context, owner, keyword string, limit, offset int) ([]models.ResumeRecord, int64, error)
	ScanCompletedResumes(ctx context.Context) ([]models.ResumeRecord, error)
	DeleteResume(ctx context.Context, id string) error

	InsertJob(ctx context.Context, record *models.JobRecord) error
	GetJob(ctx context.Context, id string) (*models.JobRecord, error)
	ListJobs(ctx context.Context, owner string, limit, offset int) ([]models.JobRecord, int64, error)
}

// VectorIndex 向量索引接口
type VectorIndex interface {
	UpsertPoint(ctx context.Context, id string, vector []float64, payload map[string]interface{}) error
	SearchTopK(ctx context.Context, queryVector []float64, limit int) ([]types.VectorHit, error)
	DeletePoint(ctx context.Context, id string) error
}

// ObjectStore 原始文件存储接口
type ObjectStore interface {
	SaveOriginal(ctx context.Context, recordID, filename string, data []byte) (string, error)
	GetOriginal(ctx context.Context, recordID, filename string) ([]byte, error)
	DeleteOriginal(ctx context.Context, recordID, filename string) error
}

// EventPublisher 事件发布接口
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}
