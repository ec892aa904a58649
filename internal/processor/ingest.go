package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"
)

// Ingestor 文档摄入流水线：展开压缩包、提取文本、抽取画像、
// 生成向量并落盘。批量摄入时每份文档独立成败，一份失败不中断其余
type Ingestor struct {
	extractor DocumentExtractor
	profiles  *parser.ProfileExtractor
	embedder  TextEmbedder
	records   RecordStore
	vectors   VectorIndex
	objects   ObjectStore
	events    EventPublisher // 可能为nil

	eventsExchange   string
	ingestRoutingKey string
}

// NewIngestor 创建摄入流水线。events为nil时不发布摄入事件
func NewIngestor(
	extractor DocumentExtractor,
	profiles *parser.ProfileExtractor,
	embedder TextEmbedder,
	records RecordStore,
	vectors VectorIndex,
	objects ObjectStore,
	events EventPublisher,
	eventsExchange, ingestRoutingKey string,
) *Ingestor {
	return &Ingestor{
		extractor:        extractor,
		profiles:         profiles,
		embedder:         embedder,
		records:          records,
		vectors:          vectors,
		objects:          objects,
		events:           events,
		eventsExchange:   eventsExchange,
		ingestRoutingKey: ingestRoutingKey,
	}
}

// IngestResumes 摄入一批上传文件。zip包展开一层后逐份处理，
// 每份文档的结果独立上报
func (in *Ingestor) IngestResumes(ctx context.Context, owner string, uploads []parser.FileItem) ([]types.IngestOutcome, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if len(uploads) > constants.MaxFilesPerUpload {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(uploads), constants.MaxFilesPerUpload)
	}

	var outcomes []types.IngestOutcome
	for _, upload := range uploads {
		items, err := parser.ExpandArchive(upload.Data, upload.Filename)
		if err != nil {
			outcomes = append(outcomes, types.IngestOutcome{
				Filename: upload.Filename,
				Status:   constants.StatusFailed,
				Error:    err.Error(),
			})
			continue
		}
		if len(items) == 0 {
			outcomes = append(outcomes, types.IngestOutcome{
				Filename: upload.Filename,
				Status:   constants.StatusFailed,
				Error:    "压缩包中没有受支持的文档",
			})
			continue
		}

		for _, item := range items {
			id, err := in.ingestOne(ctx, owner, item)
			if err != nil {
				logger.Ctx(ctx).Warn().
					Str("filename", item.Filename).
					Err(err).
					Msg("文档摄入失败")
				outcomes = append(outcomes, types.IngestOutcome{
					Filename: item.Filename,
					Status:   constants.StatusFailed,
					Error:    err.Error(),
				})
				continue
			}
			outcomes = append(outcomes, types.IngestOutcome{
				Filename: item.Filename,
				Status:   constants.StatusCompleted,
				ID:       id,
			})
		}
	}

	return outcomes, nil
}

// ingestOne 处理单份文档。所有可失败的计算都先于持久化完成，
// 之后按对象存储、向量索引、记录存储的顺序写入，
// 任何一步失败都会尽力回滚已写入的部分，不留半成品记录
func (in *Ingestor) ingestOne(ctx context.Context, owner string, item parser.FileItem) (string, error) {
	text, err := in.extractor.Extract(ctx, item.Data, item.Filename)
	if err != nil {
		return "", newIngestError(item.Filename, "extract", err)
	}

	profile := in.profiles.Extract(text)
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", newIngestError(item.Filename, "marshal_profile", err)
	}

	// embedding服务未配置时降级：记录落盘但不参与语义运算
	var vector []float64
	var embeddingJSON []byte
	if in.embedder.Available() {
		vector, err = in.embedder.EmbedText(ctx, text)
		if err != nil {
			return "", newIngestError(item.Filename, "embed", err)
		}
		embeddingJSON, err = json.Marshal(vector)
		if err != nil {
			return "", newIngestError(item.Filename, "marshal_embedding", err)
		}
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return "", newIngestError(item.Filename, "generate_id", err)
	}
	id := uid.String()

	if _, err := in.objects.SaveOriginal(ctx, id, item.Filename, item.Data); err != nil {
		return "", newIngestError(item.Filename, "store_original", err)
	}

	if vector != nil {
		payload := map[string]interface{}{
			"kind":     constants.RecordKindResume,
			"owner":    owner,
			"filename": item.Filename,
		}
		if err := in.vectors.UpsertPoint(ctx, id, vector, payload); err != nil {
			in.cleanupObject(ctx, id, item.Filename)
			return "", newIngestError(item.Filename, "index_vector", err)
		}
	}

	now := time.Now()
	record := &models.ResumeRecord{
		ID:               id,
		Filename:         item.Filename,
		RawText:          text,
		Profile:          profileJSON,
		Embedding:        embeddingJSON,
		Owner:            owner,
		ProcessingStatus: constants.StatusCompleted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := in.records.InsertResume(ctx, record); err != nil {
		if vector != nil {
			in.cleanupVector(ctx, id)
		}
		in.cleanupObject(ctx, id, item.Filename)
		return "", newIngestError(item.Filename, "persist", err)
	}

	in.publishIngested(ctx, id, item.Filename, owner, now)

	logger.Ctx(ctx).Info().
		Str("resume_id", id).
		Str("filename", item.Filename).
		Bool("embedded", vector != nil).
		Str("text_preview", tracing.SafeDocumentContent(text)).
		Msg("文档摄入完成")
	return id, nil
}

// cleanupObject 回滚已写入的原始文件，失败只记日志
func (in *Ingestor) cleanupObject(ctx context.Context, id, filename string) {
	if err := in.objects.DeleteOriginal(ctx, id, filename); err != nil {
		logger.Ctx(ctx).Warn().Str("resume_id", id).Err(err).Msg("回滚原始文件失败")
	}
}

// cleanupVector 回滚已写入的向量点，失败只记日志
func (in *Ingestor) cleanupVector(ctx context.Context, id string) {
	if err := in.vectors.DeletePoint(ctx, id); err != nil {
		logger.Ctx(ctx).Warn().Str("resume_id", id).Err(err).Msg("回滚向量点失败")
	}
}

// publishIngested 摄入事件是尽力而为的通知，发布失败不影响摄入结果
func (in *Ingestor) publishIngested(ctx context.Context, id, filename, owner string, at time.Time) {
	if in.events == nil {
		return
	}
	event := types.ResumeIngestedEvent{
		ResumeID:   id,
		Filename:   filename,
		Owner:      owner,
		IngestedAt: at,
	}
	if err := in.events.PublishJSON(ctx, in.eventsExchange, in.ingestRoutingKey, event, true); err != nil {
		logger.Ctx(ctx).Warn().Str("resume_id", id).Err(err).Msg("发布摄入事件失败")
	}
}

// OriginalDocument 取回一份简历的原始文件字节与文件名
func (in *Ingestor) OriginalDocument(ctx context.Context, id string) (string, []byte, error) {
	record, err := in.records.GetResume(ctx, id)
	if err != nil {
		return "", nil, err
	}
	data, err := in.objects.GetOriginal(ctx, id, record.Filename)
	if err != nil {
		return "", nil, fmt.Errorf("读取原始文件失败: %w", err)
	}
	return record.Filename, data, nil
}

// DeleteResume 删除一份简历及其派生数据。
// 记录删除成功后，向量点与原始文件尽力清理，残留只记日志
func (in *Ingestor) DeleteResume(ctx context.Context, id string) error {
	record, err := in.records.GetResume(ctx, id)
	if err != nil {
		return err
	}
	if err := in.records.DeleteResume(ctx, id); err != nil {
		return err
	}

	if len(record.Embedding) > 0 {
		in.cleanupVector(ctx, id)
	}
	in.cleanupObject(ctx, id, record.Filename)

	logger.Ctx(ctx).Info().Str("resume_id", id).Msg("简历记录已删除")
	return nil
}

// CreateJob 创建岗位记录。embedding服务可用时同步生成岗位向量，
// 供匹配计算使用；不可用时向量留空
func (in *Ingestor) CreateJob(ctx context.Context, owner string, fields types.JobFields) (*models.JobRecord, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return nil, ErrJobMissingTitle
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("序列化岗位字段失败: %w", err)
	}

	var embeddingJSON []byte
	if in.embedder.Available() {
		// 岗位向量的输入覆盖标题、描述与要求技能，技能密集的岗位
		// 依赖技能词参与语义项
		embedInput := fields.Title + " " + fields.Description + " " + strings.Join(fields.RequiredSkills, " ")
		vector, err := in.embedder.EmbedText(ctx, embedInput)
		if err != nil {
			return nil, fmt.Errorf("生成岗位向量失败: %w", err)
		}
		embeddingJSON, err = json.Marshal(vector)
		if err != nil {
			return nil, fmt.Errorf("序列化岗位向量失败: %w", err)
		}
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成岗位ID失败: %w", err)
	}

	now := time.Now()
	record := &models.JobRecord{
		ID:        uid.String(),
		Title:     fields.Title,
		Fields:    fieldsJSON,
		Embedding: embeddingJSON,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.records.InsertJob(ctx, record); err != nil {
		return nil, fmt.Errorf("持久化岗位记录失败: %w", err)
	}

	logger.Ctx(ctx).Info().Str("job_id", record.ID).Str("title", fields.Title).Msg("岗位创建完成")
	return record, nil
}
