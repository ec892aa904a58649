package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
)

// MinIO 原始文档的对象存储。摄入成功后原始字节按记录ID归档，
// 画像与向量可以随流水线演进重建，原始文件是唯一不可再生的输入
type MinIO struct {
	client          *minio.Client
	originalsBucket string
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:          client,
		originalsBucket: cfg.OriginalsBucket,
	}

	if err := m.ensureBucketExists(cfg.OriginalsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始文件存储桶 %s 存在失败: %w", cfg.OriginalsBucket, err)
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.OriginalsBucket).Msg("MinIO客户端初始化完成")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		logger.Info().Str("bucket", bucketName).Msg("已创建MinIO存储桶")
	}
	return nil
}

// objectName 以记录ID和原始扩展名构造对象路径
func (m *MinIO) objectName(recordID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("originals/%s%s", recordID, ext)
}

// SaveOriginal 保存一份原始文档，返回对象路径
func (m *MinIO) SaveOriginal(ctx context.Context, recordID, filename string, data []byte) (string, error) {
	objectName := m.objectName(recordID, filename)

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		contentType = "application/pdf"
	case ".docx":
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		contentType = "text/plain"
	}

	_, err := m.client.PutObject(ctx, m.originalsBucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"original-filename": filename,
			},
		})
	if err != nil {
		return "", fmt.Errorf("上传原始文件失败: %w", err)
	}

	return objectName, nil
}

// GetOriginal 下载一份原始文档
func (m *MinIO) GetOriginal(ctx context.Context, recordID, filename string) ([]byte, error) {
	objectName := m.objectName(recordID, filename)

	obj, err := m.client.GetObject(ctx, m.originalsBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取原始文件失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取原始文件失败: %w", err)
	}
	return data, nil
}

// DeleteOriginal 删除一份原始文档，对象不存在时不报错
func (m *MinIO) DeleteOriginal(ctx context.Context, recordID, filename string) error {
	objectName := m.objectName(recordID, filename)
	err := m.client.RemoveObject(ctx, m.originalsBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除原始文件失败: %w", err)
	}
	return nil
}
