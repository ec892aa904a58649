package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/storage/models"
	"resume-rag-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("resume-rag-go/storage/mysql")

// ErrRecordNotFound 查询的记录不存在
var ErrRecordNotFound = errors.New("record not found")

// MySQL 关系型记录存储
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	case 4:
		logLevel = gormlogger.Info
	default:
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接池失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.AutoMigrate(&models.ResumeRecord{}, &models.JobRecord{}); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return &MySQL{db: db, cfg: cfg}, nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withSpan 包装数据库操作的追踪span
func (m *MySQL) withSpan(ctx context.Context, name, table string, fn func(ctx context.Context) error) error {
	ctx, span := mysqlTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMySQL,
			attribute.String("db.name", m.cfg.Database),
			attribute.String("db.sql.table", table),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// InsertResume 插入一条简历记录
func (m *MySQL) InsertResume(ctx context.Context, record *models.ResumeRecord) error {
	return m.withSpan(ctx, "InsertResume", record.TableName(), func(ctx context.Context) error {
		if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
			return fmt.Errorf("插入简历记录失败: %w", err)
		}
		return nil
	})
}

// GetResume 按ID获取简历记录，不存在时返回ErrRecordNotFound
func (m *MySQL) GetResume(ctx context.Context, id string) (*models.ResumeRecord, error) {
	var record models.ResumeRecord
	err := m.withSpan(ctx, "GetResume", record.TableName(), func(ctx context.Context) error {
		err := m.db.WithContext(ctx).First(&record, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: resume %s", ErrRecordNotFound, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListResumes 分页列出简历记录，按创建时间倒序。
// owner为空时不过滤归属；keyword非空时对原文做子串过滤
func (m *MySQL) ListResumes(ctx context.Context, owner, keyword string, limit, offset int) ([]models.ResumeRecord, int64, error) {
	var (
		records []models.ResumeRecord
		total   int64
	)
	err := m.withSpan(ctx, "ListResumes", models.ResumeRecord{}.TableName(), func(ctx context.Context) error {
		query := m.db.WithContext(ctx).Model(&models.ResumeRecord{})
		if owner != "" {
			query = query.Where("owner = ?", owner)
		}
		if keyword != "" {
			query = query.Where("raw_text LIKE ?", "%"+keyword+"%")
		}
		if err := query.Count(&total).Error; err != nil {
			return fmt.Errorf("统计简历记录失败: %w", err)
		}
		if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
			return fmt.Errorf("查询简历记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ScanCompletedResumes 全量读取处理完成且带向量的简历记录，供匹配计算遍历。
// 记录规模在该通道的设计范围内（数千级），不做分批
func (m *MySQL) ScanCompletedResumes(ctx context.Context) ([]models.ResumeRecord, error) {
	var records []models.ResumeRecord
	err := m.withSpan(ctx, "ScanCompletedResumes", models.ResumeRecord{}.TableName(), func(ctx context.Context) error {
		return m.db.WithContext(ctx).
			Where("processing_status = ? AND embedding IS NOT NULL", "completed").
			Find(&records).Error
	})
	if err != nil {
		return nil, fmt.Errorf("扫描简历记录失败: %w", err)
	}
	return records, nil
}

// UpdateResumeStatus 更新处理状态
func (m *MySQL) UpdateResumeStatus(ctx context.Context, id, status string) error {
	return m.withSpan(ctx, "UpdateResumeStatus", models.ResumeRecord{}.TableName(), func(ctx context.Context) error {
		result := m.db.WithContext(ctx).
			Model(&models.ResumeRecord{}).
			Where("id = ?", id).
			Update("processing_status", status)
		if result.Error != nil {
			return fmt.Errorf("更新简历状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: resume %s", ErrRecordNotFound, id)
		}
		return nil
	})
}

// DeleteResume 删除简历记录
func (m *MySQL) DeleteResume(ctx context.Context, id string) error {
	return m.withSpan(ctx, "DeleteResume", models.ResumeRecord{}.TableName(), func(ctx context.Context) error {
		result := m.db.WithContext(ctx).Delete(&models.ResumeRecord{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("删除简历记录失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: resume %s", ErrRecordNotFound, id)
		}
		return nil
	})
}

// InsertJob 插入一条岗位记录
func (m *MySQL) InsertJob(ctx context.Context, record *models.JobRecord) error {
	return m.withSpan(ctx, "InsertJob", record.TableName(), func(ctx context.Context) error {
		if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
			return fmt.Errorf("插入岗位记录失败: %w", err)
		}
		return nil
	})
}

// GetJob 按ID获取岗位记录，不存在时返回ErrRecordNotFound
func (m *MySQL) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	var record models.JobRecord
	err := m.withSpan(ctx, "GetJob", record.TableName(), func(ctx context.Context) error {
		err := m.db.WithContext(ctx).First(&record, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: job %s", ErrRecordNotFound, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListJobs 分页列出岗位记录，按创建时间倒序
func (m *MySQL) ListJobs(ctx context.Context, owner string, limit, offset int) ([]models.JobRecord, int64, error) {
	var (
		records []models.JobRecord
		total   int64
	)
	err := m.withSpan(ctx, "ListJobs", models.JobRecord{}.TableName(), func(ctx context.Context) error {
		query := m.db.WithContext(ctx).Model(&models.JobRecord{})
		if owner != "" {
			query = query.Where("owner = ?", owner)
		}
		if err := query.Count(&total).Error; err != nil {
			return fmt.Errorf("统计岗位记录失败: %w", err)
		}
		if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
			return fmt.Errorf("查询岗位记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
