package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeRecord 简历记录表。
// 画像与向量以JSON列存储：画像结构在抽取流水线迭代时经常变动，
// 向量列供匹配计算全表扫描使用（Top-K检索走Qdrant，不走这里）。
// Embedding为NULL表示摄入时embedding服务不可用，该记录不参与语义运算
type ResumeRecord struct {
	ID               string         `gorm:"column:id;type:char(36);primaryKey"`
	Filename         string         `gorm:"column:filename;type:varchar(255);not null"`
	RawText          string         `gorm:"column:raw_text;type:longtext;not null"`
	Profile          datatypes.JSON `gorm:"column:profile;type:json;not null"`
	Embedding        datatypes.JSON `gorm:"column:embedding;type:json"`
	Owner            string         `gorm:"column:owner;type:varchar(64);not null;index:idx_resume_owner"`
	ProcessingStatus string         `gorm:"column:processing_status;type:varchar(20);not null;default:'processing'"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (ResumeRecord) TableName() string {
	return "resumes"
}

// JobRecord 岗位记录表。业务字段同样收进JSON列，与简历记录保持一致的演进方式
type JobRecord struct {
	ID        string         `gorm:"column:id;type:char(36);primaryKey"`
	Title     string         `gorm:"column:title;type:varchar(255);not null"`
	Fields    datatypes.JSON `gorm:"column:fields;type:json;not null"`
	Embedding datatypes.JSON `gorm:"column:embedding;type:json"`
	Owner     string         `gorm:"column:owner;type:varchar(64);not null;index:idx_job_owner"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (JobRecord) TableName() string {
	return "jobs"
}
