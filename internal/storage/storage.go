package storage

import (
	"fmt"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
)

// Storage 聚合所有存储组件。
// RabbitMQ未配置URL时事件发布整体停用，其余组件均为必需
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	Qdrant   *Qdrant
	MinIO    *MinIO
	RabbitMQ *RabbitMQ // 可能为nil
}

// NewStorage 按配置初始化全部存储组件
func NewStorage(cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	var err error
	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	s.Redis, err = NewRedisAdapter(&cfg.Redis)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}

	s.Qdrant, err = NewQdrant(&cfg.Qdrant)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
	}

	s.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("初始化RabbitMQ失败: %w", err)
		}
		if err := s.RabbitMQ.EnsureExchange(cfg.RabbitMQ.IngestEventsExchange, "topic", true); err != nil {
			s.Close()
			return nil, fmt.Errorf("声明摄入事件交换机失败: %w", err)
		}
	} else {
		logger.Warn().Msg("未配置RabbitMQ，摄入事件发布停用")
	}

	return s, nil
}

// Close 关闭所有连接，容忍部分组件未初始化
func (s *Storage) Close() {
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
}
