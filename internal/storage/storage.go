package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
)

// Storage 聚合所有后端。未配置或初始化失败的后端为 nil，调用方需按需判断。
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis

	// Cache 总是可用，Redis 不可用时退化为进程内缓存
	Cache *AnalysisCache
}

// NewStorage 按配置逐个初始化后端，单个后端失败只记录警告
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var initErrors []string
	var err error

	if cfg.MinIO.Endpoint != "" {
		if s.MinIO, err = NewMinIO(ctx, &cfg.MinIO); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}
	if cfg.RabbitMQ.URL != "" {
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err == nil {
			err = s.RabbitMQ.SetupAnalysisTopology()
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}
	if cfg.MySQL.Host != "" {
		if s.MySQL, err = NewMySQL(&cfg.MySQL); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}
	if cfg.Redis.Address != "" {
		if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	var remote AnalysisBackend
	if s.Redis != nil {
		remote = s.Redis
	}
	s.Cache, err = NewAnalysisCache(cfg.Cache.LRUSize, config.GetDuration(cfg.Cache.TTL, 0), remote)
	if err != nil {
		return nil, fmt.Errorf("创建分析缓存失败: %w", err)
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	logger.Info().
		Bool("minio", s.MinIO != nil).
		Bool("rabbitmq", s.RabbitMQ != nil).
		Bool("mysql", s.MySQL != nil).
		Bool("redis", s.Redis != nil).
		Msg("存储组件初始化完成")
	return s, nil
}

// AsyncEnabled 异步分析需要对象存储、队列和数据库同时可用
func (s *Storage) AsyncEnabled() bool {
	return s.MinIO != nil && s.RabbitMQ != nil && s.MySQL != nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
