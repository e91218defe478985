package storage

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
)

// AnalysisBackend 二级缓存，通常是 Redis
type AnalysisBackend interface {
	GetCachedAnalysis(ctx context.Context, md5Hex string) (*types.AnalysisResult, error)
	CacheAnalysis(ctx context.Context, md5Hex string, result *types.AnalysisResult, ttl time.Duration) error
}

// AnalysisCache 进程内 LRU 加可选的远程缓存，按文件MD5索引分析结果
type AnalysisCache struct {
	local  *lru.Cache[string, *types.AnalysisResult]
	remote AnalysisBackend
	ttl    time.Duration
}

// NewAnalysisCache 创建缓存，remote 为 nil 时只使用进程内缓存
func NewAnalysisCache(size int, ttl time.Duration, remote AnalysisBackend) (*AnalysisCache, error) {
	if size <= 0 {
		size = 256
	}
	local, err := lru.New[string, *types.AnalysisResult](size)
	if err != nil {
		return nil, err
	}
	return &AnalysisCache{local: local, remote: remote, ttl: ttl}, nil
}

// Get 先查本地再查远程，远程命中时回填本地
func (c *AnalysisCache) Get(ctx context.Context, md5Hex string) (*types.AnalysisResult, bool) {
	if result, ok := c.local.Get(md5Hex); ok {
		return result, true
	}
	if c.remote == nil {
		return nil, false
	}
	result, err := c.remote.GetCachedAnalysis(ctx, md5Hex)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.Ctx(ctx).Warn().Err(err).Str("md5", md5Hex).Msg("读取远程分析缓存失败")
		}
		return nil, false
	}
	c.local.Add(md5Hex, result)
	return result, true
}

// Put 写入本地缓存，远程写入失败时返回错误但本地仍然生效
func (c *AnalysisCache) Put(ctx context.Context, md5Hex string, result *types.AnalysisResult) error {
	if result == nil {
		return nil
	}
	c.local.Add(md5Hex, result)
	if c.remote == nil {
		return nil
	}
	return c.remote.CacheAnalysis(ctx, md5Hex, result, c.ttl)
}

// Len 本地缓存条目数
func (c *AnalysisCache) Len() int {
	return c.local.Len()
}
