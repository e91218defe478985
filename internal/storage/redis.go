package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/tracing"
	"resume-analyzer-go/internal/types"
)

var redisTracer = otel.Tracer("resume-analyzer/storage/redis")

// ErrCacheMiss 缓存中没有对应的分析结果
var ErrCacheMiss = errors.New("分析结果缓存未命中")

// Redis 分析结果缓存与去重占位
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建客户端、挂载 redisotel 钩子并检查连通性
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) startSpan(ctx context.Context, name, operation, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.Int("db.redis.database_index", r.config.DB),
			attribute.String("db.operation", operation),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		))
}

// GetCachedAnalysis 按文件MD5读取分析结果，未命中时返回 ErrCacheMiss
func (r *Redis) GetCachedAnalysis(ctx context.Context, md5Hex string) (*types.AnalysisResult, error) {
	key := fmt.Sprintf(constants.KeyAnalysisResult, md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.GetCachedAnalysis", "GET", key)
	defer span.End()

	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("读取分析缓存失败: %w", err)
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		// 损坏的缓存按未命中处理
		r.Client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &result, nil
}

// CacheAnalysis 写入分析结果，ttl <= 0 时使用默认过期时间
func (r *Redis) CacheAnalysis(ctx context.Context, md5Hex string, result *types.AnalysisResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = constants.DefaultAnalysisCacheTTL
	}
	key := fmt.Sprintf(constants.KeyAnalysisResult, md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.CacheAnalysis", "SET", key)
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("编码分析结果失败: %w", err)
	}
	if err := r.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入分析缓存失败: %w", err)
	}
	return nil
}

// MarkInFlight 用 SET NX 为文件MD5写入带过期时间的占位。返回 false 表示已有相同文件在分析中。
// 每个MD5单独过期，新的提交不会延长其他文件的占位。
func (r *Redis) MarkInFlight(ctx context.Context, md5Hex string) (bool, error) {
	key := InFlightKey(md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.MarkInFlight", "SET", key)
	defer span.End()

	ok, err := r.Client.SetNX(ctx, key, time.Now().Unix(), constants.InFlightTTL).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, fmt.Errorf("标记分析中状态失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("inflight.added", ok))
	return ok, nil
}

// ClearInFlight 删除文件MD5的占位
func (r *Redis) ClearInFlight(ctx context.Context, md5Hex string) error {
	return r.Client.Del(ctx, InFlightKey(md5Hex)).Err()
}

// InFlightKey 返回文件MD5对应的占位键
func InFlightKey(md5Hex string) string {
	return fmt.Sprintf(constants.KeyAnalysisInFlight, md5Hex)
}

// AcquireLock 获取分布式锁，成功时返回锁的值，锁已被占用时返回空字符串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	value := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, lockKey, value, expiration).Result()
	if err != nil {
		return "", fmt.Errorf("获取锁失败: %w", err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// ReleaseLock 仅当锁仍属于调用者时释放
func (r *Redis) ReleaseLock(ctx context.Context, lockKey, value string) (bool, error) {
	n, err := releaseLockScript.Run(ctx, r.Client, []string{lockKey}, value).Int()
	if err != nil {
		return false, fmt.Errorf("释放锁失败: %w", err)
	}
	return n == 1, nil
}
