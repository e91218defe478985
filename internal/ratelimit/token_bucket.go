package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"resume-analyzer-go/internal/logger"
)

// TokenBucket 令牌桶限流器，按每分钟请求数补充令牌
type TokenBucket struct {
	rate           float64 // 每秒生成的令牌数
	capacity       float64
	tokens         float64
	lastRefillTime time.Time
	mutex          sync.Mutex

	retryWaitTime time.Duration
	maxRetries    int
	retryable     func(error) bool
}

// NewTokenBucket 创建限流器，capacity <= 0 时取 QPM 的一半
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if qpm <= 0 {
		qpm = 30
	}
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}
	return &TokenBucket{
		rate:           float64(qpm) / 60.0,
		capacity:       float64(capacity),
		tokens:         float64(capacity),
		lastRefillTime: time.Now(),
		retryWaitTime:  time.Second,
		maxRetries:     3,
		retryable:      IsRetryableError,
	}
}

// WithRetryPolicy 设置重试等待的基准时间和最大重试次数
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	if waitTime > 0 {
		tb.retryWaitTime = waitTime
	}
	if maxRetries >= 0 {
		tb.maxRetries = maxRetries
	}
	return tb
}

// WithRetryable 替换可重试错误的判定
func (tb *TokenBucket) WithRetryable(fn func(error) bool) *TokenBucket {
	if fn != nil {
		tb.retryable = fn
	}
	return tb
}

// take 补充令牌后尝试取一个，取不到时返回还需等待的时间
func (tb *TokenBucket) take() time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	tb.tokens = min(tb.capacity, tb.tokens+now.Sub(tb.lastRefillTime).Seconds()*tb.rate)
	tb.lastRefillTime = now
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	return time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
}

// Allow 尝试立即消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	return tb.take() == 0
}

// Wait 阻塞直到获得令牌或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		d := tb.take()
		if d == 0 {
			return nil
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryWithBackoff 获取令牌后执行 fn，可重试的错误按指数退避重试
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := tb.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt >= tb.maxRetries || !tb.retryable(err) {
			return err
		}
		backoff := tb.retryWaitTime << uint(attempt)
		logger.Ctx(ctx).Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("LLM调用失败，稍后重试")
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

var retryableMessages = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"EOF",
	"connection refused",
	"429",
	"rate limit",
	"no such host",
	"服务器繁忙",
	"请求超过限额",
}

// IsRetryableError 按错误信息判断是否为临时性错误
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range retryableMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
