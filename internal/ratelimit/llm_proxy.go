package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedChatModel 对聊天模型的调用限流并重试
type RateLimitedChatModel struct {
	original model.BaseChatModel
	bucket   *TokenBucket
}

var _ model.BaseChatModel = (*RateLimitedChatModel)(nil)

// NewRateLimitedChatModel 包装 original，qpm <= 0 时使用默认值
func NewRateLimitedChatModel(original model.BaseChatModel, qpm, maxRetries int, retryWait time.Duration) *RateLimitedChatModel {
	return &RateLimitedChatModel{
		original: original,
		bucket:   NewTokenBucket(qpm, qpm/2).WithRetryPolicy(retryWait, maxRetries),
	}
}

// Bucket 返回内部限流器，便于调整重试判定
func (rl *RateLimitedChatModel) Bucket() *TokenBucket {
	return rl.bucket
}

func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var resp *schema.Message
	err := rl.bucket.RetryWithBackoff(ctx, func() error {
		var genErr error
		resp, genErr = rl.original.Generate(ctx, messages, opts...)
		return genErr
	})
	return resp, err
}

func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.bucket.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, opts...)
		return streamErr
	})
	return stream, err
}
