package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/profile"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/tracing"
)

var (
	errStorageDisabled = errors.New("数据库未启用")
	errLLMDisabled     = profile.ErrLLMDisabled
)

// StatusForError 把领域错误映射为 HTTP 状态码
func StatusForError(err error) int {
	switch {
	case errors.Is(err, processor.ErrNotFound),
		errors.Is(err, storage.ErrCandidateNotFound),
		errors.Is(err, storage.ErrDocumentNotFound):
		return consts.StatusNotFound
	case errors.Is(err, processor.ErrUnsupportedType):
		return consts.StatusUnsupportedMediaType
	case errors.Is(err, processor.ErrEmptyText),
		errors.Is(err, profile.ErrEmptyText):
		return consts.StatusUnprocessableEntity
	case errors.Is(err, processor.ErrInvalidCategory):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrAsyncDisabled),
		errors.Is(err, errStorageDisabled),
		errors.Is(err, errLLMDisabled):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}

// writeError 输出 {"error": "..."}，记录到当前 span；5xx 记录错误日志
func writeError(ctx context.Context, c *app.RequestContext, status int, err error) {
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	if status >= consts.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Int("status", status).Str("path", string(c.Path())).Msg("请求处理失败")
	}
	c.JSON(status, utils.H{"error": err.Error()})
}

func writeDomainError(ctx context.Context, c *app.RequestContext, err error) {
	writeError(ctx, c, StatusForError(err), err)
}
