package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/google/uuid"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"resume-analyzer-go/internal/api/handler"
	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
)

// HeaderRequestID 请求ID头
const HeaderRequestID = "X-Request-ID"

// Handlers 需要注册的处理器
type Handlers struct {
	Documents  *handler.DocumentHandler
	Candidates *handler.CandidateHandler
	// Components 健康检查中展示的组件状态
	Components map[string]bool
}

// NewServer 创建 hertz 服务并挂载中间件。enableTracing 为 true 时记录 OpenTelemetry 服务端 span。
func NewServer(cfg config.ServerConfig, enableTracing bool, opts ...hertzconfig.Option) *server.Hertz {
	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Address),
		server.WithHandleMethodNotAllowed(true),
	}
	if cfg.MaxUploadMB > 0 {
		// 预留 1MB 给 multipart 其他字段
		serverOpts = append(serverOpts, server.WithMaxRequestBodySize((cfg.MaxUploadMB+1)<<20))
	}

	var tracingCfg *hertztracing.Config
	if enableTracing {
		var tracerOpt hertzconfig.Option
		tracerOpt, tracingCfg = hertztracing.NewServerTracer()
		serverOpts = append(serverOpts, tracerOpt)
	}

	h := server.New(append(serverOpts, opts...)...)
	if tracingCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracingCfg))
	}
	h.Use(RequestID(), AccessLog())
	return h
}

// RequestID 读取或生成请求ID，写回响应头并放入日志上下文
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Set("request_id", id)
		c.Next(logger.WithRequestID(ctx, id))
	}
}

// AccessLog 记录访问日志，需要挂在 RequestID 之后
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		logger.Ctx(ctx).Info().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", c.Response.StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("HTTP请求")
	}
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, handlers Handlers) {
	api := h.Group("/api/v1")

	api.GET("/health", handler.Health(handlers.Components))

	if handlers.Documents != nil {
		docs := api.Group("/documents")
		docs.POST("/analyze", handlers.Documents.HandleAnalyze)
		docs.POST("/analyze-path", handlers.Documents.HandleAnalyzePath)
		docs.GET("/:id", handlers.Documents.HandleGetDocument)
	}

	if handlers.Candidates != nil {
		candidates := api.Group("/candidates/:id")
		candidates.GET("/profile", handlers.Candidates.HandleGetProfile)
		candidates.POST("/profile/generate", handlers.Candidates.HandleGenerateProfile)
		candidates.POST("/answers", handlers.Candidates.HandleCreateAnswer)
		candidates.GET("/answers", handlers.Candidates.HandleListAnswers)
	}
}
