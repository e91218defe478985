package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"resume-analyzer-go/internal/api/handler"
	"resume-analyzer-go/internal/api/router"
	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/profile"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logCloser, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化日志失败")
	}
	defer logCloser.Close()
	initHertzLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	analyzer, err := processor.BuildDocumentAnalyzer(ctx, &cfg.Analyzer)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文档分析器失败")
	}
	service := processor.NewAnalysisServiceFromStorage(analyzer, storageManager,
		processor.WithTempDir(cfg.Server.UploadDir))

	if service.AsyncEnabled() {
		err := storageManager.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.AnalysisQueue, cfg.RabbitMQ.PrefetchCount,
			func(body []byte, lastAttempt bool) bool {
				return service.HandleTask(ctx, body, lastAttempt)
			})
		if err != nil {
			logger.Fatal().Err(err).Msg("启动分析任务消费者失败")
		}
	} else {
		logger.Warn().Msg("对象存储、消息队列或数据库未启用，只提供同步分析")
	}

	// 接口值只在后端可用时赋值，避免带类型的 nil
	var generator handler.ProfileGenerator
	gen, err := profile.NewFromConfig(cfg.LLM)
	switch {
	case errors.Is(err, profile.ErrLLMDisabled):
		logger.Info().Msg("未配置LLM，档案生成接口不可用")
	case err != nil:
		logger.Fatal().Err(err).Msg("初始化LLM失败")
	default:
		generator = gen
	}
	var candidateStore handler.CandidateStore
	if storageManager.MySQL != nil {
		candidateStore = storageManager.MySQL
	}
	documentOpts := []handler.DocumentHandlerOption{
		handler.WithMaxUploadMB(cfg.Server.MaxUploadMB),
		handler.WithPathAnalysis(cfg.Server.AllowPathAnalysis),
	}
	if storageManager.MySQL != nil {
		documentOpts = append(documentOpts, handler.WithDocumentReader(storageManager.MySQL))
	}
	var candidateOpts []handler.CandidateOption
	if storageManager.Redis != nil {
		candidateOpts = append(candidateOpts, handler.WithProfileLocker(storageManager.Redis))
	}

	h := router.NewServer(cfg.Server, cfg.Tracing.Enabled)
	router.RegisterRoutes(h, router.Handlers{
		Documents:  handler.NewDocumentHandler(service, documentOpts...),
		Candidates: handler.NewCandidateHandler(candidateStore, generator, candidateOpts...),
		Components: map[string]bool{
			"mysql":    storageManager.MySQL != nil,
			"redis":    storageManager.Redis != nil,
			"minio":    storageManager.MinIO != nil,
			"rabbitmq": storageManager.RabbitMQ != nil,
			"async":    service.AsyncEnabled(),
			"llm":      generator != nil,
		},
	})

	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")
	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	// 先停止消费者，再关闭 HTTP 和追踪
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("关闭链路追踪失败")
	}
	logger.Info().Msg("优雅退出完成")
}

// initHertzLogger 让 hertz 的日志也走全局 zerolog
func initHertzLogger() {
	glog.SetLogger(hertzadapter.From(logger.Logger))
	switch logger.Logger.GetLevel() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		glog.SetLevel(glog.LevelDebug)
	case zerolog.WarnLevel:
		glog.SetLevel(glog.LevelWarn)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
