package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/parser"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/tracing"
	"resume-analyzer-go/internal/types"
)

var (
	ErrAsyncDisabled   = errors.New("异步分析未启用：需要对象存储、消息队列和数据库")
	ErrInvalidCategory = errors.New("无效的文档类别")
)

var serviceTracer = otel.Tracer("resume-analyzer/processor/service")

// 提交结果状态
const (
	SubmitStatusQueued     = "queued"
	SubmitStatusCached     = "cached"
	SubmitStatusInProgress = "in_progress"
	SubmitStatusStored     = "stored"
)

// SubmitRequest 一次异步分析提交
type SubmitRequest struct {
	Filename       string
	Reader         io.Reader
	Size           int64
	DocumentType   types.DocumentCategory
	CandidateEmail string
}

// SubmitResult 提交后的状态；命中缓存时直接带回分析结果
type SubmitResult struct {
	DocumentID string                `json:"document_id,omitempty"`
	MD5        string                `json:"md5"`
	Status     string                `json:"status"`
	Result     *types.AnalysisResult `json:"result,omitempty"`
}

// AnalysisService 把分析器和存储组合成同步/异步分析流程。
// 除分析器外的依赖都可以为空，对应的步骤会被跳过。
type AnalysisService struct {
	analyzer  Analyzer
	documents DocumentStore
	objects   ObjectStore
	publisher TaskPublisher
	cache     ResultCache
	inflight  InFlightTracker
	tempDir   string
	logger    zerolog.Logger
}

// ServiceOption 配置 AnalysisService
type ServiceOption func(*AnalysisService)

func WithDocumentStore(d DocumentStore) ServiceOption {
	return func(s *AnalysisService) { s.documents = d }
}

func WithObjectStore(o ObjectStore) ServiceOption {
	return func(s *AnalysisService) { s.objects = o }
}

func WithTaskPublisher(p TaskPublisher) ServiceOption {
	return func(s *AnalysisService) { s.publisher = p }
}

func WithResultCache(c ResultCache) ServiceOption {
	return func(s *AnalysisService) { s.cache = c }
}

func WithInFlightTracker(t InFlightTracker) ServiceOption {
	return func(s *AnalysisService) { s.inflight = t }
}

// WithTempDir 下载和暂存上传文件的目录，默认 os.TempDir()
func WithTempDir(dir string) ServiceOption {
	return func(s *AnalysisService) { s.tempDir = dir }
}

func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *AnalysisService) { s.logger = l }
}

// NewAnalysisService 创建服务
func NewAnalysisService(analyzer Analyzer, opts ...ServiceOption) *AnalysisService {
	s := &AnalysisService{
		analyzer: analyzer,
		logger:   logger.Logger.With().Str("component", "analysis_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewAnalysisServiceFromStorage 使用 Storage 中已初始化的后端创建服务
func NewAnalysisServiceFromStorage(analyzer Analyzer, st *storage.Storage, opts ...ServiceOption) *AnalysisService {
	var base []ServiceOption
	if st != nil {
		// 只传非 nil 的后端，避免接口中出现带类型的 nil
		if st.MySQL != nil {
			base = append(base, WithDocumentStore(st.MySQL))
		}
		if st.MinIO != nil {
			base = append(base, WithObjectStore(st.MinIO))
		}
		if st.RabbitMQ != nil {
			base = append(base, WithTaskPublisher(st.RabbitMQ))
		}
		if st.Cache != nil {
			base = append(base, WithResultCache(st.Cache))
		}
		if st.Redis != nil {
			base = append(base, WithInFlightTracker(st.Redis))
		}
	}
	return NewAnalysisService(analyzer, append(base, opts...)...)
}

// AsyncEnabled 是否可以走异步提交流程
func (s *AnalysisService) AsyncEnabled() bool {
	return s.documents != nil && s.objects != nil && s.publisher != nil
}

// Analyzer 返回底层分析器
func (s *AnalysisService) Analyzer() Analyzer {
	return s.analyzer
}

// AnalyzePath 直接分析服务器本地文件，不经过缓存
func (s *AnalysisService) AnalyzePath(ctx context.Context, filePath string) (*types.AnalysisResult, error) {
	return s.analyzer.Analyze(ctx, filePath)
}

// AnalyzeUpload 同步分析上传内容：暂存到临时文件后分析，结果按MD5缓存
func (s *AnalysisService) AnalyzeUpload(ctx context.Context, filename string, reader io.Reader) (*types.AnalysisResult, error) {
	ctx, span := serviceTracer.Start(ctx, "AnalysisService.AnalyzeUpload")
	defer span.End()

	if _, ok := parser.DetectType(filename); !ok {
		err := NewUnsupportedTypeError(filename, filepath.Ext(filename))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	tmpPath, md5Hex, _, err := s.spool(filename, reader)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, err
	}
	defer os.Remove(tmpPath)
	span.SetAttributes(attribute.String("document.md5", md5Hex))

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, md5Hex); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	result, err := s.analyzer.Analyze(ctx, tmpPath)
	if err != nil {
		return nil, err
	}
	s.putCache(ctx, md5Hex, result)
	return result, nil
}

// Submit 保存上传文件并发布分析任务。相同内容已有缓存结果时直接返回结果，
// 正在分析时返回 in_progress。照片类文档只保存不分析。
func (s *AnalysisService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if !s.AsyncEnabled() {
		return nil, ErrAsyncDisabled
	}
	ctx, span := serviceTracer.Start(ctx, "AnalysisService.Submit")
	defer span.End()

	category := req.DocumentType
	if category == "" {
		category = types.CategoryCV
	}
	if !types.ValidCategory(category) {
		tracing.RecordError(span, ErrInvalidCategory, tracing.ErrorTypeValidation)
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	analyzable := category != types.CategoryProfessionalPhoto
	if _, ok := parser.DetectType(req.Filename); analyzable && !ok {
		err := NewUnsupportedTypeError(req.Filename, filepath.Ext(req.Filename))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	tmpPath, md5Hex, size, err := s.spool(req.Filename, req.Reader)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, err
	}
	defer os.Remove(tmpPath)
	span.SetAttributes(attribute.String("document.md5", md5Hex), attribute.Int64("document.size", size))
	log := s.logger.With().Str("md5", md5Hex).Str("filename", req.Filename).Logger()

	if analyzable && s.cache != nil {
		if cached, ok := s.cache.Get(ctx, md5Hex); ok {
			log.Info().Msg("命中分析缓存，跳过提交")
			return &SubmitResult{MD5: md5Hex, Status: SubmitStatusCached, Result: cached}, nil
		}
	}
	if analyzable && s.inflight != nil {
		added, err := s.inflight.MarkInFlight(ctx, md5Hex)
		if err != nil {
			// 去重失败时继续提交，最多重复分析一次
			log.Warn().Err(err).Msg("标记分析中状态失败")
		} else if !added {
			tracing.RecordTaskRejected(span, md5Hex, "same content already in flight")
			log.Info().Msg("相同文件正在分析中，跳过提交")
			return &SubmitResult{MD5: md5Hex, Status: SubmitStatusInProgress}, nil
		}
	}

	documentID, err := storage.NewID()
	if err != nil {
		return nil, s.abortSubmit(ctx, md5Hex, "", err)
	}
	objectKey := storage.DocumentObjectKey(documentID, req.Filename)

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, s.abortSubmit(ctx, md5Hex, "", fmt.Errorf("打开暂存文件失败: %w", err))
	}
	defer f.Close()
	if err := s.objects.UploadDocument(ctx, objectKey, f, size, storage.ContentTypeFor(req.Filename)); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, s.abortSubmit(ctx, md5Hex, "", err)
	}

	doc := &models.Document{
		DocumentID:   documentID,
		DocumentType: string(category),
		Filename:     req.Filename,
		FilePath:     objectKey,
		FileSize:     size,
		FileMD5:      md5Hex,
		Status:       models.DocumentStatusPending,
	}
	if !analyzable {
		doc.Status = models.DocumentStatusDone
	}
	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, s.abortSubmit(ctx, md5Hex, "", err)
	}

	if !analyzable {
		if req.CandidateEmail != "" {
			s.attachCandidate(ctx, documentID, req.CandidateEmail, types.PersonalInfo{})
		}
		return &SubmitResult{DocumentID: documentID, MD5: md5Hex, Status: SubmitStatusStored}, nil
	}

	task := storage.AnalysisTask{
		DocumentID:     documentID,
		ObjectKey:      objectKey,
		Filename:       req.Filename,
		MD5:            md5Hex,
		DocumentType:   string(category),
		CandidateEmail: req.CandidateEmail,
	}
	if err := s.publisher.PublishAnalysisTask(ctx, task); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return nil, s.abortSubmit(ctx, md5Hex, documentID, fmt.Errorf("发布分析任务失败: %w", err))
	}

	log.Info().Str("document_id", documentID).Msg("分析任务已提交")
	return &SubmitResult{DocumentID: documentID, MD5: md5Hex, Status: SubmitStatusQueued}, nil
}

func (s *AnalysisService) abortSubmit(ctx context.Context, md5Hex, documentID string, cause error) error {
	if documentID != "" {
		if err := s.documents.UpdateDocumentStatus(ctx, documentID, models.DocumentStatusFailed); err != nil {
			s.logger.Warn().Err(err).Str("document_id", documentID).Msg("更新文档状态失败")
		}
	}
	s.clearInFlight(ctx, md5Hex)
	return cause
}

// HandleTask 处理一条分析任务消息，返回 true 表示确认消息。
// 消息格式错误或文档本身无法分析时确认并丢弃；存储错误返回 false 以便重试。
// lastAttempt 为 true 时消息返回 false 后会被丢弃，此时同时清除分析中占位，允许重新提交。
func (s *AnalysisService) HandleTask(ctx context.Context, body []byte, lastAttempt bool) bool {
	task, err := storage.DecodeAnalysisTask(body)
	if err != nil {
		s.logger.Error().Err(err).Msg("丢弃无效的分析任务")
		return true
	}

	ctx, span := serviceTracer.Start(ctx, "AnalysisService.HandleTask")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", task.DocumentID),
		attribute.String("document.object_key", tracing.SafeObjectKey(task.ObjectKey)),
		attribute.Bool("task.last_attempt", lastAttempt),
	)
	log := s.logger.With().Str("document_id", task.DocumentID).Logger()
	ctx = log.WithContext(ctx)

	retry := func() bool {
		if lastAttempt {
			log.Warn().Msg("重试次数用尽，放弃分析任务")
			s.clearInFlight(ctx, task.MD5)
		}
		return false
	}

	if s.documents == nil || s.objects == nil {
		log.Error().Msg("存储未初始化，无法处理分析任务")
		return retry()
	}

	s.setStatus(ctx, task.DocumentID, models.DocumentStatusProcessing)

	tmpPath, err := s.download(ctx, task)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		log.Error().Err(err).Msg("下载文档失败")
		s.setStatus(ctx, task.DocumentID, models.DocumentStatusFailed)
		return retry()
	}
	defer os.Remove(tmpPath)

	result, text, analyzeErr := s.analyzer.AnalyzeWithText(ctx, tmpPath)
	if analyzeErr != nil {
		tracing.RecordError(span, analyzeErr, tracing.ErrorTypeExtraction)
		log.Warn().Err(analyzeErr).Msg("文档分析失败")
		if err := s.saveAnalysis(ctx, task.DocumentID, nil, "", analyzeErr); err != nil {
			log.Error().Err(err).Msg("保存分析错误失败")
			return retry()
		}
		s.setStatus(ctx, task.DocumentID, models.DocumentStatusFailed)
		s.clearInFlight(ctx, task.MD5)
		return true
	}

	if err := s.persistResult(ctx, task, result, text); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		log.Error().Err(err).Msg("保存分析结果失败")
		s.setStatus(ctx, task.DocumentID, models.DocumentStatusFailed)
		return retry()
	}

	if task.MD5 != "" {
		s.putCache(ctx, task.MD5, result)
	}
	s.setStatus(ctx, task.DocumentID, models.DocumentStatusDone)
	s.clearInFlight(ctx, task.MD5)
	log.Info().
		Int("chars", result.RawTextLength).
		Int("technical_skills", len(result.Skills.Technical)).
		Msg("分析任务完成")
	return true
}

// persistResult 保存分析结果，关联候选人并写入启发式档案。
// 已有 LLM 生成的档案不会被覆盖。
func (s *AnalysisService) persistResult(ctx context.Context, task storage.AnalysisTask, result *types.AnalysisResult, text string) error {
	if err := s.saveAnalysis(ctx, task.DocumentID, result, text, nil); err != nil {
		return err
	}

	email := task.CandidateEmail
	if email == "" {
		email = result.ContactInfo.Email
	}
	heuristic := types.ProfileFromAnalysis(result)
	candidate, err := s.documents.FindOrCreateCandidateByEmail(ctx, email, heuristic.PersonalInfo)
	if err != nil {
		return err
	}
	if err := s.documents.AttachDocumentToCandidate(ctx, task.DocumentID, candidate.CandidateID); err != nil {
		return fmt.Errorf("关联候选人失败: %w", err)
	}

	if task.DocumentType != "" && task.DocumentType != string(types.CategoryCV) {
		return nil
	}
	existing, err := s.documents.GetProfile(ctx, candidate.CandidateID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ExtractionMethod == string(types.ExtractionLLM) {
		return nil
	}
	rec, err := storage.NewProfileRecord(candidate.CandidateID, heuristic, types.ExtractionHeuristic)
	if err != nil {
		return err
	}
	return s.documents.SaveProfile(ctx, rec)
}

func (s *AnalysisService) saveAnalysis(ctx context.Context, documentID string, result *types.AnalysisResult, text string, analyzeErr error) error {
	rec, err := storage.NewAnalysisRecord(documentID, result, text, analyzeErr)
	if err != nil {
		return err
	}
	return s.documents.SaveAnalysis(ctx, rec)
}

func (s *AnalysisService) attachCandidate(ctx context.Context, documentID, email string, info types.PersonalInfo) {
	candidate, err := s.documents.FindOrCreateCandidateByEmail(ctx, email, info)
	if err == nil {
		err = s.documents.AttachDocumentToCandidate(ctx, documentID, candidate.CandidateID)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("document_id", documentID).Msg("关联候选人失败")
	}
}

func (s *AnalysisService) setStatus(ctx context.Context, documentID, status string) {
	if err := s.documents.UpdateDocumentStatus(ctx, documentID, status); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("status", status).Msg("更新文档状态失败")
	}
}

func (s *AnalysisService) putCache(ctx context.Context, md5Hex string, result *types.AnalysisResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, md5Hex, result); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("md5", md5Hex).Msg("写入分析缓存失败")
	}
}

func (s *AnalysisService) clearInFlight(ctx context.Context, md5Hex string) {
	if s.inflight == nil || md5Hex == "" {
		return
	}
	if err := s.inflight.ClearInFlight(ctx, md5Hex); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("md5", md5Hex).Msg("清除分析中状态失败")
	}
}

// download 把任务对应的对象下载到带原扩展名的临时文件
func (s *AnalysisService) download(ctx context.Context, task storage.AnalysisTask) (string, error) {
	name := task.Filename
	if name == "" {
		name = task.ObjectKey
	}
	f, err := os.CreateTemp(s.tempDir, "analysis-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	if err := s.objects.DownloadToFile(ctx, task.ObjectKey, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// spool 把上传内容写入临时文件，同时计算MD5和大小
func (s *AnalysisService) spool(filename string, reader io.Reader) (string, string, int64, error) {
	if reader == nil {
		return "", "", 0, errors.New("上传内容为空")
	}
	f, err := os.CreateTemp(s.tempDir, "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", "", 0, fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer f.Close()

	hasher := md5.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), reader)
	if err != nil {
		_ = os.Remove(f.Name())
		return "", "", 0, fmt.Errorf("读取上传内容失败: %w", err)
	}
	return f.Name(), hex.EncodeToString(hasher.Sum(nil)), size, nil
}
