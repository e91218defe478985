package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/fields"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/parser"
	"resume-analyzer-go/internal/tracing"
	"resume-analyzer-go/internal/types"
)

const (
	DefaultMinTextLength  = 10
	DefaultSampleLength   = 500
	DefaultCharsPerPage   = 1500
	DefaultExtractTimeout = 30 * time.Second
)

// Components 分析器依赖的组件
type Components struct {
	PDFExtractor  parser.TextExtractor
	DOCXExtractor parser.TextExtractor
	Skills        *fields.SkillExtractor
	Contact       *fields.ContactExtractor
}

// Settings 分析器的参数
type Settings struct {
	MinTextLength  int
	SampleLength   int
	CharsPerPage   int
	ExtractTimeout time.Duration
	Debug          bool
	Logger         *zerolog.Logger
}

// DocumentAnalyzer 按扩展名选择提取器，提取文本后并行运行四个字段提取器。
// 只持有不可变状态，可被多个 goroutine 同时使用。
type DocumentAnalyzer struct {
	pdf     parser.TextExtractor
	docx    parser.TextExtractor
	skills  *fields.SkillExtractor
	contact *fields.ContactExtractor

	settings Settings
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewDocumentAnalyzer 使用明确分离的组件和设置创建分析器，未提供的组件使用默认实现
func NewDocumentAnalyzer(comp *Components, set *Settings, opts ...SettingOpt) *DocumentAnalyzer {
	if comp == nil {
		comp = &Components{}
	}
	if set == nil {
		set = &Settings{}
	}
	for _, opt := range opts {
		opt(set)
	}

	if set.MinTextLength <= 0 {
		set.MinTextLength = DefaultMinTextLength
	}
	if set.SampleLength <= 0 {
		set.SampleLength = DefaultSampleLength
	}
	if set.CharsPerPage <= 0 {
		set.CharsPerPage = DefaultCharsPerPage
	}
	if set.ExtractTimeout <= 0 {
		set.ExtractTimeout = DefaultExtractTimeout
	}
	l := logger.Logger.With().Str("component", "document_analyzer").Logger()
	if set.Logger != nil {
		l = *set.Logger
	}

	a := &DocumentAnalyzer{
		pdf:      comp.PDFExtractor,
		docx:     comp.DOCXExtractor,
		skills:   comp.Skills,
		contact:  comp.Contact,
		settings: *set,
		logger:   l,
		tracer:   otel.Tracer("resume-analyzer/processor"),
	}
	if a.docx == nil {
		a.docx = parser.NewDOCXExtractor(parser.WithDOCXLogger(l))
	}
	if a.skills == nil {
		a.skills = fields.NewSkillExtractor(fields.DefaultVocabulary())
	}
	if a.contact == nil {
		a.contact = fields.NewContactExtractor(fields.DefaultContactMatchers())
	}
	if a.pdf == nil {
		a.logger.Warn().Msg("未配置PDF提取器，PDF文件将无法提取文本")
	}
	return a
}

// BuildDocumentAnalyzer 根据配置构建分析器
func BuildDocumentAnalyzer(ctx context.Context, cfg *config.AnalyzerConfig, comps ...ComponentOpt) (*DocumentAnalyzer, error) {
	timeout := config.GetDuration(cfg.ExtractTimeout, DefaultExtractTimeout)

	pdfExtractor, err := parser.NewPDFExtractor(ctx,
		parser.WithPDFTimeout(timeout),
		parser.WithTableDetection(!cfg.DisableTables),
	)
	if err != nil {
		return nil, err
	}

	comp := &Components{
		PDFExtractor:  pdfExtractor,
		DOCXExtractor: parser.NewDOCXExtractor(),
	}
	vocab := fields.DefaultVocabulary().Merge(fields.Vocabulary{
		Technical: cfg.ExtraSkills.Technical,
		Soft:      cfg.ExtraSkills.Soft,
		Tools:     cfg.ExtraSkills.Tools,
	})
	// 调用方传入的选项排在配置之后，可以覆盖词表
	for _, opt := range append([]ComponentOpt{WithVocabulary(vocab)}, comps...) {
		opt(comp)
	}

	return NewDocumentAnalyzer(comp, &Settings{
		MinTextLength:  cfg.MinTextLength,
		SampleLength:   cfg.SampleLength,
		CharsPerPage:   cfg.CharsPerPage,
		ExtractTimeout: timeout,
	}, WithDebug(cfg.Debug)), nil
}

// Analyze 分析单个文件。失败时返回 *NotFoundError / *UnsupportedTypeError / *EmptyTextError。
// 不写任何持久化存储。
func (a *DocumentAnalyzer) Analyze(ctx context.Context, filePath string) (*types.AnalysisResult, error) {
	result, _, err := a.AnalyzeWithText(ctx, filePath)
	return result, err
}

// AnalyzeWithText 与 Analyze 相同，同时返回提取出的规范化文本
func (a *DocumentAnalyzer) AnalyzeWithText(ctx context.Context, filePath string) (*types.AnalysisResult, string, error) {
	ctx, span := a.tracer.Start(ctx, "DocumentAnalyzer.Analyze",
		trace.WithAttributes(attribute.String("document.name", filepath.Base(filePath))))
	defer span.End()
	startTime := time.Now()

	doc, err := resolveDocument(filePath)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, "", err
	}
	span.SetAttributes(attribute.String("document.type", string(doc.Type)))

	text, extractErr := a.extractText(ctx, doc)
	if extractErr != nil {
		// 提取失败按空文本处理，最终以 EmptyTextError 返回
		a.logger.Warn().Err(extractErr).Str("file", filePath).Msg("文本提取失败，按空文本处理")
		text = ""
	}

	length := utf8.RuneCountInString(strings.TrimSpace(text))
	if length < a.settings.MinTextLength {
		err := NewEmptyTextError(filePath, length, extractErr)
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return nil, "", err
	}

	result := a.AnalyzeText(text)

	span.SetAttributes(
		attribute.Int("document.chars", result.RawTextLength),
		attribute.Int("document.words", result.WordCount),
		tracing.Attr("document.email", result.ContactInfo.Email),
	)
	if a.settings.Debug {
		a.logger.Debug().
			Str("file", filePath).
			Str("type", string(doc.Type)).
			Int("chars", result.RawTextLength).
			Int("technical_skills", len(result.Skills.Technical)).
			Dur("elapsed", time.Since(startTime)).
			Msg("文档分析完成")
	}
	return result, text, nil
}

// AnalyzeText 对已规范化的文本运行四个字段提取器并组装结果
func (a *DocumentAnalyzer) AnalyzeText(text string) *types.AnalysisResult {
	length := utf8.RuneCountInString(text)
	result := &types.AnalysisResult{
		RawTextLength:  length,
		SampleText:     sample(text, a.settings.SampleLength),
		WordCount:      len(strings.Fields(text)),
		EstimatedPages: length/a.settings.CharsPerPage + 1,
	}

	// 四个提取器互不依赖，各自只写结果中的一个字段
	var g errgroup.Group
	g.Go(func() error {
		result.Skills = a.skills.Extract(text)
		return nil
	})
	g.Go(func() error {
		result.Experience = fields.ExtractExperience(text)
		return nil
	})
	g.Go(func() error {
		result.Education = fields.ExtractEducation(text)
		return nil
	})
	g.Go(func() error {
		result.ContactInfo = a.contact.Extract(text)
		return nil
	})
	_ = g.Wait()

	return result
}

// AnalyzeToResponse 把错误收敛为 {error} 形式，调用方只需检查 Error 字段
func (a *DocumentAnalyzer) AnalyzeToResponse(ctx context.Context, filePath string) types.AnalysisResponse {
	result, err := a.Analyze(ctx, filePath)
	if err != nil {
		return types.AnalysisResponse{Error: err.Error()}
	}
	return types.AnalysisResponse{AnalysisResult: result}
}

// ExtractText 只做文本提取，供命令行工具查看原始文本
func (a *DocumentAnalyzer) ExtractText(ctx context.Context, filePath string) (string, error) {
	doc, err := resolveDocument(filePath)
	if err != nil {
		return "", err
	}
	return a.extractText(ctx, doc)
}

// resolveDocument 检查文件存在并按扩展名识别格式
func resolveDocument(filePath string) (types.RawDocument, error) {
	if _, err := os.Stat(filePath); err != nil {
		return types.RawDocument{}, NewNotFoundError(filePath, err)
	}
	docType, ok := parser.DetectType(filePath)
	if !ok {
		return types.RawDocument{}, NewUnsupportedTypeError(filePath, filepath.Ext(filePath))
	}
	return types.RawDocument{Path: filePath, Type: docType}, nil
}

func (a *DocumentAnalyzer) extractText(ctx context.Context, doc types.RawDocument) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.settings.ExtractTimeout)
	defer cancel()

	var extractor parser.TextExtractor
	switch doc.Type {
	case types.DocumentTypePDF:
		extractor = a.pdf
	case types.DocumentTypeDOCX:
		extractor = a.docx
	}
	if extractor == nil {
		return "", &parser.ExtractionError{Path: doc.Path, Format: doc.Type, Cause: errors.New("extractor not configured")}
	}
	return extractor.Extract(ctx, doc.Path)
}

// sample 截取前 n 个字符，被截断时追加省略号
func sample(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
