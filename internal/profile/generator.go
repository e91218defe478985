// Package profile 使用 LLM 把文档文本整理为结构化候选人档案
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/ratelimit"
	"resume-analyzer-go/internal/tracing"
	"resume-analyzer-go/internal/types"
)

var tracer = otel.Tracer("resume-analyzer/profile")

// ErrLLMDisabled 未配置 API Key
var ErrLLMDisabled = errors.New("未配置LLM，无法生成档案")

// ErrEmptyText 没有可供生成档案的文本
var ErrEmptyText = errors.New("文档文本为空")

const (
	defaultTimeout = 60 * time.Second
	// 传给模型的文本上限（字符数）
	maxPromptTextRunes = 12000
)

const systemPrompt = `You are an expert resume parser. Extract structured candidate information from the document text and answer with a single JSON object only. Do not wrap the JSON in markdown.`

const schemaPrompt = `Return valid JSON with this structure:
{
  "personal_info": {"name": "", "title": "", "email": "", "phone": "", "location": "", "summary": ""},
  "skills": {"technical": [], "soft": []},
  "education": [{"degree": "", "institution": "", "year": "", "description": ""}],
  "experience": [{"position": "", "company": "", "period": "", "description": ""}],
  "projects": [{"name": "", "description": "", "technologies": []}],
  "certifications": []
}`

// Generator 调用聊天模型生成候选人档案
type Generator struct {
	model   model.BaseChatModel
	timeout time.Duration
	logger  zerolog.Logger
}

// Option 配置 Generator
type Option func(*Generator)

// WithTimeout 单次生成的超时时间
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator 使用任意 eino 聊天模型创建生成器
func NewGenerator(m model.BaseChatModel, opts ...Option) *Generator {
	g := &Generator{
		model:   m,
		timeout: defaultTimeout,
		logger:  logger.Logger.With().Str("component", "profile_generator").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig 按配置创建带限流的 OpenAI 生成器，未配置 API Key 时返回 ErrLLMDisabled
func NewFromConfig(cfg config.LLMConfig, opts ...Option) (*Generator, error) {
	chat, err := NewOpenAIChatModel(cfg)
	if err != nil {
		return nil, err
	}
	limited := ratelimit.NewRateLimitedChatModel(chat, cfg.QPM, cfg.MaxRetries, 2*time.Second)
	limited.Bucket().WithRetryable(IsRetryable)

	opts = append([]Option{WithTimeout(config.GetDuration(cfg.Timeout, defaultTimeout))}, opts...)
	return NewGenerator(limited, opts...), nil
}

// Generate 生成档案。info 中非空的字段会作为已知信息提示给模型，并覆盖模型输出。
func (g *Generator) Generate(ctx context.Context, text string, info types.PersonalInfo) (*types.CandidateProfile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx, span := tracer.Start(ctx, "Generator.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("profile.text_length", len([]rune(text))))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(BuildPrompt(text, info)),
	}

	start := time.Now()
	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("生成档案失败: %w", err)
	}
	g.logger.Debug().Dur("elapsed", time.Since(start)).Int("response_length", len(resp.Content)).Msg("LLM已返回档案")

	profile, err := ParseProfile(resp.Content)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		g.logger.Warn().Err(err).Str("response", tracing.TruncateString(resp.Content, 200)).Msg("无法解析LLM返回的档案")
		return nil, err
	}
	mergePersonalInfo(&profile.PersonalInfo, info)
	return profile, nil
}

// FromAnalysis 不调用模型，直接由启发式分析结果得到档案
func FromAnalysis(result *types.AnalysisResult) types.CandidateProfile {
	return types.ProfileFromAnalysis(result)
}

// BuildPrompt 组装用户消息
func BuildPrompt(text string, info types.PersonalInfo) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following document and extract the candidate profile.\n\n")

	known := []struct{ label, value string }{
		{"Name", info.Name},
		{"Email", info.Email},
		{"Phone", info.Phone},
		{"Location", info.Location},
		{"Current Role", info.Title},
		{"Summary", info.Summary},
	}
	var lines []string
	for _, k := range known {
		if k.value != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", k.label, k.value))
		}
	}
	if len(lines) > 0 {
		sb.WriteString("PERSONAL INFORMATION (already known, keep these values):\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("DOCUMENT TEXT:\n")
	sb.WriteString(truncateRunes(text, maxPromptTextRunes))
	sb.WriteString("\n\n")
	sb.WriteString(schemaPrompt)
	return sb.String()
}

// StripCodeFence 去掉模型回复外层的 ``` 代码块标记和 BOM
func StripCodeFence(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseProfile 解析模型回复。回复前后带有说明文字时取第一个 { 到最后一个 } 之间的内容。
func ParseProfile(content string) (*types.CandidateProfile, error) {
	body := StripCodeFence(content)
	if !strings.HasPrefix(body, "{") {
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("LLM回复中没有JSON对象")
		}
		body = body[start : end+1]
	}

	var profile types.CandidateProfile
	if err := json.Unmarshal([]byte(body), &profile); err != nil {
		return nil, fmt.Errorf("解析档案JSON失败: %w", err)
	}
	normalize(&profile)
	return &profile, nil
}

func mergePersonalInfo(dst *types.PersonalInfo, known types.PersonalInfo) {
	set := func(d *string, v string) {
		if v != "" {
			*d = v
		}
	}
	set(&dst.Name, known.Name)
	set(&dst.Title, known.Title)
	set(&dst.Email, known.Email)
	set(&dst.Phone, known.Phone)
	set(&dst.Location, known.Location)
	set(&dst.Summary, known.Summary)
}

// 列表字段统一为非 nil，序列化时输出 []
func normalize(p *types.CandidateProfile) {
	if p.Skills.Technical == nil {
		p.Skills.Technical = []string{}
	}
	if p.Skills.Soft == nil {
		p.Skills.Soft = []string{}
	}
	if p.Education == nil {
		p.Education = []types.EducationEntry{}
	}
	if p.Experience == nil {
		p.Experience = []types.ExperienceEntry{}
	}
	if p.Projects == nil {
		p.Projects = []types.ProjectEntry{}
	}
	for i := range p.Projects {
		if p.Projects[i].Technologies == nil {
			p.Projects[i].Technologies = []string{}
		}
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
