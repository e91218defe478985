package processor

import (
	"time"

	"github.com/rs/zerolog"

	"resume-analyzer-go/internal/fields"
	"resume-analyzer-go/internal/parser"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithPDFExtractor 设置PDF提取器
func WithPDFExtractor(extractor parser.TextExtractor) ComponentOpt {
	return func(c *Components) {
		c.PDFExtractor = extractor
	}
}

// WithDOCXExtractor 设置DOCX提取器
func WithDOCXExtractor(extractor parser.TextExtractor) ComponentOpt {
	return func(c *Components) {
		c.DOCXExtractor = extractor
	}
}

// WithVocabulary 使用自定义技能词表
func WithVocabulary(vocab fields.Vocabulary) ComponentOpt {
	return func(c *Components) {
		c.Skills = fields.NewSkillExtractor(vocab)
	}
}

// WithContactMatchers 使用自定义的联系方式匹配顺序
func WithContactMatchers(m fields.ContactMatchers) ComponentOpt {
	return func(c *Components) {
		c.Contact = fields.NewContactExtractor(m)
	}
}

// ----- 设置选项 -----

// WithMinTextLength 最小可分析文本长度（字符数）
func WithMinTextLength(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.MinTextLength = n
		}
	}
}

// WithSampleLength 结果中样本文本的长度
func WithSampleLength(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.SampleLength = n
		}
	}
}

// WithCharsPerPage 估算页数时每页的字符数
func WithCharsPerPage(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.CharsPerPage = n
		}
	}
}

// WithExtractTimeout 文本提取阶段的超时
func WithExtractTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.ExtractTimeout = d
		}
	}
}

// WithAnalyzerLogger 设置日志记录器
func WithAnalyzerLogger(l zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		s.Logger = &l
	}
}

// WithDebug 设置调试模式
func WithDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}
