package processor

import (
	"errors"
	"fmt"

	"resume-analyzer-go/internal/parser"
)

// 定义基础错误类型
var (
	ErrNotFound        = errors.New("文件不存在")
	ErrUnsupportedType = errors.New("不支持的文件类型")
	ErrEmptyText       = errors.New("提取的文本过短，无法分析")
	ErrExtraction      = parser.ErrExtraction
)

// AnalyzeError 分析过程中的错误，Op 标识失败的阶段
type AnalyzeError struct {
	Path    string
	Op      string
	BaseErr error
	Detail  string
	Cause   error
}

func (e *AnalyzeError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 同时暴露基础错误和底层原因，便于 errors.Is / errors.As 逐层检查
func (e *AnalyzeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// NotFoundError 输入文件不存在
type NotFoundError struct{ AnalyzeError }

// UnsupportedTypeError 扩展名不是 pdf/doc/docx
type UnsupportedTypeError struct {
	AnalyzeError
	Extension string
}

// EmptyTextError 文本为空或少于最小长度；提取失败时 Cause 为 *parser.ExtractionError
type EmptyTextError struct {
	AnalyzeError
	Length int
}

// 错误构造函数
func NewNotFoundError(path string, cause error) error {
	return &NotFoundError{AnalyzeError{Path: path, Op: "stat", BaseErr: ErrNotFound, Cause: cause}}
}

func NewUnsupportedTypeError(path, ext string) error {
	return &UnsupportedTypeError{
		AnalyzeError: AnalyzeError{Path: path, Op: "detect", BaseErr: ErrUnsupportedType, Detail: fmt.Sprintf("扩展名 %q", ext)},
		Extension:    ext,
	}
}

func NewEmptyTextError(path string, length int, cause error) error {
	return &EmptyTextError{
		AnalyzeError: AnalyzeError{Path: path, Op: "extract", BaseErr: ErrEmptyText, Detail: fmt.Sprintf("长度 %d", length), Cause: cause},
		Length:       length,
	}
}
