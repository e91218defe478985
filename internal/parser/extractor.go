package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"resume-analyzer-go/internal/types"
)

// ErrExtraction 文本提取失败的基础错误
var ErrExtraction = errors.New("文本提取失败")

// TextExtractor 把一个文件转换为规范化后的纯文本
type TextExtractor interface {
	Extract(ctx context.Context, filePath string) (string, error)
}

// ExtractionError 底层解析器失败时返回，带有文件路径和原始原因
type ExtractionError struct {
	Path   string
	Format types.DocumentType
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s (格式:%s, 文件:%s): %v", ErrExtraction, e.Format, e.Path, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Is 让 errors.Is(err, ErrExtraction) 对任意原因都成立
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

func newExtractionError(path string, format types.DocumentType, cause error) error {
	return &ExtractionError{Path: path, Format: format, Cause: cause}
}

// DetectType 根据扩展名判断文件格式，.doc 按 docx 处理
func DetectType(filePath string) (types.DocumentType, bool) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return types.DocumentTypePDF, true
	case ".docx", ".doc":
		return types.DocumentTypeDOCX, true
	}
	return "", false
}
