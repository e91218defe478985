package parser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
)

// DOCXExtractor 提取 Word 文档正文。docx 没有物理分页，所以不输出页标记。
type DOCXExtractor struct {
	logger zerolog.Logger
}

// DOCXOption DOCX 提取器的配置选项
type DOCXOption func(*DOCXExtractor)

// WithDOCXLogger 配置自定义日志记录器
func WithDOCXLogger(l zerolog.Logger) DOCXOption {
	return func(e *DOCXExtractor) {
		e.logger = l
	}
}

// NewDOCXExtractor 创建 DOCX 提取器
func NewDOCXExtractor(options ...DOCXOption) *DOCXExtractor {
	e := &DOCXExtractor{
		logger: logger.Logger.With().Str("component", "docx_extractor").Logger(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Extract 实现 TextExtractor
func (e *DOCXExtractor) Extract(ctx context.Context, filePath string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", newExtractionError(filePath, types.DocumentTypeDOCX, err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = newExtractionError(filePath, types.DocumentTypeDOCX, fmt.Errorf("docx reader panic: %v", r))
		}
	}()

	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		e.logger.Warn().Err(err).Str("file", filePath).Msg("打开DOCX文件失败")
		return "", newExtractionError(filePath, types.DocumentTypeDOCX, err)
	}
	defer doc.Close()

	body, err := DocumentXMLText(doc.Editable().GetContent())
	if err != nil {
		e.logger.Warn().Err(err).Str("file", filePath).Msg("解析document.xml失败")
		return "", newExtractionError(filePath, types.DocumentTypeDOCX, err)
	}

	text = Normalize(body)
	e.logger.Debug().Str("file", filePath).Int("chars", len(text)).Msg("DOCX提取完成")
	return text, nil
}

// DocumentXMLText 遍历 word/document.xml，段落之间换行，制表符和换行符保留为空白
func DocumentXMLText(documentXML string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(documentXML))
	var b strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("invalid document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
