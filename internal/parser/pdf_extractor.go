package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	einopdf "github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
)

const defaultExtractTimeout = 30 * time.Second

// PDFExtractor 逐页提取 PDF 文本，并尽量识别每页中的表格。
// 页面文本来自 Eino PDF Parser，表格按文字坐标行对齐识别。
type PDFExtractor struct {
	parser  *einopdf.PDFParser
	logger  zerolog.Logger
	timeout time.Duration
	tables  bool
}

// PDFOption PDF 提取器的配置选项
type PDFOption func(*PDFExtractor)

// WithPDFLogger 配置自定义日志记录器
func WithPDFLogger(l zerolog.Logger) PDFOption {
	return func(e *PDFExtractor) {
		e.logger = l
	}
}

// WithPDFTimeout 单个文件的解析超时，<=0 时使用默认值
func WithPDFTimeout(d time.Duration) PDFOption {
	return func(e *PDFExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTableDetection 是否尝试识别表格
func WithTableDetection(enabled bool) PDFOption {
	return func(e *PDFExtractor) {
		e.tables = enabled
	}
}

// NewPDFExtractor 初始化 PDF 文本提取器，按页输出文档
func NewPDFExtractor(ctx context.Context, options ...PDFOption) (*PDFExtractor, error) {
	p, err := einopdf.NewPDFParser(ctx, &einopdf.Config{
		ToPages: true, // 每页一个 Document，用于生成页标记
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &PDFExtractor{
		parser:  p,
		logger:  logger.Logger.With().Str("component", "pdf_extractor").Logger(),
		timeout: defaultExtractTimeout,
		tables:  true,
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// Extract 实现 TextExtractor
func (e *PDFExtractor) Extract(ctx context.Context, filePath string) (string, error) {
	startTime := time.Now()

	pages, err := e.extractPages(ctx, filePath)
	if err != nil {
		e.logger.Warn().Err(err).Str("file", filePath).Msg("PDF页面文本提取失败")
		return "", newExtractionError(filePath, types.DocumentTypePDF, err)
	}

	var tables map[int][]Table
	if e.tables {
		tables, err = extractPDFTables(filePath)
		if err != nil {
			// 表格只是附加信息，失败不影响正文
			e.logger.Debug().Err(err).Str("file", filePath).Msg("表格识别失败，忽略")
		}
	}

	text := Normalize(renderPages(pages, tables))
	e.logger.Debug().
		Str("file", filePath).
		Int("pages", len(pages)).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(startTime)).
		Msg("PDF提取完成")
	return text, nil
}

// extractPages 返回按页排列的文本，解析在独立 goroutine 中进行以便超时返回
func (e *PDFExtractor) extractPages(ctx context.Context, filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file %s: %w", filePath, err)
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type parseResult struct {
		docs []*schema.Document
		err  error
	}
	done := make(chan parseResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- parseResult{err: fmt.Errorf("pdf parser panic: %v", r)}
			}
		}()
		docs, err := e.parser.Parse(ctx, file,
			einoParser.WithURI(filePath),
			einoParser.WithExtraMeta(map[string]any{"source_file_path": filePath}),
		)
		done <- parseResult{docs: docs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("pdf parse aborted: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("eino PDF parser failed for %s: %w", filePath, res.err)
		}
		if len(res.docs) == 0 {
			return nil, errors.New("pdf contains no pages")
		}
		pages := make([]string, 0, len(res.docs))
		for _, doc := range res.docs {
			if doc == nil {
				pages = append(pages, "")
				continue
			}
			pages = append(pages, doc.Content)
		}
		return pages, nil
	}
}

// extractPDFTables 用 ledongthuc/pdf 读取每页的文字坐标并识别表格，key 为从 0 开始的页序号
func extractPDFTables(filePath string) (tables map[int][]Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf table reader panic: %v", r)
		}
	}()

	f, reader, err := lpdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tables = make(map[int][]Table)
	for i := 1; i <= reader.NumPage(); i++ {
		found := pageTables(reader, i)
		if len(found) > 0 {
			tables[i-1] = found
		}
	}
	return tables, nil
}

// pageTables 单页失败只跳过该页
func pageTables(reader *lpdf.Reader, pageNum int) (found []Table) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil
	}
	content := page.Content()
	glyphs := make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return DetectTables(glyphs)
}

// renderPages 拼接页面与表格标记
func renderPages(pages []string, tables map[int][]Table) string {
	var b strings.Builder
	for i, pageText := range pages {
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", i+1, pageText)
		for j, table := range tables[i] {
			fmt.Fprintf(&b, "\n--- Table %d ---\n", j+1)
			for _, row := range table {
				cells := make([]string, 0, len(row))
				for _, cell := range row {
					if cell != "" {
						cells = append(cells, cell)
					}
				}
				if len(cells) == 0 {
					continue
				}
				b.WriteString(strings.Join(cells, " | "))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
