package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/types"
)

const defaultMaxUploadBytes = 20 << 20

// DocumentReader 查询文档状态与分析记录，*storage.MySQL 实现
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetAnalysis(ctx context.Context, documentID string) (*models.DocumentAnalysis, error)
}

var _ DocumentReader = (*storage.MySQL)(nil)

// DocumentHandler 文档分析接口
type DocumentHandler struct {
	service        *processor.AnalysisService
	reader         DocumentReader
	maxUploadBytes int64
	allowPath      bool
}

// DocumentHandlerOption 配置 DocumentHandler
type DocumentHandlerOption func(*DocumentHandler)

// WithMaxUploadMB 上传大小上限
func WithMaxUploadMB(mb int) DocumentHandlerOption {
	return func(h *DocumentHandler) {
		if mb > 0 {
			h.maxUploadBytes = int64(mb) << 20
		}
	}
}

// WithPathAnalysis 是否开放按服务器本地路径分析
func WithPathAnalysis(allow bool) DocumentHandlerOption {
	return func(h *DocumentHandler) {
		h.allowPath = allow
	}
}

// WithDocumentReader 开放文档状态查询
func WithDocumentReader(r DocumentReader) DocumentHandlerOption {
	return func(h *DocumentHandler) {
		h.reader = r
	}
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(service *processor.AnalysisService, opts ...DocumentHandlerOption) *DocumentHandler {
	h := &DocumentHandler{
		service:        service,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAnalyze POST /documents/analyze
// multipart 字段: file（必填）、document_type、email、async
func (h *DocumentHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(ctx, c, consts.StatusBadRequest, errors.New("文件未找到"))
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		writeError(ctx, c, consts.StatusRequestEntityTooLarge,
			fmt.Errorf("文件大小 %d 超过上限 %d", fileHeader.Size, h.maxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(ctx, c, consts.StatusInternalServerError, fmt.Errorf("打开文件失败: %w", err))
		return
	}
	defer file.Close()

	async, _ := strconv.ParseBool(c.PostForm("async"))
	log := logger.Ctx(ctx).With().Str("filename", fileHeader.Filename).Bool("async", async).Logger()

	if !async {
		result, err := h.service.AnalyzeUpload(ctx, fileHeader.Filename, file)
		if err != nil {
			log.Info().Err(err).Msg("同步分析失败")
			writeDomainError(ctx, c, err)
			return
		}
		c.JSON(consts.StatusOK, result)
		return
	}

	res, err := h.service.Submit(ctx, processor.SubmitRequest{
		Filename:       fileHeader.Filename,
		Reader:         file,
		Size:           fileHeader.Size,
		DocumentType:   types.DocumentCategory(strings.ToLower(c.PostForm("document_type"))),
		CandidateEmail: strings.TrimSpace(c.PostForm("email")),
	})
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	log.Info().Str("status", res.Status).Str("document_id", res.DocumentID).Msg("文档已提交")

	status := consts.StatusAccepted
	if res.Status == processor.SubmitStatusCached {
		status = consts.StatusOK
	}
	c.JSON(status, res)
}

// AnalyzePathRequest 按路径分析的请求体
type AnalyzePathRequest struct {
	Path string `json:"path"`
}

// HandleAnalyzePath POST /documents/analyze-path
func (h *DocumentHandler) HandleAnalyzePath(ctx context.Context, c *app.RequestContext) {
	if !h.allowPath {
		writeError(ctx, c, consts.StatusForbidden, errors.New("未开放按路径分析"))
		return
	}
	var req AnalyzePathRequest
	if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		writeError(ctx, c, consts.StatusBadRequest, errors.New("请求体需要 path 字段"))
		return
	}

	result, err := h.service.AnalyzePath(ctx, req.Path)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// DocumentStatusResponse 文档状态查询的返回；分析完成后附带结果
type DocumentStatusResponse struct {
	DocumentID   string                `json:"document_id"`
	CandidateID  string                `json:"candidate_id,omitempty"`
	DocumentType string                `json:"document_type"`
	Filename     string                `json:"filename"`
	Status       string                `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Result       *types.AnalysisResult `json:"result,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// HandleGetDocument GET /documents/:id
func (h *DocumentHandler) HandleGetDocument(ctx context.Context, c *app.RequestContext) {
	if h.reader == nil {
		writeDomainError(ctx, c, errStorageDisabled)
		return
	}
	doc, err := h.reader.GetDocument(ctx, c.Param("id"))
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}

	resp := DocumentStatusResponse{
		DocumentID:   doc.DocumentID,
		DocumentType: doc.DocumentType,
		Filename:     doc.Filename,
		Status:       doc.Status,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if doc.CandidateID != nil {
		resp.CandidateID = *doc.CandidateID
	}

	analysis, err := h.reader.GetAnalysis(ctx, doc.DocumentID)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	if analysis != nil {
		resp.Error = analysis.Error
		if len(analysis.Analysis) > 0 {
			var result types.AnalysisResult
			if err := json.Unmarshal(analysis.Analysis, &result); err != nil {
				writeError(ctx, c, consts.StatusInternalServerError, fmt.Errorf("解码分析结果失败: %w", err))
				return
			}
			resp.Result = &result
		}
	}
	c.JSON(consts.StatusOK, resp)
}
