package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/types"
)

// CandidateStore 候选人相关的持久化操作，*storage.MySQL 实现
type CandidateStore interface {
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	GetProfile(ctx context.Context, candidateID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
	LatestAnalysisForCandidate(ctx context.Context, candidateID string) (*models.DocumentAnalysis, error)
	SaveQuestionnaireAnswer(ctx context.Context, a *models.QuestionnaireAnswer) error
	ListQuestionnaireAnswers(ctx context.Context, candidateID string) ([]models.QuestionnaireAnswer, error)
}

// ProfileGenerator 根据文档文本生成档案，*profile.Generator 实现
type ProfileGenerator interface {
	Generate(ctx context.Context, text string, info types.PersonalInfo) (*types.CandidateProfile, error)
}

// ProfileLocker 防止同一候选人的档案被并发生成，*storage.Redis 实现
type ProfileLocker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, value string) (bool, error)
}

var (
	_ CandidateStore = (*storage.MySQL)(nil)
	_ ProfileLocker  = (*storage.Redis)(nil)
)

// CandidateHandler 候选人档案与问卷接口。store 为 nil 时所有接口返回 503，
// generator 为 nil 时只有档案生成接口返回 503。
type CandidateHandler struct {
	store     CandidateStore
	generator ProfileGenerator
	locker    ProfileLocker
}

// CandidateOption 候选人处理器选项
type CandidateOption func(*CandidateHandler)

// WithProfileLocker 生成档案前获取候选人级别的锁
func WithProfileLocker(l ProfileLocker) CandidateOption {
	return func(h *CandidateHandler) {
		h.locker = l
	}
}

// NewCandidateHandler 创建候选人处理器
func NewCandidateHandler(store CandidateStore, generator ProfileGenerator, opts ...CandidateOption) *CandidateHandler {
	h := &CandidateHandler{store: store, generator: generator}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ProfileResponse 档案接口的返回
type ProfileResponse struct {
	CandidateID      string    `json:"candidate_id"`
	ExtractionMethod string    `json:"extraction_method"`
	UpdatedAt        time.Time `json:"updated_at"`
	types.CandidateProfile
}

// AnswerRequest 问卷回答请求体
type AnswerRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// candidate 校验存储可用并查询候选人，失败时已写出响应
func (h *CandidateHandler) candidate(ctx context.Context, c *app.RequestContext) (*models.Candidate, bool) {
	if h.store == nil {
		writeDomainError(ctx, c, errStorageDisabled)
		return nil, false
	}
	cand, err := h.store.GetCandidate(ctx, c.Param("id"))
	if err != nil {
		writeDomainError(ctx, c, err)
		return nil, false
	}
	return cand, true
}

// HandleGetProfile GET /candidates/:id/profile
func (h *CandidateHandler) HandleGetProfile(ctx context.Context, c *app.RequestContext) {
	cand, ok := h.candidate(ctx, c)
	if !ok {
		return
	}
	rec, err := h.store.GetProfile(ctx, cand.CandidateID)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	if rec == nil {
		writeError(ctx, c, consts.StatusNotFound, errors.New("档案不存在"))
		return
	}
	h.writeProfile(ctx, c, consts.StatusOK, rec)
}

// HandleGenerateProfile POST /candidates/:id/profile/generate
// 使用候选人最近一次成功分析的文本调用 LLM 生成档案并保存
func (h *CandidateHandler) HandleGenerateProfile(ctx context.Context, c *app.RequestContext) {
	if h.generator == nil {
		writeDomainError(ctx, c, errLLMDisabled)
		return
	}
	cand, ok := h.candidate(ctx, c)
	if !ok {
		return
	}

	release, ok := h.lockProfile(ctx, c, cand.CandidateID)
	if !ok {
		return
	}
	defer release()

	analysis, err := h.store.LatestAnalysisForCandidate(ctx, cand.CandidateID)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	if analysis == nil || strings.TrimSpace(analysis.RawText) == "" {
		writeError(ctx, c, consts.StatusNotFound, errors.New("候选人没有可用的分析文本"))
		return
	}

	info := types.PersonalInfo{
		Name:     cand.Name,
		Title:    cand.Title,
		Email:    cand.Email,
		Phone:    cand.Phone,
		Location: cand.Location,
		Summary:  cand.Summary,
	}
	generated, err := h.generator.Generate(ctx, analysis.RawText, info)
	if err != nil {
		status := StatusForError(err)
		if status == consts.StatusInternalServerError {
			status = consts.StatusBadGateway
		}
		writeError(ctx, c, status, err)
		return
	}

	rec, err := storage.NewProfileRecord(cand.CandidateID, *generated, types.ExtractionLLM)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	if err := h.store.SaveProfile(ctx, rec); err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	logger.Ctx(ctx).Info().Str("candidate_id", cand.CandidateID).Msg("LLM档案已生成")
	h.writeProfile(ctx, c, consts.StatusOK, rec)
}

// lockProfile 获取档案生成锁。锁被占用时写出 409；Redis 出错时只记录警告并继续。
func (h *CandidateHandler) lockProfile(ctx context.Context, c *app.RequestContext, candidateID string) (func(), bool) {
	noop := func() {}
	if h.locker == nil {
		return noop, true
	}
	key := fmt.Sprintf(constants.KeyProfileLock, candidateID)
	value, err := h.locker.AcquireLock(ctx, key, constants.ProfileLockTTL)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", candidateID).Msg("获取档案生成锁失败，继续生成")
		return noop, true
	}
	if value == "" {
		writeError(ctx, c, consts.StatusConflict, errors.New("该候选人的档案正在生成中"))
		return nil, false
	}
	return func() {
		if _, err := h.locker.ReleaseLock(context.Background(), key, value); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", candidateID).Msg("释放档案生成锁失败")
		}
	}, true
}

func (h *CandidateHandler) writeProfile(ctx context.Context, c *app.RequestContext, status int, rec *models.Profile) {
	p, err := storage.DecodeProfile(rec)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	c.JSON(status, ProfileResponse{
		CandidateID:      rec.CandidateID,
		ExtractionMethod: rec.ExtractionMethod,
		UpdatedAt:        rec.UpdatedAt,
		CandidateProfile: p,
	})
}

// HandleCreateAnswer POST /candidates/:id/answers
func (h *CandidateHandler) HandleCreateAnswer(ctx context.Context, c *app.RequestContext) {
	cand, ok := h.candidate(ctx, c)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeError(ctx, c, consts.StatusBadRequest, errors.New("请求体需要 question 和 answer 字段"))
		return
	}

	answer := &models.QuestionnaireAnswer{
		CandidateID: cand.CandidateID,
		Question:    strings.TrimSpace(req.Question),
		Answer:      req.Answer,
	}
	if err := h.store.SaveQuestionnaireAnswer(ctx, answer); err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, answer)
}

// HandleListAnswers GET /candidates/:id/answers
func (h *CandidateHandler) HandleListAnswers(ctx context.Context, c *app.RequestContext) {
	cand, ok := h.candidate(ctx, c)
	if !ok {
		return
	}
	answers, err := h.store.ListQuestionnaireAnswers(ctx, cand.CandidateID)
	if err != nil {
		writeDomainError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"candidate_id": cand.CandidateID, "answers": answers})
}
