package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/api/handler"
	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/types"
)

const resumeText = "Jane Doe jane@example.com +1 555 010 2030 Senior Software Engineer at Acme Corp. Skills: Python, Docker, leadership."

type stubExtractor struct{ text string }

func (s stubExtractor) Extract(context.Context, string) (string, error) {
	return s.text, nil
}

type memoryCandidateStore struct {
	mu         sync.Mutex
	candidates map[string]*models.Candidate
	profiles   map[string]*models.Profile
	analyses   map[string]*models.DocumentAnalysis
	answers    []models.QuestionnaireAnswer
}

func newMemoryCandidateStore() *memoryCandidateStore {
	return &memoryCandidateStore{
		candidates: map[string]*models.Candidate{},
		profiles:   map[string]*models.Profile{},
		analyses:   map[string]*models.DocumentAnalysis{},
	}
}

func (m *memoryCandidateStore) GetCandidate(_ context.Context, id string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, storage.ErrCandidateNotFound
	}
	return c, nil
}

func (m *memoryCandidateStore) GetProfile(_ context.Context, candidateID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[candidateID], nil
}

func (m *memoryCandidateStore) SaveProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.CandidateID] = p
	return nil
}

func (m *memoryCandidateStore) LatestAnalysisForCandidate(_ context.Context, candidateID string) (*models.DocumentAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyses[candidateID], nil
}

func (m *memoryCandidateStore) SaveQuestionnaireAnswer(_ context.Context, a *models.QuestionnaireAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.AnswerID = uint64(len(m.answers) + 1)
	m.answers = append(m.answers, *a)
	return nil
}

func (m *memoryCandidateStore) ListQuestionnaireAnswers(_ context.Context, candidateID string) ([]models.QuestionnaireAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.QuestionnaireAnswer{}
	for _, a := range m.answers {
		if a.CandidateID == candidateID {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubGenerator struct {
	err      error
	lastText string
}

func (g *stubGenerator) Generate(_ context.Context, text string, info types.PersonalInfo) (*types.CandidateProfile, error) {
	g.lastText = text
	if g.err != nil {
		return nil, g.err
	}
	p := types.ProfileFromAnalysis(nil)
	p.PersonalInfo = info
	p.Skills.Technical = []string{"Go"}
	return &p, nil
}

type testServer struct {
	h     *server.Hertz
	store *memoryCandidateStore
}

func newTestServer(t *testing.T, extracted string, generator handler.ProfileGenerator, allowPath bool) *testServer {
	t.Helper()
	analyzer := processor.NewDocumentAnalyzer(&processor.Components{
		PDFExtractor:  stubExtractor{text: extracted},
		DOCXExtractor: stubExtractor{text: extracted},
	}, nil, processor.WithAnalyzerLogger(zerolog.Nop()))
	cache, err := storage.NewAnalysisCache(8, 0, nil)
	require.NoError(t, err)
	service := processor.NewAnalysisService(analyzer,
		processor.WithResultCache(cache),
		processor.WithTempDir(t.TempDir()),
		processor.WithServiceLogger(zerolog.Nop()))

	store := newMemoryCandidateStore()
	h := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, false)
	RegisterRoutes(h, Handlers{
		Documents:  handler.NewDocumentHandler(service, handler.WithPathAnalysis(allowPath)),
		Candidates: handler.NewCandidateHandler(store, generator),
		Components: map[string]bool{"mysql": false},
	})
	return &testServer{h: h, store: store}
}

func uploadBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, filename string, fields map[string]string) *ut.ResponseRecorder {
	body, contentType := uploadBody(t, filename, []byte("%PDF-1.4 test"), fields)
	return ut.PerformRequest(s.h.Engine, consts.MethodPost, "/api/v1/documents/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType})
}

func (s *testServer) postJSON(path string, v any) *ut.ResponseRecorder {
	data, _ := json.Marshal(v)
	return ut.PerformRequest(s.h.Engine, consts.MethodPost, path,
		&ut.Body{Body: bytes.NewReader(data), Len: len(data)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func decode(t *testing.T, resp *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &out), string(resp.Result().Body()))
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, resumeText, nil, false)

	resp := ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, consts.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Result().Header.Get(HeaderRequestID))
	assert.Equal(t, "ok", decode(t, resp)["status"])

	resp = ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/health", nil,
		ut.Header{Key: HeaderRequestID, Value: "req-123"})
	assert.Equal(t, "req-123", resp.Result().Header.Get(HeaderRequestID))
}

func TestAnalyzeUpload(t *testing.T) {
	s := newTestServer(t, resumeText, nil, false)

	resp := s.upload(t, "cv.pdf", nil)
	require.Equal(t, consts.StatusOK, resp.Code, string(resp.Result().Body()))
	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &result))
	assert.Equal(t, "jane@example.com", result.ContactInfo.Email)
	assert.Contains(t, result.Skills.Technical, "Docker")
}

func TestAnalyzeUploadErrors(t *testing.T) {
	s := newTestServer(t, resumeText, nil, false)

	resp := s.upload(t, "", nil)
	assert.Equal(t, consts.StatusBadRequest, resp.Code)

	resp = s.upload(t, "notes.txt", nil)
	assert.Equal(t, consts.StatusUnsupportedMediaType, resp.Code)
	assert.Contains(t, decode(t, resp)["error"], "不支持的文件类型")

	resp = s.upload(t, "cv.pdf", map[string]string{"async": "true"})
	assert.Equal(t, consts.StatusServiceUnavailable, resp.Code, "未配置存储时不能异步分析")

	short := newTestServer(t, "tiny", nil, false)
	resp = short.upload(t, "cv.docx", nil)
	assert.Equal(t, consts.StatusUnprocessableEntity, resp.Code)
}

func TestAnalyzePath(t *testing.T) {
	disabled := newTestServer(t, resumeText, nil, false)
	resp := disabled.postJSON("/api/v1/documents/analyze-path", handler.AnalyzePathRequest{Path: "/tmp/cv.pdf"})
	assert.Equal(t, consts.StatusForbidden, resp.Code)

	s := newTestServer(t, resumeText, nil, true)
	resp = s.postJSON("/api/v1/documents/analyze-path", map[string]string{})
	assert.Equal(t, consts.StatusBadRequest, resp.Code)

	resp = s.postJSON("/api/v1/documents/analyze-path", handler.AnalyzePathRequest{Path: filepath.Join(t.TempDir(), "missing.pdf")})
	assert.Equal(t, consts.StatusNotFound, resp.Code)

	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0644))
	resp = s.postJSON("/api/v1/documents/analyze-path", handler.AnalyzePathRequest{Path: path})
	assert.Equal(t, consts.StatusOK, resp.Code)
}

func TestCandidateProfile(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestServer(t, resumeText, gen, false)

	resp := ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/candidates/nobody/profile", nil)
	assert.Equal(t, consts.StatusNotFound, resp.Code)

	s.store.candidates["c1"] = &models.Candidate{CandidateID: "c1", Name: "Jane Doe", Email: "jane@example.com"}
	resp = ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/candidates/c1/profile", nil)
	assert.Equal(t, consts.StatusNotFound, resp.Code, "还没有档案")

	rec, err := storage.ProfileFromAnalysis("c1", &types.AnalysisResult{ContactInfo: types.ContactInfo{Email: "jane@example.com"}})
	require.NoError(t, err)
	s.store.profiles["c1"] = rec
	resp = ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/candidates/c1/profile", nil)
	require.Equal(t, consts.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, "heuristic", body["extraction_method"])
	assert.Equal(t, "jane@example.com", body["personal_info"].(map[string]any)["email"])

	// 没有分析文本时不能生成
	resp = s.postJSON("/api/v1/candidates/c1/profile/generate", nil)
	assert.Equal(t, consts.StatusNotFound, resp.Code)

	s.store.analyses["c1"] = &models.DocumentAnalysis{DocumentID: "d1", RawText: resumeText}
	resp = s.postJSON("/api/v1/candidates/c1/profile/generate", nil)
	require.Equal(t, consts.StatusOK, resp.Code, string(resp.Result().Body()))
	body = decode(t, resp)
	assert.Equal(t, "llm", body["extraction_method"])
	assert.Equal(t, "Jane Doe", body["personal_info"].(map[string]any)["name"])
	assert.Equal(t, resumeText, gen.lastText)
	assert.Equal(t, string(types.ExtractionLLM), s.store.profiles["c1"].ExtractionMethod)

	gen.err = errors.New("upstream unavailable")
	resp = s.postJSON("/api/v1/candidates/c1/profile/generate", nil)
	assert.Equal(t, consts.StatusBadGateway, resp.Code)
}

func TestGenerateProfileWithoutLLM(t *testing.T) {
	s := newTestServer(t, resumeText, nil, false)
	s.store.candidates["c1"] = &models.Candidate{CandidateID: "c1"}

	resp := s.postJSON("/api/v1/candidates/c1/profile/generate", nil)
	assert.Equal(t, consts.StatusServiceUnavailable, resp.Code)
}

func TestQuestionnaireAnswers(t *testing.T) {
	s := newTestServer(t, resumeText, nil, false)
	s.store.candidates["c1"] = &models.Candidate{CandidateID: "c1"}

	resp := s.postJSON("/api/v1/candidates/c1/answers", handler.AnswerRequest{Answer: "no question"})
	assert.Equal(t, consts.StatusBadRequest, resp.Code)

	resp = s.postJSON("/api/v1/candidates/c1/answers", handler.AnswerRequest{Question: "Notice period?", Answer: "One month"})
	require.Equal(t, consts.StatusCreated, resp.Code)
	assert.Equal(t, "Notice period?", decode(t, resp)["question"])

	resp = s.postJSON("/api/v1/candidates/missing/answers", handler.AnswerRequest{Question: "q", Answer: "a"})
	assert.Equal(t, consts.StatusNotFound, resp.Code)

	resp = ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/candidates/c1/answers", nil)
	require.Equal(t, consts.StatusOK, resp.Code)
	answers := decode(t, resp)["answers"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, "One month", answers[0].(map[string]any)["answer"])
}

func TestCandidateRoutesWithoutStore(t *testing.T) {
	h := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, false)
	RegisterRoutes(h, Handlers{Candidates: handler.NewCandidateHandler(nil, nil)})

	resp := ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/candidates/c1/answers", nil)
	assert.Equal(t, consts.StatusServiceUnavailable, resp.Code)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", nil
	}
	l.held[key] = "token"
	return "token", nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != value {
		return false, nil
	}
	delete(l.held, key)
	l.released = append(l.released, key)
	return true, nil
}

func TestGenerateProfileLock(t *testing.T) {
	store := newMemoryCandidateStore()
	store.candidates["c1"] = &models.Candidate{CandidateID: "c1"}
	store.analyses["c1"] = &models.DocumentAnalysis{DocumentID: "d1", RawText: resumeText}
	locker := &fakeLocker{held: map[string]string{}}

	h := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, false)
	RegisterRoutes(h, Handlers{
		Candidates: handler.NewCandidateHandler(store, &stubGenerator{}, handler.WithProfileLocker(locker)),
	})
	s := &testServer{h: h, store: store}

	key := fmt.Sprintf(constants.KeyProfileLock, "c1")
	locker.held[key] = "other"
	resp := s.postJSON("/api/v1/candidates/c1/profile/generate", nil)
	assert.Equal(t, consts.StatusConflict, resp.Code)

	delete(locker.held, key)
	resp = s.postJSON("/api/v1/candidates/c1/profile/generate", nil)
	require.Equal(t, consts.StatusOK, resp.Code, string(resp.Result().Body()))
	assert.Equal(t, []string{key}, locker.released)
	assert.Empty(t, locker.held)
}

type memoryDocumentReader struct {
	docs     map[string]*models.Document
	analyses map[string]*models.DocumentAnalysis
}

func (m *memoryDocumentReader) GetDocument(_ context.Context, id string) (*models.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return d, nil
}

func (m *memoryDocumentReader) GetAnalysis(_ context.Context, id string) (*models.DocumentAnalysis, error) {
	return m.analyses[id], nil
}

func TestDocumentStatus(t *testing.T) {
	s := newTestServer(t, resumeText, nil, false)
	resp := ut.PerformRequest(s.h.Engine, consts.MethodGet, "/api/v1/documents/d1", nil)
	assert.Equal(t, consts.StatusServiceUnavailable, resp.Code, "未配置数据库时不能查询状态")

	candidateID := "c1"
	reader := &memoryDocumentReader{
		docs: map[string]*models.Document{
			"d1": {DocumentID: "d1", DocumentType: "cv", Filename: "cv.pdf", Status: models.DocumentStatusPending},
			"d2": {DocumentID: "d2", CandidateID: &candidateID, DocumentType: "cv", Filename: "cv.docx", Status: models.DocumentStatusDone},
		},
		analyses: map[string]*models.DocumentAnalysis{},
	}
	rec, err := storage.NewAnalysisRecord("d2", &types.AnalysisResult{WordCount: 42}, resumeText, nil)
	require.NoError(t, err)
	reader.analyses["d2"] = rec

	h := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, false)
	RegisterRoutes(h, Handlers{Documents: handler.NewDocumentHandler(nil, handler.WithDocumentReader(reader))})

	resp = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/documents/missing", nil)
	assert.Equal(t, consts.StatusNotFound, resp.Code)

	resp = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/documents/d1", nil)
	require.Equal(t, consts.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, "pending", body["status"])
	assert.NotContains(t, body, "result")

	resp = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/documents/d2", nil)
	require.Equal(t, consts.StatusOK, resp.Code)
	var status handler.DocumentStatusResponse
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &status))
	assert.Equal(t, "c1", status.CandidateID)
	require.NotNil(t, status.Result)
	assert.Equal(t, 42, status.Result.WordCount)
}
