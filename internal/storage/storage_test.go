package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/types"
)

// fakeBackend 记录写入并按需返回结果
type fakeBackend struct {
	stored map[string]*types.AnalysisResult
	gets   int
	err    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{stored: map[string]*types.AnalysisResult{}}
}

func (f *fakeBackend) GetCachedAnalysis(_ context.Context, md5Hex string) (*types.AnalysisResult, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.stored[md5Hex]; ok {
		return r, nil
	}
	return nil, ErrCacheMiss
}

func (f *fakeBackend) CacheAnalysis(_ context.Context, md5Hex string, result *types.AnalysisResult, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.stored[md5Hex] = result
	return nil
}

func TestAnalysisCacheLocalOnly(t *testing.T) {
	cache, err := NewAnalysisCache(2, time.Hour, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "a", &types.AnalysisResult{WordCount: 1}))
	require.NoError(t, cache.Put(ctx, "b", &types.AnalysisResult{WordCount: 2}))
	require.NoError(t, cache.Put(ctx, "c", &types.AnalysisResult{WordCount: 3}))

	_, ok = cache.Get(ctx, "a")
	assert.False(t, ok, "超过容量后最旧的条目应被淘汰")
	got, ok := cache.Get(ctx, "c")
	require.True(t, ok)
	assert.Equal(t, 3, got.WordCount)
	assert.Equal(t, 2, cache.Len())

	assert.NoError(t, cache.Put(ctx, "nil", nil))
	assert.Equal(t, 2, cache.Len())
}

func TestAnalysisCacheRemoteFill(t *testing.T) {
	remote := newFakeBackend()
	remote.stored["md5"] = &types.AnalysisResult{WordCount: 7}
	cache, err := NewAnalysisCache(4, time.Hour, remote)
	require.NoError(t, err)
	ctx := context.Background()

	got, ok := cache.Get(ctx, "md5")
	require.True(t, ok)
	assert.Equal(t, 7, got.WordCount)

	_, ok = cache.Get(ctx, "md5")
	require.True(t, ok)
	assert.Equal(t, 1, remote.gets, "第二次读取应命中本地缓存")

	require.NoError(t, cache.Put(ctx, "other", &types.AnalysisResult{WordCount: 9}))
	assert.Contains(t, remote.stored, "other")
}

func TestAnalysisCacheRemoteError(t *testing.T) {
	remote := newFakeBackend()
	remote.err = errors.New("connection refused")
	cache, err := NewAnalysisCache(4, time.Hour, remote)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "md5")
	assert.False(t, ok)

	assert.Error(t, cache.Put(ctx, "md5", &types.AnalysisResult{}))
	_, ok = cache.Get(ctx, "md5")
	assert.True(t, ok, "远程写入失败时本地缓存仍然生效")
}

func TestProfileRecordRoundTrip(t *testing.T) {
	result := &types.AnalysisResult{
		Skills:      types.SkillSet{Technical: []string{"Python"}, Soft: []string{}, Tools: []string{"Jira"}},
		Experience:  types.NewExperienceInfo(),
		Education:   types.EducationInfo{Degrees: []string{"PhD"}, Institutions: []string{}, Years: []string{}},
		ContactInfo: types.ContactInfo{Email: "a@b.com"},
	}

	rec, err := ProfileFromAnalysis("cand-1", result)
	require.NoError(t, err)
	assert.Equal(t, "cand-1", rec.CandidateID)
	assert.Equal(t, string(types.ExtractionHeuristic), rec.ExtractionMethod)
	assert.JSONEq(t, `[]`, string(rec.Projects))
	assert.JSONEq(t, `[]`, string(rec.Certifications))

	profile, err := DecodeProfile(rec)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", profile.PersonalInfo.Email)
	assert.Equal(t, []string{"Python", "Jira"}, profile.Skills.Technical)
	assert.Equal(t, []types.EducationEntry{{Degree: "PhD"}}, profile.Education)
}

func TestNewAnalysisRecord(t *testing.T) {
	rec, err := NewAnalysisRecord("doc-1", &types.AnalysisResult{WordCount: 3}, "raw text", nil)
	require.NoError(t, err)
	assert.Equal(t, "raw text", rec.RawText)
	assert.Contains(t, string(rec.Analysis), `"word_count":3`)
	assert.Empty(t, rec.Error)
	assert.Equal(t, constants.AnalyzerVersion, rec.Version)

	rec, err = NewAnalysisRecord("doc-1", nil, "", errors.New("文件不存在"))
	require.NoError(t, err)
	assert.Equal(t, "文件不存在", rec.Error)
	assert.Nil(t, rec.Analysis)
}

func TestDecodeAnalysisTask(t *testing.T) {
	task, err := DecodeAnalysisTask([]byte(`{"document_id":"d1","object_key":"documents/d1/original.pdf","filename":"cv.pdf","md5":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", task.Filename)

	_, err = DecodeAnalysisTask([]byte(`{"document_id":"d1"}`))
	assert.Error(t, err)
	_, err = DecodeAnalysisTask([]byte(`not json`))
	assert.Error(t, err)
}

func TestDocumentObjectKey(t *testing.T) {
	assert.Equal(t, "documents/d1/original.pdf", DocumentObjectKey("d1", "My CV.PDF"))
	assert.Equal(t, "documents/d1/original", DocumentObjectKey("d1", "noext"))
	assert.Equal(t, "application/pdf", ContentTypeFor("x.pdf"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("x.bin"))
}

func TestInFlightKey(t *testing.T) {
	a := InFlightKey("aaa")
	b := InFlightKey("bbb")
	assert.Equal(t, "app:analysis:inflight:aaa", a)
	assert.NotEqual(t, a, b, "每个文件单独占位，各自过期")
}

func TestNewID(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
