package storage

import (
	"encoding/json"
	"fmt"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/types"
)

// NewProfileRecord 把档案编码为数据库记录
func NewProfileRecord(candidateID string, p types.CandidateProfile, method types.ExtractionMethod) (*models.Profile, error) {
	rec := &models.Profile{
		CandidateID:      candidateID,
		ExtractionMethod: string(method),
	}
	var err error
	fields := []struct {
		dst *[]byte
		v   any
	}{
		{(*[]byte)(&rec.PersonalInfo), p.PersonalInfo},
		{(*[]byte)(&rec.Education), nonNil(p.Education)},
		{(*[]byte)(&rec.Experience), nonNil(p.Experience)},
		{(*[]byte)(&rec.Skills), p.Skills},
		{(*[]byte)(&rec.Projects), nonNil(p.Projects)},
		{(*[]byte)(&rec.Certifications), nonNil(p.Certifications)},
	}
	for _, f := range fields {
		if *f.dst, err = json.Marshal(f.v); err != nil {
			return nil, fmt.Errorf("编码档案字段失败: %w", err)
		}
	}
	return rec, nil
}

// ProfileFromAnalysis 由启发式分析结果生成档案记录
func ProfileFromAnalysis(candidateID string, result *types.AnalysisResult) (*models.Profile, error) {
	return NewProfileRecord(candidateID, types.ProfileFromAnalysis(result), types.ExtractionHeuristic)
}

// DecodeProfile 把数据库记录还原为档案
func DecodeProfile(rec *models.Profile) (types.CandidateProfile, error) {
	var p types.CandidateProfile
	fields := []struct {
		src []byte
		dst any
	}{
		{rec.PersonalInfo, &p.PersonalInfo},
		{rec.Education, &p.Education},
		{rec.Experience, &p.Experience},
		{rec.Skills, &p.Skills},
		{rec.Projects, &p.Projects},
		{rec.Certifications, &p.Certifications},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return p, fmt.Errorf("解码档案字段失败: %w", err)
		}
	}
	return p, nil
}

// NewAnalysisRecord 生成分析记录；analyzeErr 非空时只记录错误信息
func NewAnalysisRecord(documentID string, result *types.AnalysisResult, rawText string, analyzeErr error) (*models.DocumentAnalysis, error) {
	rec := &models.DocumentAnalysis{DocumentID: documentID, Version: constants.AnalyzerVersion}
	if analyzeErr != nil {
		rec.Error = analyzeErr.Error()
		return rec, nil
	}
	data, err := models.ToJSON(result)
	if err != nil {
		return nil, fmt.Errorf("编码分析结果失败: %w", err)
	}
	rec.Analysis = data
	rec.RawText = rawText
	return rec, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
