package storage

import (
	"encoding/json"
	"fmt"
)

// AnalysisTask 异步分析任务消息
type AnalysisTask struct {
	DocumentID   string `json:"document_id"`
	ObjectKey    string `json:"object_key"`
	Filename     string `json:"filename"`
	MD5          string `json:"md5"`
	DocumentType string `json:"document_type,omitempty"`
	// CandidateEmail 上传时指定的候选人邮箱，为空时使用文档中提取的邮箱
	CandidateEmail string `json:"candidate_email,omitempty"`
}

// DecodeAnalysisTask 解析并校验任务消息
func DecodeAnalysisTask(body []byte) (AnalysisTask, error) {
	var task AnalysisTask
	if err := json.Unmarshal(body, &task); err != nil {
		return task, fmt.Errorf("解析分析任务失败: %w", err)
	}
	if task.DocumentID == "" || task.ObjectKey == "" {
		return task, fmt.Errorf("分析任务缺少 document_id 或 object_key")
	}
	return task, nil
}
