package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 文档处理状态
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusDone       = "done"
	DocumentStatusFailed     = "failed"
)

// Candidate 候选人主表
type Candidate struct {
	CandidateID string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	Email       string    `gorm:"type:varchar(255);index:idx_candidates_email" json:"email"`
	Phone       string    `gorm:"type:varchar(50);index:idx_candidates_phone" json:"phone"`
	Location    string    `gorm:"type:varchar(255)" json:"location"`
	Title       string    `gorm:"type:varchar(255)" json:"title"`
	Summary     string    `gorm:"type:text" json:"summary"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Document 上传的文档记录，FilePath 为对象存储中的键
type Document struct {
	DocumentID   string    `gorm:"type:char(36);primaryKey" json:"id"`
	CandidateID  *string   `gorm:"type:char(36);index:idx_documents_candidate_id" json:"candidate_id,omitempty"`
	DocumentType string    `gorm:"type:varchar(50);not null" json:"document_type"`
	Filename     string    `gorm:"type:varchar(255)" json:"filename"`
	FilePath     string    `gorm:"type:varchar(1024)" json:"file_path"`
	FileSize     int64     `json:"file_size"`
	FileMD5      string    `gorm:"type:char(32);index:idx_documents_file_md5" json:"file_md5"`
	Status       string    `gorm:"type:varchar(20);default:'pending';index:idx_documents_status" json:"status"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}

// Profile 候选人结构化档案，每个候选人一条
type Profile struct {
	ProfileID        string         `gorm:"type:char(36);primaryKey" json:"id"`
	CandidateID      string         `gorm:"type:char(36);not null;uniqueIndex:idx_profiles_candidate_id" json:"candidate_id"`
	PersonalInfo     datatypes.JSON `gorm:"type:json" json:"personal_info"`
	Education        datatypes.JSON `gorm:"type:json" json:"education"`
	Experience       datatypes.JSON `gorm:"type:json" json:"experience"`
	Skills           datatypes.JSON `gorm:"type:json" json:"skills"`
	Projects         datatypes.JSON `gorm:"type:json" json:"projects"`
	Certifications   datatypes.JSON `gorm:"type:json" json:"certifications"`
	ExtractionMethod string         `gorm:"type:varchar(20);not null" json:"extraction_method"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// QuestionnaireAnswer 候选人问卷回答
type QuestionnaireAnswer struct {
	AnswerID    uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID string    `gorm:"type:char(36);not null;index:idx_qa_candidate_id" json:"candidate_id"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	Answer      string    `gorm:"type:text" json:"answer"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
}

func (QuestionnaireAnswer) TableName() string {
	return "questionnaire_answers"
}

// DocumentAnalysis 单个文档的分析结果；失败时 Error 非空且 Analysis 为空
type DocumentAnalysis struct {
	DocumentID string         `gorm:"type:char(36);primaryKey" json:"document_id"`
	Analysis   datatypes.JSON `gorm:"type:json" json:"analysis"`
	RawText    string         `gorm:"type:mediumtext" json:"-"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	// Version 生成结果的规则版本
	Version   string    `gorm:"column:analyzer_version;type:varchar(16)" json:"analyzer_version"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`

	Document *Document `gorm:"foreignKey:DocumentID;references:DocumentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (DocumentAnalysis) TableName() string {
	return "document_analyses"
}

// ToJSON 把任意值编码为 datatypes.JSON，nil 编码为 null
func ToJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
