package processor

import (
	"context"
	"io"

	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/types"
)

// Analyzer 文档分析器，*DocumentAnalyzer 是默认实现
type Analyzer interface {
	Analyze(ctx context.Context, filePath string) (*types.AnalysisResult, error)
	AnalyzeWithText(ctx context.Context, filePath string) (*types.AnalysisResult, string, error)
}

//
// 存储相关接口，*storage.MySQL / *storage.MinIO / *storage.RabbitMQ / *storage.Redis 实现
//

// DocumentStore 文档、候选人、档案与分析结果的持久化
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	UpdateDocumentStatus(ctx context.Context, id, status string) error
	AttachDocumentToCandidate(ctx context.Context, documentID, candidateID string) error
	FindOrCreateCandidateByEmail(ctx context.Context, email string, info types.PersonalInfo) (*models.Candidate, error)
	GetProfile(ctx context.Context, candidateID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
	SaveAnalysis(ctx context.Context, a *models.DocumentAnalysis) error
}

// ObjectStore 原始文件存储
type ObjectStore interface {
	UploadDocument(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	DownloadToFile(ctx context.Context, objectKey, filePath string) error
}

// TaskPublisher 发布异步分析任务
type TaskPublisher interface {
	PublishAnalysisTask(ctx context.Context, task storage.AnalysisTask) error
}

// ResultCache 按文件MD5缓存分析结果
type ResultCache interface {
	Get(ctx context.Context, md5Hex string) (*types.AnalysisResult, bool)
	Put(ctx context.Context, md5Hex string, result *types.AnalysisResult) error
}

// InFlightTracker 记录正在分析的文件，避免重复提交
type InFlightTracker interface {
	MarkInFlight(ctx context.Context, md5Hex string) (bool, error)
	ClearInFlight(ctx context.Context, md5Hex string) error
}

var (
	_ Analyzer        = (*DocumentAnalyzer)(nil)
	_ DocumentStore   = (*storage.MySQL)(nil)
	_ ObjectStore     = (*storage.MinIO)(nil)
	_ TaskPublisher   = (*storage.RabbitMQ)(nil)
	_ ResultCache     = (*storage.AnalysisCache)(nil)
	_ InFlightTracker = (*storage.Redis)(nil)
)
