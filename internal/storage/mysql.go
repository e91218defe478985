package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/tracing"
	"resume-analyzer-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-analyzer/storage/mysql")

var (
	// ErrCandidateNotFound 候选人不存在
	ErrCandidateNotFound = errors.New("候选人不存在")
	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New("文档不存在")
)

type spanKey struct{}

// GormTracingPlugin 为 GORM 的每次操作创建一个 client span
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册 Before/After 回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		name     string
		register func(name string, before bool, fn func(*gorm.DB)) error
	}{
		{"CREATE", "create", func(n string, before bool, fn func(*gorm.DB)) error {
			if before {
				return cb.Create().Before("gorm:create").Register(n, fn)
			}
			return cb.Create().After("gorm:create").Register(n, fn)
		}},
		{"SELECT", "query", func(n string, before bool, fn func(*gorm.DB)) error {
			if before {
				return cb.Query().Before("gorm:query").Register(n, fn)
			}
			return cb.Query().After("gorm:query").Register(n, fn)
		}},
		{"UPDATE", "update", func(n string, before bool, fn func(*gorm.DB)) error {
			if before {
				return cb.Update().Before("gorm:update").Register(n, fn)
			}
			return cb.Update().After("gorm:update").Register(n, fn)
		}},
		{"DELETE", "delete", func(n string, before bool, fn func(*gorm.DB)) error {
			if before {
				return cb.Delete().Before("gorm:delete").Register(n, fn)
			}
			return cb.Delete().After("gorm:delete").Register(n, fn)
		}},
		{"RAW", "raw", func(n string, before bool, fn func(*gorm.DB)) error {
			if before {
				return cb.Raw().Before("gorm:raw").Register(n, fn)
			}
			return cb.Raw().After("gorm:raw").Register(n, fn)
		}},
	}
	for _, h := range hooks {
		if err := h.register("otel:before_"+h.name, true, p.before(h.op)); err != nil {
			return err
		}
		if err := h.register("otel:after_"+h.name, false, p.after()); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ctx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			))
		db.Statement.Context = context.WithValue(ctx, spanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未找到记录属于正常业务分支
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// MySQL 候选人、文档、档案、问卷回答和分析结果的持久化
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 连接数据库、注册追踪插件并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectTimeoutSeconds)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Info().Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (m *MySQL) autoMigrate() error {
	silent := m.db.Session(&gorm.Session{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err := silent.AutoMigrate(
		&models.Candidate{},
		&models.Document{},
		&models.Profile{},
		&models.QuestionnaireAnswer{},
		&models.DocumentAnalysis{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回 GORM 连接
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭连接池
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// NewID 生成 UUIDv7 字符串主键
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	return id.String(), nil
}

// CreateCandidate 创建候选人，未设置 ID 时自动生成
func (m *MySQL) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if c.CandidateID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		c.CandidateID = id
	}
	if err := m.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("创建候选人失败: %w", err)
	}
	return nil
}

// GetCandidate 按 ID 查询候选人，不存在时返回 ErrCandidateNotFound
func (m *MySQL) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	err := m.db.WithContext(ctx).First(&c, "candidate_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	return &c, nil
}

// FindOrCreateCandidateByEmail 按邮箱查找候选人，找不到时用 info 创建。
// 邮箱为空时总是创建新候选人。
func (m *MySQL) FindOrCreateCandidateByEmail(ctx context.Context, email string, info types.PersonalInfo) (*models.Candidate, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.FindOrCreateCandidateByEmail",
		trace.WithAttributes(tracing.Attr("candidate.email", email)))
	defer span.End()

	var candidate *models.Candidate
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if email != "" {
			var existing models.Candidate
			err := tx.Where("email = ?", email).First(&existing).Error
			if err == nil {
				candidate = &existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("查询候选人失败: %w", err)
			}
		}

		id, err := NewID()
		if err != nil {
			return err
		}
		candidate = &models.Candidate{
			CandidateID: id,
			Name:        info.Name,
			Email:       email,
			Phone:       info.Phone,
			Location:    info.Location,
			Title:       info.Title,
			Summary:     info.Summary,
		}
		if err := tx.Create(candidate).Error; err != nil {
			return fmt.Errorf("创建候选人失败: %w", err)
		}
		span.SetAttributes(attribute.Bool("candidate.created", true))
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	span.SetAttributes(attribute.String("candidate.id", candidate.CandidateID))
	return candidate, nil
}

// SaveDocument 写入文档记录，未设置 ID 时自动生成
func (m *MySQL) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.DocumentID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		doc.DocumentID = id
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}
	if err := m.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("保存文档记录失败: %w", err)
	}
	return nil
}

// GetDocument 按 ID 查询文档，不存在时返回 ErrDocumentNotFound
func (m *MySQL) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := m.db.WithContext(ctx).First(&doc, "document_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	return &doc, nil
}

// UpdateDocumentStatus 更新文档处理状态
func (m *MySQL) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	res := m.db.WithContext(ctx).Model(&models.Document{}).Where("document_id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("更新文档状态失败: %w", res.Error)
	}
	return nil
}

// AttachDocumentToCandidate 把文档关联到候选人
func (m *MySQL) AttachDocumentToCandidate(ctx context.Context, documentID, candidateID string) error {
	return m.db.WithContext(ctx).Model(&models.Document{}).
		Where("document_id = ?", documentID).
		Update("candidate_id", candidateID).Error
}

// SaveProfile 按候选人写入档案，已存在时覆盖内容字段
func (m *MySQL) SaveProfile(ctx context.Context, p *models.Profile) error {
	if p.ProfileID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		p.ProfileID = id
	}
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "candidate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"personal_info", "education", "experience", "skills",
			"projects", "certifications", "extraction_method", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("保存档案失败: %w", err)
	}
	return nil
}

// GetProfile 查询候选人档案，不存在时返回 (nil, nil)
func (m *MySQL) GetProfile(ctx context.Context, candidateID string) (*models.Profile, error) {
	var p models.Profile
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询档案失败: %w", err)
	}
	return &p, nil
}

// SaveQuestionnaireAnswer 追加一条问卷回答
func (m *MySQL) SaveQuestionnaireAnswer(ctx context.Context, a *models.QuestionnaireAnswer) error {
	if err := m.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("保存问卷回答失败: %w", err)
	}
	return nil
}

// ListQuestionnaireAnswers 按提交顺序列出候选人的问卷回答
func (m *MySQL) ListQuestionnaireAnswers(ctx context.Context, candidateID string) ([]models.QuestionnaireAnswer, error) {
	answers := []models.QuestionnaireAnswer{}
	err := m.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("answer_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("查询问卷回答失败: %w", err)
	}
	return answers, nil
}

// SaveAnalysis 写入或覆盖文档的分析结果
func (m *MySQL) SaveAnalysis(ctx context.Context, a *models.DocumentAnalysis) error {
	if err := m.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("保存分析结果失败: %w", err)
	}
	return nil
}

// GetAnalysis 查询文档的分析记录，不存在时返回 (nil, nil)
func (m *MySQL) GetAnalysis(ctx context.Context, documentID string) (*models.DocumentAnalysis, error) {
	var a models.DocumentAnalysis
	err := m.db.WithContext(ctx).First(&a, "document_id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询分析结果失败: %w", err)
	}
	return &a, nil
}

// LatestAnalysisForCandidate 返回候选人最近一次成功的分析，不存在时返回 (nil, nil)
func (m *MySQL) LatestAnalysisForCandidate(ctx context.Context, candidateID string) (*models.DocumentAnalysis, error) {
	var a models.DocumentAnalysis
	err := m.db.WithContext(ctx).
		Joins("JOIN documents ON documents.document_id = document_analyses.document_id").
		Where("documents.candidate_id = ? AND document_analyses.error = ''", candidateID).
		Order("document_analyses.updated_at DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询分析结果失败: %w", err)
	}
	return &a, nil
}
