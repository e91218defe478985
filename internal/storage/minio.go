package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/tracing"
)

var minioTracer = otel.Tracer("resume-analyzer/storage/minio")

// MinIO 保存上传的原始文档
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO 创建客户端并确保存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{client: client, bucket: cfg.BucketName}
	exists, err := client.BucketExists(ctx, m.bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", m.bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("创建存储桶 %s 失败: %w", m.bucket, err)
		}
		logger.Info().Str("bucket", m.bucket).Msg("MinIO存储桶已创建")
	}
	return m, nil
}

// DocumentObjectKey 文档在存储桶中的键: documents/{documentID}/original{ext}
func DocumentObjectKey(documentID, filename string) string {
	return path.Join("documents", documentID, "original"+strings.ToLower(path.Ext(filename)))
}

// UploadDocument 上传文档，size 未知时传 -1
func (m *MinIO) UploadDocument(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadDocument",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("minio.bucket", m.bucket),
			attribute.String("minio.object_key", tracing.SafeObjectKey(objectKey)),
			attribute.Int64("minio.size", size),
		))
	defer span.End()

	if contentType == "" {
		contentType = ContentTypeFor(objectKey)
	}
	if _, err := m.client.PutObject(ctx, m.bucket, objectKey, reader, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	return nil
}

// DownloadToFile 把对象下载到本地路径
func (m *MinIO) DownloadToFile(ctx context.Context, objectKey, filePath string) error {
	ctx, span := minioTracer.Start(ctx, "MinIO.DownloadToFile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("minio.bucket", m.bucket),
			attribute.String("minio.object_key", tracing.SafeObjectKey(objectKey)),
		))
	defer span.End()

	if err := m.client.FGetObject(ctx, m.bucket, objectKey, filePath, minio.GetObjectOptions{}); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("下载对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	return nil
}

// ContentTypeFor 按扩展名返回内容类型
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
