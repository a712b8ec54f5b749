// Package archive stores finished reports as JSON objects in S3-compatible
// storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/burn-severity-service/internal/config"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

const contentTypeJSON = "application/json"

// MinioArchiver writes each report to reports/{yyyy}/{mm}/{id}.json.
// It implements pipeline.ReportSink.
type MinioArchiver struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinioArchiver connects to the configured endpoint and creates the
// archive bucket when it does not exist yet.
func NewMinioArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*MinioArchiver, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	a := &MinioArchiver{client: client, bucket: cfg.ArchiveBucket, logger: logger}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *MinioArchiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	a.logger.Info("created archive bucket", "bucket", a.bucket)
	return nil
}

func (a *MinioArchiver) Name() string { return "minio" }

// Deliver uploads the report.
func (a *MinioArchiver) Deliver(ctx context.Context, r *domain.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}
	key := ObjectKey(r)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeJSON,
		UserMetadata: map[string]string{
			"fingerprint": r.Fingerprint,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	a.logger.Debug("report archived", "report_id", r.ID, "bucket", a.bucket, "key", key)
	return nil
}

// CheckReadiness verifies the bucket is reachable.
func (a *MinioArchiver) CheckReadiness(ctx context.Context) error {
	if _, err := a.client.BucketExists(ctx, a.bucket); err != nil {
		return fmt.Errorf("archive bucket %s: %w", a.bucket, err)
	}
	return nil
}

// ObjectKey returns the object path of a report, partitioned by the UTC
// month it was generated in.
func ObjectKey(r *domain.Report) string {
	t := r.GeneratedAt.UTC()
	return fmt.Sprintf("reports/%04d/%02d/%s.json", t.Year(), int(t.Month()), r.ID)
}
