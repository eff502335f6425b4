package processing

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures MinioProvider.
type MinioConfig struct {
	Endpoint    string `env:"PROCESSING_MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey   string `env:"PROCESSING_MINIO_ACCESS_KEY"`
	SecretKey   string `env:"PROCESSING_MINIO_SECRET_KEY"`
	Bucket      string `env:"PROCESSING_MINIO_BUCKET" envDefault:"vidkit"`
	UseSSL      bool   `env:"PROCESSING_MINIO_USE_SSL" envDefault:"false"`
	SkipDerived bool   `env:"PROCESSING_SKIP_DERIVED" envDefault:"false"`
}

// MinioProvider stores source files in a MinIO bucket.
type MinioProvider struct {
	client      *minio.Client
	bucket      string
	skipDerived bool
}

// NewMinioClient builds a client with static credentials.
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

// EnsureBucket creates bucket when it does not exist.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

// NewMinioProvider connects to MinIO and makes sure the bucket exists.
func NewMinioProvider(ctx context.Context, cfg MinioConfig) (*MinioProvider, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: endpoint and bucket are required", ErrInvalidConfig)
	}
	client, err := NewMinioClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	if err := EnsureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket %q: %w", cfg.Bucket, err)
	}
	return &MinioProvider{client: client, bucket: cfg.Bucket, skipDerived: cfg.SkipDerived}, nil
}

func (p *MinioProvider) Submit(ctx context.Context, a Asset) (Handoff, error) {
	if err := a.Validate(); err != nil {
		return Handoff{}, Classify("submit", err)
	}
	_, err := p.client.PutObject(ctx, p.bucket, a.Key(), a.Body, a.Size, minio.PutObjectOptions{
		ContentType: a.ContentType,
		UserMetadata: map[string]string{
			"tenant-id":   a.TenantID.String(),
			"resource-id": a.ResourceID.String(),
		},
	})
	if err != nil {
		return Handoff{}, Classify("submit", err)
	}
	return Handoff{
		StoragePointer: Pointer("minio", p.bucket, a.Key()),
		PreviewPointer: Pointer("minio", p.bucket, a.PreviewKey()),
		AssetsComplete: p.skipDerived,
	}, nil
}

func (p *MinioProvider) Confirm(ctx context.Context, h Handoff) (bool, error) {
	if h.PreviewPointer == "" {
		return true, nil
	}
	bucket, key, ok := ParsePointer(h.PreviewPointer)
	if !ok {
		return false, Classify("confirm", fmt.Errorf("%w: preview pointer %q", ErrInvalidAsset, h.PreviewPointer))
	}
	_, err := p.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, Classify("confirm", err)
}

// Healthcheck verifies the bucket is reachable.
func (p *MinioProvider) Healthcheck(ctx context.Context) error {
	_, err := p.client.BucketExists(ctx, p.bucket)
	return err
}
