package processing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by S3Provider.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config configures S3Provider.
type S3Config struct {
	Bucket         string `env:"PROCESSING_S3_BUCKET"`
	Region         string `env:"PROCESSING_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"PROCESSING_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"PROCESSING_S3_SECRET_ACCESS_KEY"`
	Endpoint       string `env:"PROCESSING_S3_ENDPOINT"`
	ForcePathStyle bool   `env:"PROCESSING_S3_FORCE_PATH_STYLE" envDefault:"false"`
	// SkipDerived reports assets complete right after upload, for buckets
	// without a transcoding pipeline.
	SkipDerived bool `env:"PROCESSING_SKIP_DERIVED" envDefault:"false"`
}

type S3Option func(*s3Options)

type s3Options struct {
	httpClient *http.Client
	client     S3Client
}

// WithS3Client sets a pre-configured client. Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.client = client }
}

func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) { o.httpClient = client }
}

// S3Provider stores source files in an S3 bucket. Derived assets are produced
// out of band by the bucket's transcoding pipeline and detected with Confirm.
type S3Provider struct {
	client      S3Client
	bucket      string
	skipDerived bool
}

func NewS3Provider(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Provider, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrInvalidConfig)
	}

	o := &s3Options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		if o.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(o.httpClient))
		}

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = s3.NewFromConfig(awsConfig, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Provider{client: client, bucket: cfg.Bucket, skipDerived: cfg.SkipDerived}, nil
}

func (p *S3Provider) Submit(ctx context.Context, a Asset) (Handoff, error) {
	if err := a.Validate(); err != nil {
		return Handoff{}, Classify("submit", err)
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(a.Key()),
		Body:          a.Body,
		ContentLength: aws.Int64(a.Size),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"tenant-id":   a.TenantID.String(),
			"resource-id": a.ResourceID.String(),
		},
	})
	if err != nil {
		return Handoff{}, Classify("submit", err)
	}

	return Handoff{
		StoragePointer: Pointer("s3", p.bucket, a.Key()),
		PreviewPointer: Pointer("s3", p.bucket, a.PreviewKey()),
		AssetsComplete: p.skipDerived,
	}, nil
}

func (p *S3Provider) Confirm(ctx context.Context, h Handoff) (bool, error) {
	if h.PreviewPointer == "" {
		return true, nil
	}
	bucket, key, ok := ParsePointer(h.PreviewPointer)
	if !ok {
		return false, Classify("confirm", fmt.Errorf("%w: preview pointer %q", ErrInvalidAsset, h.PreviewPointer))
	}

	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, Classify("confirm", err)
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nk *types.NoSuchKey
	if errors.As(err, &nk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}
