package processing

import (
	"context"
	"fmt"
	"time"
)

// Config selects and tunes the processing provider.
type Config struct {
	Backend          string        `env:"PROCESSING_BACKEND" envDefault:"memory"`
	Timeout          time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"2m"`
	StaleAfter       time.Duration `env:"PROCESSING_STALE_AFTER" envDefault:"30m"`
	FailureThreshold int           `env:"PROCESSING_BREAKER_FAILURES" envDefault:"5"`
	RecoveryTimeout  time.Duration `env:"PROCESSING_BREAKER_RECOVERY" envDefault:"30s"`
	WebhookSecret    string        `env:"PROCESSING_WEBHOOK_SECRET"`
	WebhookMaxAge    time.Duration `env:"PROCESSING_WEBHOOK_MAX_AGE" envDefault:"5m"`

	S3       S3Config
	Minio    MinioConfig
	Consumer ConsumerConfig
}

// NewProvider builds the provider named by cfg.Backend.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Provider(ctx, cfg.S3)
	case "minio":
		return NewMinioProvider(ctx, cfg.Minio)
	case "memory", "":
		return NewMemoryProvider(true), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
