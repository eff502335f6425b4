package upload

import "time"

type Config struct {
	TempDir      string        `env:"UPLOAD_TEMP_DIR" envDefault:"/tmp/vidkit-uploads"`
	IdleTimeout  time.Duration `env:"UPLOAD_IDLE_TIMEOUT" envDefault:"30m"`
	MaxSize      int64         `env:"UPLOAD_MAX_SIZE" envDefault:"10737418240"`
	MaxChunkSize int64         `env:"UPLOAD_MAX_CHUNK_SIZE" envDefault:"67108864"`
}

// DefaultConfig matches the env defaults.
func DefaultConfig() Config {
	return Config{
		TempDir:      "/tmp/vidkit-uploads",
		IdleTimeout:  30 * time.Minute,
		MaxSize:      10 << 30,
		MaxChunkSize: 64 << 20,
	}
}
