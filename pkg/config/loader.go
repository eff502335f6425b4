// Package config fills configuration structs from the process environment.
//
// Struct fields are mapped with caarlos0/env tags. Dotenv files are applied
// once per process before the first parse, values already present in the
// environment take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

type options struct {
	prefix string
	files  []string
	env    map[string]string
}

// Option adjusts a single Load call.
type Option func(*options)

// WithPrefix prepends prefix to every env key of the target struct.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvFiles sets the dotenv files read before the first Load. Defaults to ".env".
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.files = files }
}

// WithEnvironment parses from the given map instead of os.Environ.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) { o.env = vars }
}

// Load parses the environment into a new T.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//	cfg, err := config.Load[Config]()
func Load[T any](opts ...Option) (T, error) {
	o := options{files: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.env == nil {
		dotenvOnce.Do(func() {
			// missing dotenv files are fine outside development
			_ = godotenv.Load(o.files...)
		})
	}

	var cfg T
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      o.prefix,
		Environment: o.env,
	}); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics on error.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}
