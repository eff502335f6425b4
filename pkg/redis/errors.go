package redis

import "errors"

var (
	ErrInvalidURL        = errors.New("redis: invalid connection url")
	ErrNotReady          = errors.New("redis: server did not answer before the connect timeout")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
