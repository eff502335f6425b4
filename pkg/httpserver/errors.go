package httpserver

import "errors"

var (
	ErrListen   = errors.New("httpserver: failed to listen")
	ErrServe    = errors.New("httpserver: server stopped unexpectedly")
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
