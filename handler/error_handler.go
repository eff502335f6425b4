package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/validator"
)

// ErrorMapper translates domain errors into HTTP errors. It returns false for
// errors it does not know.
type ErrorMapper func(err error) (HTTPError, bool)

type ErrorHandlerOption func(*errorHandlerConfig)

type errorHandlerConfig struct {
	mappers []ErrorMapper
}

func WithErrorMapper(m ErrorMapper) ErrorHandlerOption {
	return func(c *errorHandlerConfig) {
		if m != nil {
			c.mappers = append(c.mappers, m)
		}
	}
}

// determineLogLevel maps HTTP status codes to appropriate log levels
func determineLogLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return slog.LevelError
	case statusCode >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewErrorHandler logs err and renders it as a JSON error body. Mappers run
// in order; the first match decides the status. Headers carried by a
// HeaderError are kept.
func NewErrorHandler[C Context](log *slog.Logger, opts ...ErrorHandlerOption) ErrorHandler[C] {
	if log == nil {
		log = slog.Default()
	}
	cfg := &errorHandlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx C, err error) {
		r := ctx.Request()
		mapped := mapError(err, cfg.mappers)
		status := StatusOf(mapped)

		log.LogAttrs(r.Context(), determineLogLevel(status), "request error",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := JSONError(mapped).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.WarnContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}

// mapError keeps the header chain of err while replacing its classification.
func mapError(err error, mappers []ErrorMapper) error {
	var httpErr HTTPError
	if errors.As(err, &httpErr) || validator.IsValidationError(err) {
		return err
	}
	for _, m := range mappers {
		if httpErr, ok := m(err); ok {
			var he HeaderError
			if errors.As(err, &he) {
				return &headerError{err: httpErr, header: he.Header()}
			}
			return httpErr
		}
	}
	return err
}
