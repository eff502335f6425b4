// Package handler provides typed JSON handlers on top of net/http.
//
// A HandlerFunc receives a request struct filled by binders and returns a
// Response. Wrap turns it into an http.HandlerFunc:
//
//	type GetVideoRequest struct {
//		ID uuid.UUID `path:"id"`
//	}
//
//	r.Get("/v1/videos/{id}", handler.Wrap(getVideo,
//		handler.WithBinders[handler.Context, GetVideoRequest](binder.Path(chi.URLParam)),
//		handler.WithErrorHandler[handler.Context, GetVideoRequest](errorHandler),
//	))
//
// Successful responses use the envelope {"data": ..., "meta": ...}; errors use
// {"error": {"code", "message", "details"}}. Handlers report failures with
// Fail(err), which routes the error through the configured ErrorHandler so
// every route maps domain errors to statuses the same way.
//
// Custom contexts are supported with WithContextFactory, letting services add
// request-scoped accessors next to Request and ResponseWriter.
package handler
