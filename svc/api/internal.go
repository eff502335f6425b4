package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
)

type jobRequest struct {
	Name string `path:"name"`
}

type jobHandlers struct {
	scheduler *jobs.Scheduler
}

func (h *jobHandlers) list(ctx Context, _ struct{}) handler.Response {
	return handler.JSON(h.scheduler.Jobs(ctx))
}

// run triggers a job immediately and waits for its report.
func (h *jobHandlers) run(ctx Context, req jobRequest) handler.Response {
	report, err := h.scheduler.Trigger(ctx, req.Name)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(report)
}

// requireToken guards operator routes with a static bearer token.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="vidkit-internal"`)
				_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
