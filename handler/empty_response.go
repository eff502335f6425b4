package handler

import "net/http"

type emptyResponse struct {
	status int
	header http.Header
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, v := range e.header {
		w.Header()[k] = v
	}
	w.WriteHeader(e.status)
	return nil
}

// Empty creates an empty response with status 204 (No Content).
func Empty() Response {
	return emptyResponse{status: http.StatusNoContent}
}

// EmptyWithStatus creates an empty response with a custom status code.
func EmptyWithStatus(status int) Response {
	return emptyResponse{status: status}
}

// EmptyWithHeaders creates a body-less response that only carries headers,
// such as a HEAD reply.
func EmptyWithHeaders(status int, header http.Header) Response {
	return emptyResponse{status: status, header: header}
}

type failResponse struct{ err error }

func (f failResponse) Render(http.ResponseWriter, *http.Request) error { return f.err }

// Fail hands err to the error handler configured in Wrap. Handlers return it
// instead of rendering errors themselves so status mapping stays in one place.
func Fail(err error) Response {
	if err == nil {
		err = ErrInternalServerError
	}
	return failResponse{err: err}
}
