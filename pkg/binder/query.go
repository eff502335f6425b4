package binder

import "net/http"

// Query binds `query` tagged fields from the URL query string.
// Slices accept repeated keys and comma separated values.
//
//	type ListVideosRequest struct {
//		Status []string `query:"status"`
//		Deleted bool    `query:"include_deleted"`
//	}
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
