// Package binder fills typed request structs from HTTP requests.
//
// Each binder handles one source and only touches fields tagged for it, so
// binders can be chained on the same struct:
//
//		type AppendRequest struct {
//			ID     uuid.UUID `path:"id"`
//			Expand bool      `query:"expand"`
//		}
//
//	  - JSON(): strict application/json body, unknown fields rejected
//	  - Query(): `query` tags from the URL query string
//	  - Path(extractor): `path` tags from router parameters
//
// Supported field types are strings, numbers, bools, their pointers and
// slices, and any type implementing encoding.TextUnmarshaler such as
// uuid.UUID.
//
// Errors wrap ErrUnsupportedMediaType, ErrMissingContentType, ErrBodyTooLarge,
// ErrFailedToParseJSON, ErrFailedToParseQuery or ErrFailedToParsePath.
package binder
