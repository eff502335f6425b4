package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/binder"
)

type createRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

func TestJSON(t *testing.T) {
	t.Parallel()

	newRequest := func(contentType, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/videos", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req
	}

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSON()(newRequest("application/json; charset=utf-8", `{"title":"Launch","tags":["a"]}`), &v)
		require.NoError(t, err)
		assert.Equal(t, "Launch", v.Title)
		assert.Equal(t, []string{"a"}, v.Tags)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSON()(newRequest("", `{"title":"x"}`), &v)
		assert.ErrorIs(t, err, binder.ErrMissingContentType)
	})

	t.Run("wrong media type", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSON()(newRequest("text/plain", `{"title":"x"}`), &v)
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSON()(newRequest("application/json", `{"title":"x","tenant_id":"y"}`), &v)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("trailing data", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSON()(newRequest("application/json", `{"title":"x"} {"title":"y"}`), &v)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSON()(newRequest("application/json", ""), &v)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("body over limit", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		err := binder.JSONWithLimit(8)(newRequest("application/json", `{"title":"too long"}`), &v)
		assert.ErrorIs(t, err, binder.ErrBodyTooLarge)
	})
}

type listRequest struct {
	Status  []string `query:"status"`
	Limit   *int     `query:"limit"`
	Deleted bool     `query:"include_deleted"`
	Title   string   `json:"title"`
}

func TestQuery(t *testing.T) {
	t.Parallel()

	t.Run("binds tagged fields", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/v1/videos?status=ready,failed&status=draft&limit=5&include_deleted=yes&title=ignored", nil)
		var v listRequest
		require.NoError(t, binder.Query()(req, &v))
		assert.Equal(t, []string{"ready", "failed", "draft"}, v.Status)
		require.NotNil(t, v.Limit)
		assert.Equal(t, 5, *v.Limit)
		assert.True(t, v.Deleted)
		assert.Empty(t, v.Title)
	})

	t.Run("invalid number", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/v1/videos?limit=many", nil)
		var v listRequest
		assert.ErrorIs(t, binder.Query()(req, &v), binder.ErrFailedToParseQuery)
	})

	t.Run("non pointer target", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/v1/videos", nil)
		assert.ErrorIs(t, binder.Query()(req, listRequest{}), binder.ErrFailedToParseQuery)
	})
}

type pathRequest struct {
	ID    uuid.UUID `path:"id"`
	Title string
}

func TestPath(t *testing.T) {
	t.Parallel()

	params := func(values map[string]string) func(*http.Request, string) string {
		return func(_ *http.Request, name string) string { return values[name] }
	}

	t.Run("binds uuid", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		var v pathRequest
		err := binder.Path(params(map[string]string{"id": id.String(), "title": "x"}))(httptest.NewRequest(http.MethodGet, "/", nil), &v)
		require.NoError(t, err)
		assert.Equal(t, id, v.ID)
		assert.Empty(t, v.Title)
	})

	t.Run("invalid uuid", func(t *testing.T) {
		t.Parallel()
		var v pathRequest
		err := binder.Path(params(map[string]string{"id": "nope"}))(httptest.NewRequest(http.MethodGet, "/", nil), &v)
		assert.ErrorIs(t, err, binder.ErrFailedToParsePath)
	})

	t.Run("nil extractor", func(t *testing.T) {
		t.Parallel()
		var v pathRequest
		assert.ErrorIs(t, binder.Path(nil)(httptest.NewRequest(http.MethodGet, "/", nil), &v), binder.ErrFailedToParsePath)
	})
}
