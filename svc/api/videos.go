package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/validator"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

const maxTitleLength = 200

type createVideoRequest struct {
	Title string `json:"title"`
}

type videoRequest struct {
	ID uuid.UUID `path:"id"`
}

type listVideosRequest struct {
	Status         []video.Status `query:"status"`
	IncludeDeleted bool           `query:"include_deleted"`
}

type videoHandlers struct {
	videos *video.Lifecycle
}

func (h *videoHandlers) create(ctx Context, req createVideoRequest) handler.Response {
	if err := validator.Apply(
		validator.Required("title", req.Title),
		validator.MaxLen("title", req.Title, maxTitleLength),
	); err != nil {
		return handler.Fail(err)
	}
	v, err := h.videos.Create(ctx, ctx.Scope(), req.Title)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(v, handler.WithJSONStatus(http.StatusCreated))
}

func (h *videoHandlers) list(ctx Context, req listVideosRequest) handler.Response {
	vs, err := h.videos.List(ctx, ctx.Scope(), video.Filter{
		Statuses:       req.Status,
		IncludeDeleted: req.IncludeDeleted,
	})
	if err != nil {
		return handler.Fail(err)
	}
	if vs == nil {
		vs = []*video.Resource{}
	}
	return handler.JSON(vs, handler.WithJSONMeta(map[string]any{"count": len(vs)}))
}

func (h *videoHandlers) get(ctx Context, req videoRequest) handler.Response {
	v, err := h.videos.Get(ctx, ctx.Scope(), req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(v)
}

func (h *videoHandlers) delete(ctx Context, req videoRequest) handler.Response {
	if _, err := h.videos.Delete(ctx, ctx.Scope(), req.ID); err != nil {
		return handler.Fail(err)
	}
	return handler.Empty()
}

func (h *videoHandlers) retry(ctx Context, req videoRequest) handler.Response {
	v, err := h.videos.Retry(ctx, ctx.Scope(), req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(v, handler.WithJSONStatus(http.StatusCreated))
}
