package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/pkg/validator"
)

const (
	HeaderUploadOffset  = "Upload-Offset"
	HeaderUploadLength  = "Upload-Length"
	HeaderUploadExpires = "Upload-Expires"

	chunkContentType = "application/offset+octet-stream"
	maxFilenameRunes = 255
)

type openUploadRequest struct {
	ResourceID  uuid.UUID `path:"id" json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	TotalSize   int64     `json:"total_size"`
}

type uploadRequest struct {
	ID uuid.UUID `path:"id"`
}

// sessionView is the client view of a session. Offset doubles as the resume point.
type sessionView struct {
	SessionID   uuid.UUID      `json:"session_id"`
	ResourceID  uuid.UUID      `json:"resource_id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	TotalSize   int64          `json:"total_size"`
	Offset      int64          `json:"offset"`
	State       upload.State   `json:"state"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Result      *upload.Result `json:"result,omitempty"`
}

func newSessionView(s *upload.Session) sessionView {
	return sessionView{
		SessionID:   s.ID,
		ResourceID:  s.ResourceID,
		Filename:    s.Filename,
		ContentType: s.ContentType,
		TotalSize:   s.TotalSize,
		Offset:      s.Offset,
		State:       s.State,
		ExpiresAt:   s.ExpiresAt,
		Result:      s.Result,
	}
}

func sessionHeaders(s *upload.Session) []handler.JSONOption {
	opts := []handler.JSONOption{
		handler.WithJSONHeader(HeaderUploadOffset, strconv.FormatInt(s.Offset, 10)),
		handler.WithJSONHeader(HeaderUploadLength, strconv.FormatInt(s.TotalSize, 10)),
		handler.WithJSONHeader("Cache-Control", "no-store"),
	}
	if s.State == upload.StateOpen {
		opts = append(opts, handler.WithJSONHeader(HeaderUploadExpires, s.ExpiresAt.UTC().Format(http.TimeFormat)))
	}
	return opts
}

type uploadHandlers struct {
	uploads *upload.Manager
}

func (h *uploadHandlers) open(ctx Context, req openUploadRequest) handler.Response {
	if err := validator.Apply(
		validator.RequiredUUID("resource_id", req.ResourceID),
		validator.Required("filename", req.Filename),
		validator.MaxLen("filename", req.Filename, maxFilenameRunes),
		validator.Required("content_type", req.ContentType),
		validator.Positive("total_size", req.TotalSize),
	); err != nil {
		return handler.Fail(err)
	}

	sess, err := h.uploads.Open(ctx, ctx.Scope(), req.ResourceID, upload.OpenRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		TotalSize:   req.TotalSize,
	})
	if err != nil {
		return handler.Fail(err)
	}
	opts := append(sessionHeaders(sess),
		handler.WithJSONStatus(http.StatusCreated),
		handler.WithJSONHeader("Location", "/v1/uploads/"+sess.ID.String()),
	)
	return handler.JSON(newSessionView(sess), opts...)
}

// append writes the request body at the offset named by Upload-Offset.
// A mismatch answers 409 with the offset the session expects.
func (h *uploadHandlers) append(ctx Context, req uploadRequest) handler.Response {
	r := ctx.Request()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mediaType != chunkContentType && mediaType != "application/octet-stream") {
		return handler.Fail(errInvalidChunkCT)
	}
	raw := r.Header.Get(HeaderUploadOffset)
	if raw == "" {
		return handler.Fail(errMissingOffset)
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || offset < 0 {
		return handler.Fail(handler.ErrBadRequest.WithMessage("Upload-Offset must be a non-negative integer"))
	}

	sess, err := h.uploads.Append(ctx, ctx.Scope(), req.ID, offset, r.Body)
	if err != nil {
		var oe *upload.OffsetError
		if errors.As(err, &oe) {
			err = handler.WithHeader(err, HeaderUploadOffset, strconv.FormatInt(oe.Expected, 10))
		}
		return handler.Fail(err)
	}
	return handler.JSON(newSessionView(sess), sessionHeaders(sess)...)
}

func (h *uploadHandlers) status(ctx Context, req uploadRequest) handler.Response {
	sess, err := h.uploads.Status(ctx, ctx.Scope(), req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	if ctx.Request().Method == http.MethodHead {
		header := make(http.Header)
		header.Set(HeaderUploadOffset, strconv.FormatInt(sess.Offset, 10))
		header.Set(HeaderUploadLength, strconv.FormatInt(sess.TotalSize, 10))
		header.Set("Cache-Control", "no-store")
		return handler.EmptyWithHeaders(http.StatusOK, header)
	}
	return handler.JSON(newSessionView(sess), sessionHeaders(sess)...)
}

func (h *uploadHandlers) complete(ctx Context, req uploadRequest) handler.Response {
	res, err := h.uploads.Complete(ctx, ctx.Scope(), req.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(res)
}

func (h *uploadHandlers) cancel(ctx Context, req uploadRequest) handler.Response {
	if err := h.uploads.Cancel(ctx, ctx.Scope(), req.ID); err != nil {
		return handler.Fail(err)
	}
	return handler.Empty()
}
