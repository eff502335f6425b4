package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/video"
	"github.com/dmitrymomot/vidkit/svc/media"
)

type completionAck struct {
	ResourceID string       `json:"resource_id"`
	Status     video.Status `json:"status"`
	Ignored    bool         `json:"ignored"`
}

type webhookHandlers struct {
	signer  *processing.Signer
	applier *media.Applier
	maxBody int64
	log     *slog.Logger
}

// processing verifies and applies a provider callback. The tenant comes from
// the signed body; the request host plays no part. Terminal failures answer
// 422 so providers stop redelivering, transient ones 503.
func (h *webhookHandlers) processing(ctx Context, _ struct{}) handler.Response {
	r := ctx.Request()
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		return handler.Fail(handler.ErrBadRequest.WithMessage("failed to read body"))
	}
	if int64(len(body)) > h.maxBody {
		return handler.Fail(handler.ErrRequestEntityTooLarge)
	}

	if err := h.signer.Verify(body, r.Header.Get(processing.SignatureHeader), r.Header.Get(processing.TimestampHeader)); err != nil {
		return handler.Fail(err)
	}
	c, err := processing.DecodeCompletion(body)
	if err != nil {
		return handler.Fail(err)
	}

	out, err := h.applier.Apply(ctx, c)
	if err != nil {
		h.log.WarnContext(ctx, "processing callback not applied",
			logger.TenantID(c.TenantID),
			logger.ResourceID(c.ResourceID),
			slog.String("kind", string(processing.KindOf(err))),
			logger.Error(err),
		)
		if processing.IsTerminal(err) {
			return handler.Fail(fmt.Errorf("%w: %v", errProviderRefused, err))
		}
		return handler.Fail(fmt.Errorf("%w: %v", errProviderRetry, err))
	}
	return handler.JSON(completionAck{
		ResourceID: c.ResourceID.String(),
		Status:     out.To,
		Ignored:    out.Ignored,
	}, handler.WithJSONStatus(http.StatusOK))
}
