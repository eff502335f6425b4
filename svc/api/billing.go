package api

import (
	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/svc/billing"
)

type usageRequest struct {
	// Period is a prefix of the hourly period key, e.g. "2026-05" or "2026-05-04".
	Period string `query:"period"`
}

type billingHandlers struct {
	usage    *billing.UsageAggregator
	invoicer *billing.Invoicer
}

func (h *billingHandlers) listUsage(ctx Context, req usageRequest) handler.Response {
	rows, err := h.usage.Usage(ctx, ctx.Scope(), req.Period)
	if err != nil {
		return handler.Fail(err)
	}
	if rows == nil {
		rows = []*billing.Usage{}
	}
	return handler.JSON(rows)
}

func (h *billingHandlers) listInvoices(ctx Context, _ struct{}) handler.Response {
	rows, err := h.invoicer.Invoices(ctx, ctx.Scope())
	if err != nil {
		return handler.Fail(err)
	}
	if rows == nil {
		rows = []*billing.Invoice{}
	}
	return handler.JSON(rows)
}
