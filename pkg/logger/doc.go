// Package logger builds *slog.Logger instances for vidkit services.
//
// New takes functional options to pick the output format, level and static
// attributes, and wraps the handler with LogHandlerDecorator so values stored
// in context.Context (tenant id, request id) land on every record written with
// a *Context logging method.
//
// The package adds LevelCritical on top of the slog levels. It is reserved for
// tenant isolation violations and ambiguous tenant resolution, and renders as
// "CRITICAL" in both JSON and text output.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "vidkit"),
//	    logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//	logger.Critical(ctx, log, "isolation violation", logger.TenantID(id))
//
// Attribute helpers in attr.go keep key names consistent across packages.
package logger
