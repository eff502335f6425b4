package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/vidkit/pkg/auth"
	"github.com/dmitrymomot/vidkit/pkg/config"
	"github.com/dmitrymomot/vidkit/pkg/httpserver"
	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/metrics"
	"github.com/dmitrymomot/vidkit/pkg/permission"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/redis"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/pkg/video"
	"github.com/dmitrymomot/vidkit/svc/api"
	"github.com/dmitrymomot/vidkit/svc/billing"
	"github.com/dmitrymomot/vidkit/svc/media"
)

func main() {
	cfg := config.MustLoad[Config]()

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "vidkit"),
		logger.WithContextExtractors(tenant.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		logger.Critical(ctx, log, "vidkit stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("vidkit stopped")
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	gwOpts := []isolation.Option{
		isolation.WithLogger(log),
		isolation.WithGlobal(permission.TableName),
	}
	if m != nil {
		gwOpts = append(gwOpts, isolation.WithViolationHook(m.ObserveViolation))
	}
	g := isolation.New(gwOpts...)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	ready := st.ready
	var (
		locker jobs.Locker
		cache  = tenant.NewMemoryCache(cfg.Tenant.CacheSize)
	)
	if cfg.RedisEnabled {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		redisCache, redisLocker := redisBackends(client, cfg.Redis.KeyPrefix, log)
		cache, locker = redisCache, redisLocker
		ready = append(ready, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	}
	dir := cachedDirectory(ctx, st.dir, cache, cfg.Tenant.CacheTTL, st.seeded)

	catalog, err := permission.NewCatalog(g, st.permissions)
	if err != nil {
		return err
	}
	authz, err := permission.NewAuthorizer(ctx, permission.DefaultRoles(), catalog)
	if err != nil {
		return err
	}
	tokens, err := auth.NewService(cfg.Auth)
	if err != nil {
		return err
	}

	videoOpts := []video.Option{video.WithLogger(log)}
	if m != nil {
		videoOpts = append(videoOpts, video.WithTransitionHook(m.ObserveTransition))
	}
	videos := video.NewLifecycle(video.NewTable(g, st.videos), videoOpts...)

	provider, err := newProvider(ctx, cfg.Processing, m, log)
	if err != nil {
		return err
	}

	temp, err := upload.NewLocalTempStorage(cfg.Upload.TempDir)
	if err != nil {
		return err
	}
	uploadOpts := []upload.Option{upload.WithLogger(log)}
	if m != nil {
		uploadOpts = append(uploadOpts, upload.WithAppendHook(m.ObserveAppend))
	}
	uploads := upload.NewManager(upload.NewTable(g, st.sessions), videos, temp, provider, cfg.Upload, uploadOpts...)

	usage := billing.NewUsageTable(g, st.usage)
	aggregator := billing.NewUsageAggregator(videos, usage, billing.WithAggregatorLogger(log))
	invoicer := billing.NewInvoicer(usage, billing.NewInvoiceTable(g, st.invoices), cfg.Billing, billing.WithInvoicerLogger(log))

	applier := media.NewApplier(dir, videos, log)
	maintenance := media.NewMaintenance(uploads, videos, provider, cfg.Processing.StaleAfter, log)

	schedOpts := []jobs.SchedulerOption{
		jobs.WithSchedulerLogger(log),
		jobs.WithCheckInterval(cfg.Jobs.CheckInterval),
		jobs.WithRunStore(st.runs),
	}
	if locker != nil {
		schedOpts = append(schedOpts, jobs.WithLocker(locker, cfg.Jobs.LockTTL))
	}
	if m != nil {
		schedOpts = append(schedOpts, jobs.WithReportHook(m.ObserveReport), jobs.WithSkipHook(m.ObserveSkip))
	}
	scheduler := jobs.NewScheduler(dir, schedOpts...)
	if err := registerJobs(scheduler, cfg.Jobs, aggregator, invoicer, maintenance); err != nil {
		return err
	}

	var signer *processing.Signer
	if cfg.Processing.WebhookSecret != "" {
		signer, err = processing.NewSigner(cfg.Processing.WebhookSecret, cfg.Processing.WebhookMaxAge)
		if err != nil {
			return err
		}
	} else {
		log.Warn("processing webhook disabled: PROCESSING_WEBHOOK_SECRET is empty")
	}

	resolver := tenant.NewResolver(dir,
		tenant.WithBaseDomain(cfg.Tenant.BaseDomain),
		tenant.WithExemptPrefixes(cfg.Tenant.ExemptPrefixes...),
		tenant.WithResolverLogger(log),
	)

	deps := api.Deps{
		Resolver:       resolver,
		OverrideHeader: cfg.Tenant.OverrideHeader,
		Auth:           tokens,
		Authz:          authz,
		Videos:         videos,
		Uploads:        uploads,
		Catalog:        catalog,
		Signer:         signer,
		Applier:        applier,
		Scheduler:      scheduler,
		Usage:          aggregator,
		Invoicer:       invoicer,
		Metrics:        m,
		Ready:          ready,
	}
	server := httpserver.New(cfg.HTTP, api.NewRouter(cfg.API, deps, log), log)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return server.Run(ctx) })
	if cfg.Jobs.Enabled {
		eg.Go(func() error { return scheduler.Start(ctx) })
	}
	if cfg.Processing.Consumer.URL != "" {
		consumer := processing.NewConsumer(cfg.Processing.Consumer, applier.Handle, log)
		eg.Go(func() error { return consumer.Run(ctx) })
	}

	log.InfoContext(ctx, "vidkit started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("storage", cfg.Storage),
		slog.String("processing", cfg.Processing.Backend),
	)
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newProvider wraps the configured backend in a guard with a timeout and a
// circuit breaker.
func newProvider(ctx context.Context, cfg processing.Config, m *metrics.Metrics, log *slog.Logger) (processing.Provider, error) {
	backend, err := processing.NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []processing.GuardOption{
		processing.WithTimeout(cfg.Timeout),
		processing.WithCircuitBreaker(processing.NewCircuitBreaker(cfg.FailureThreshold, 0, cfg.RecoveryTimeout)),
		processing.WithGuardLogger(log),
	}
	if m != nil {
		opts = append(opts, processing.WithObserver(m.ObserveProvider))
	}
	return processing.NewGuard(backend, opts...), nil
}

// redisBackends shares one key prefix between the tenant cache and job locks.
func redisBackends(client goredis.UniversalClient, prefix string, log *slog.Logger) (*tenant.RedisCache, *jobs.RedisLocker) {
	return tenant.NewRedisCache(client, prefix, log), jobs.NewRedisLocker(client, prefix, log)
}

// cachedDirectory drops cache entries for freshly seeded tenants so a shared
// cache does not keep serving their previous records.
func cachedDirectory(ctx context.Context, next tenant.Directory, cache tenant.Cache, ttl time.Duration, seeded []*tenant.Tenant) *tenant.CachedDirectory {
	dir := tenant.NewCachedDirectory(next, cache, ttl)
	for _, t := range seeded {
		dir.Invalidate(ctx, t)
	}
	return dir
}
