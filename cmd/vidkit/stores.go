package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrymomot/vidkit/pkg/config"
	"github.com/dmitrymomot/vidkit/pkg/httpserver"
	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/permission"
	"github.com/dmitrymomot/vidkit/pkg/pg"
	"github.com/dmitrymomot/vidkit/pkg/store/pgstore"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/pkg/video"
	"github.com/dmitrymomot/vidkit/svc/billing"
)

type stores struct {
	dir         tenant.Directory
	videos      video.Store
	sessions    upload.Store
	usage       billing.UsageStore
	invoices    billing.InvoiceStore
	permissions isolation.GlobalStore[permission.Permission]
	runs        jobs.RunStore
	ready       []httpserver.Check
	close       func()
	// seeded lists tenants written from the seed file at startup.
	seeded []*tenant.Tenant
}

func openStores(ctx context.Context, cfg Config, log *slog.Logger) (*stores, error) {
	switch cfg.Storage {
	case storageMemory, "":
		return memoryStores(cfg.Tenant, log)
	case storagePostgres:
		return postgresStores(ctx, cfg.Tenant, log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage)
	}
}

// memoryStores keeps everything in process. Tenants come from the seed file.
func memoryStores(cfg tenant.Config, log *slog.Logger) (*stores, error) {
	dir, err := tenant.NewMemoryDirectory()
	if err != nil {
		return nil, err
	}
	if cfg.SeedFile != "" {
		if dir, err = tenant.LoadSeedFile(cfg.SeedFile); err != nil {
			return nil, err
		}
	} else {
		log.Warn("no TENANT_SEED_FILE set, the tenant directory is empty")
	}
	return &stores{
		dir:         dir,
		videos:      video.NewMemoryStore(),
		sessions:    upload.NewMemoryStore(),
		usage:       billing.NewMemoryUsageStore(),
		invoices:    billing.NewMemoryInvoiceStore(),
		permissions: isolation.NewMemoryGlobalStore(permission.DefaultCatalog()...),
		runs:        jobs.NewMemoryRunStore(),
		close:       func() {},
	}, nil
}

func postgresStores(ctx context.Context, cfg tenant.Config, log *slog.Logger) (*stores, error) {
	pgCfg, err := config.Load[pg.Config]()
	if err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), pgCfg, log); err != nil {
		pool.Close()
		return nil, err
	}

	dir := pgstore.NewTenantDirectory(pool)
	var seeded []*tenant.Tenant
	if cfg.SeedFile != "" {
		if seeded, err = seedTenants(ctx, dir, cfg.SeedFile); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &stores{
		dir:         dir,
		videos:      pgstore.NewVideoStore(pool),
		sessions:    pgstore.NewSessionStore(pool),
		usage:       pgstore.NewUsageStore(pool),
		invoices:    pgstore.NewInvoiceStore(pool),
		permissions: pgstore.NewPermissionStore(pool),
		runs:        pgstore.NewRunStore(pool),
		ready:       []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
		close:       pool.Close,
		seeded:      seeded,
	}, nil
}

// seedTenants upserts the seed file into the directory and returns what it wrote.
func seedTenants(ctx context.Context, dir *pgstore.TenantDirectory, path string) ([]*tenant.Tenant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tenant seed: %w", err)
	}
	defer func() { _ = f.Close() }()

	tenants, err := tenant.LoadSeed(f)
	if err != nil {
		return nil, err
	}
	for _, t := range tenants {
		if err := dir.Save(ctx, t); err != nil {
			return nil, fmt.Errorf("seed tenant %s: %w", t.Slug, err)
		}
	}
	return tenants, nil
}
