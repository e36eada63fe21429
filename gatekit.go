// Package gatekit wires the access-control core into a running unit: a
// PostgreSQL-backed store, the permission, license, and surface
// resolvers, the gate engine, the deployment pipeline, and the license
// change notifier that drives it. Applications that want to compose the
// pieces differently can use the pkg packages directly; New is the
// batteries-included path.
package gatekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gatekit/gatekit/internal/storage/postgres"
	"github.com/gatekit/gatekit/pkg/audit"
	"github.com/gatekit/gatekit/pkg/deploy"
	"github.com/gatekit/gatekit/pkg/gate"
	"github.com/gatekit/gatekit/pkg/license"
	"github.com/gatekit/gatekit/pkg/logger"
	"github.com/gatekit/gatekit/pkg/pg"
	"github.com/gatekit/gatekit/pkg/rbac"
	"github.com/gatekit/gatekit/pkg/redis"
	"github.com/gatekit/gatekit/pkg/surface"
)

// Config aggregates every knob of the core. Populate it with
// config.MustLoad.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"gatekit"`

	Database pg.Config
	Surfaces surface.Config

	// RevocationGracePeriod delays permission removal after a license
	// lapses. Zero removes immediately.
	RevocationGracePeriod time.Duration `env:"REVOCATION_GRACE_PERIOD" envDefault:"0"`

	AuditBufferSize    int `env:"AUDIT_BUFFER_SIZE" envDefault:"256"`
	LicenseEventBuffer int `env:"LICENSE_EVENT_BUFFER" envDefault:"16"`

	// PermissionCacheEnabled turns on the Redis-backed permission set
	// cache; requires REDIS_URL.
	PermissionCacheEnabled bool          `env:"PERMISSION_CACHE_ENABLED" envDefault:"false"`
	PermissionCacheTTL     time.Duration `env:"PERMISSION_CACHE_TTL" envDefault:"1m"`
	Redis                  redis.Config
}

// Core holds the wired access-control components. Construct with New,
// release with Close.
type Core struct {
	Log      *slog.Logger
	Store    *postgres.Store
	RBAC     *rbac.Resolver
	Licenses *license.Resolver
	Surfaces *surface.Resolver
	Engine   *gate.Engine
	Pipeline *deploy.Pipeline
	Notifier *license.Notifier
	Audit    *audit.Logger

	pool        *pgxpool.Pool
	redisClient *goredis.Client
}

// New connects to PostgreSQL, applies migrations, and wires the full
// core around the given feature catalog. The returned Core owns its
// connections; call Close on shutdown.
func New(ctx context.Context, catalog deploy.CatalogSource, cfg Config) (*Core, error) {
	log := logger.New(logger.WithEnvironment(cfg.Environment, cfg.ServiceName))

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.Migrate(ctx, pool, cfg.Database, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store := postgres.New(pool)

	var (
		permCache   rbac.PermissionCache
		redisClient *goredis.Client
	)
	if cfg.PermissionCacheEnabled {
		redisClient, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		permCache = rbac.NewRedisPermissionCache(redisClient, cfg.ServiceName, cfg.PermissionCacheTTL)
	}

	var rbacOpts []rbac.ResolverOption
	if permCache != nil {
		rbacOpts = append(rbacOpts, rbac.WithPermissionCache(permCache))
	}
	rbacResolver := rbac.NewResolver(store, store, store, store, rbacOpts...)
	licenseResolver := license.NewResolver(store)
	surfaceResolver := surface.NewResolverFromConfig(store, cfg.Surfaces)

	auditLogger := audit.NewLogger(store, cfg.AuditBufferSize)

	pipelineOpts := []deploy.Option{
		deploy.WithLogger(log),
		deploy.WithAuditLogger(auditLogger),
		deploy.WithGracePeriod(cfg.RevocationGracePeriod),
	}
	if permCache != nil {
		pipelineOpts = append(pipelineOpts, deploy.WithPermissionCache(permCache))
	}
	pipeline := deploy.NewPipeline(catalog, store, licenseResolver, store, store, pipelineOpts...)

	// Grant changes reach the pipeline only through the notifier, so
	// licensing code never depends on deployment code.
	notifier := license.NewNotifier(cfg.LicenseEventBuffer)
	notifier.Subscribe(pipeline.HandleChange)

	return &Core{
		Log:         log,
		Store:       store,
		RBAC:        rbacResolver,
		Licenses:    licenseResolver,
		Surfaces:    surfaceResolver,
		Engine:      gate.NewEngine(rbacResolver, licenseResolver, surfaceResolver),
		Pipeline:    pipeline,
		Notifier:    notifier,
		Audit:       auditLogger,
		pool:        pool,
		redisClient: redisClient,
	}, nil
}

// Close drains the notifier and audit queue, then releases connections.
func (c *Core) Close(ctx context.Context) error {
	c.Notifier.Close()
	err := c.Audit.Close(ctx)
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	c.pool.Close()
	return err
}
