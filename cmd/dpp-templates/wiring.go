package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/audit"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/config"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/middleware"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/storage/memory"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/storage/migrate"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/storage/sqlstore"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// dependencies holds the storage-side collaborators of the service. db and
// redis are nil when the matching backend is not configured.
type dependencies struct {
	db        *sql.DB
	dialect   sqlstore.Dialect
	redis     *redis.Client
	templates templates.Store
	checker   *rbac.PermissionChecker
}

func (d *dependencies) close() error {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

func openDependencies(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics, migrateOnly bool) (*dependencies, error) {
	deps := &dependencies{}
	var (
		members    rbac.MembershipStore
		sqlMembers *rbac.SQLStore
	)

	switch cfg.Database.Storage {
	case config.StorageSQL:
		db, dialect, err := sqlstore.Open(ctx, sqlstore.ConnectionConfig{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			Timeout:     cfg.Database.Timeout,
			MaxLifetime: cfg.Database.MaxLifetime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
		}, logger)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.dialect = dialect

		if cfg.Database.AutoMigrate || migrateOnly {
			if err := runMigrations(ctx, db, logger); err != nil {
				deps.close()
				return nil, err
			}
		}
		if migrateOnly {
			return deps, nil
		}

		sqlMembers = rbac.NewSQLStore(db)
		members = sqlMembers
		deps.templates = sqlstore.New(db, dialect)

	case config.StorageMemory:
		if migrateOnly {
			return nil, fmt.Errorf("migrations require sql storage")
		}
		static := rbac.NewStaticStore()
		for _, seed := range cfg.Memberships {
			static.Add(rbac.Membership{UserID: seed.UserID, OrganizationID: seed.OrganizationID, Role: seed.Role})
		}
		members = static
		deps.templates = memory.New()
		logger.Warn("Using in-memory storage; templates are lost on restart")

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Database.Storage)
	}

	if cfg.Redis.URL != "" {
		client, err := openRedis(ctx, cfg.Redis, logger)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.redis = client
	}

	var cache *rbac.CachedStore
	if cfg.Cache.Enabled {
		cache = rbac.NewCachedStore(members, rbac.CacheConfig{
			Size:  cfg.Cache.Size,
			TTL:   cfg.Cache.TTL,
			Redis: deps.redis,
		}, logger, metrics)
		members = cache
	}

	// Seeding runs after the cache exists so a changed role also evicts the
	// entry other instances share through Redis
	if sqlMembers != nil {
		if err := seedMemberships(ctx, sqlMembers, cache, cfg.Memberships, logger); err != nil {
			deps.close()
			return nil, err
		}
	}

	deps.checker = rbac.NewPermissionChecker(members,
		rbac.WithLogger(logger),
		rbac.WithMetrics(metrics),
	)
	return deps, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	migrator := migrate.New(db, logger)
	components := []struct {
		name       string
		migrations []migrate.Migration
	}{
		{rbac.MigrationComponent, rbac.GetMigrations()},
		{sqlstore.MigrationComponent, sqlstore.GetMigrations()},
		{audit.MigrationComponent, audit.GetMigrations()},
	}
	for _, c := range components {
		if err := migrator.Up(ctx, c.name, c.migrations); err != nil {
			return err
		}
	}
	return nil
}

// seedMemberships makes the stored role of every configured membership match
// the configuration. Unchanged memberships are left alone so restarts do not
// pile up duplicates; a changed role replaces all records of the pair.
func seedMemberships(ctx context.Context, store *rbac.SQLStore, cache *rbac.CachedStore, seeds []config.MembershipSeed, logger *observability.Logger) error {
	for _, seed := range seeds {
		want, _ := rbac.ParseRole(seed.Role)
		existing, err := store.ListMemberships(ctx, seed.UserID, seed.OrganizationID)
		if err != nil {
			return err
		}
		current := effectiveRole(existing)
		if current == want {
			continue
		}

		if len(existing) > 0 {
			if err := store.RemoveMemberships(ctx, seed.UserID, seed.OrganizationID); err != nil {
				return err
			}
		}
		if err := store.AddMembership(ctx, rbac.Membership{
			UserID:         seed.UserID,
			OrganizationID: seed.OrganizationID,
			Role:           seed.Role,
		}); err != nil {
			return err
		}

		fields := map[string]interface{}{
			"user_id":         seed.UserID,
			"organization_id": seed.OrganizationID,
			"role":            seed.Role,
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, seed.UserID, seed.OrganizationID); err != nil {
				logger.WithError(err).WithFields(fields).Warn("Failed to evict cached memberships")
			}
		}
		if current != "" {
			fields["previous_role"] = string(current)
		}
		logger.WithFields(fields).Info("Seeded membership")
	}
	return nil
}

// effectiveRole mirrors PermissionChecker.EffectiveRole for already loaded
// memberships; it is empty when none carries a known role
func effectiveRole(memberships []rbac.Membership) rbac.Role {
	var best rbac.Role
	for _, m := range memberships {
		if role, ok := rbac.ParseRole(m.Role); ok && role.Priority() > best.Priority() {
			best = role
		}
	}
	return best
}

// openRedis connects the shared cache. An unreachable server is not fatal:
// the membership cache and rate limiter degrade on their own.
func openRedis(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", opts.Addr).Warn("Redis is unreachable, continuing without it for now")
	}
	return client, nil
}

func loadKeyStrategy(path string) (templates.KeyStrategy, error) {
	if path == "" {
		return templates.DefaultKeyStrategy(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key translations: %w", err)
	}
	defer f.Close()

	keys, err := templates.LoadTranslatedKeys(f, templates.DefaultKeyStrategy())
	if err != nil {
		return nil, fmt.Errorf("failed to load key translations from %s: %w", path, err)
	}
	return keys, nil
}

// buildAuditLogger fans audit events out to the configured destinations. The
// database logger is also returned so the audit API can search it.
func buildAuditLogger(cfg *config.Config, deps *dependencies, logger *observability.Logger) (audit.Logger, *audit.DBLogger, error) {
	var (
		loggers  []audit.Logger
		dbLogger *audit.DBLogger
	)

	if cfg.Audit.Database && deps.db != nil {
		l, err := audit.NewDBLogger(deps.db, deps.dialect)
		if err != nil {
			return nil, nil, err
		}
		dbLogger = l
		loggers = append(loggers, l)
	}
	if cfg.Audit.Log {
		loggers = append(loggers, audit.NewLogrusLogger(logger))
	}

	switch len(loggers) {
	case 0:
		logger.Warn("No audit destination configured; template changes are not audited")
		return audit.NoOpLogger(), nil, nil
	case 1:
		return loggers[0], dbLogger, nil
	}

	// The service already records off the request path; logging synchronously
	// here lets write errors reach the audit failure metric.
	multi := audit.NewMultiLogger(loggers...)
	multi.SetAsync(false)
	return multi, dbLogger, nil
}

// buildRateLimit returns nil when rate limiting is disabled. With Redis the
// limit is shared by every instance.
func buildRateLimit(ctx context.Context, cfg *config.Config, deps *dependencies, logger *observability.Logger) *middleware.RateLimitMiddleware {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	limitCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		WindowDuration:    cfg.RateLimit.Window,
		BurstSize:         cfg.RateLimit.Burst,
	}

	var limiter middleware.Limiter
	if deps.redis != nil {
		limiter = middleware.NewDistributedRateLimiter(deps.redis, limitCfg, "")
	} else {
		local := middleware.NewRateLimiter(limitCfg)
		local.StartCleanup(ctx)
		limiter = local
	}
	return middleware.NewRateLimitMiddleware(limiter, logger, cfg.RateLimit.FailOpen)
}
