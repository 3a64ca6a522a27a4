// Package bootstrap wires the terminal client and the development portal
// from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/careportal-chat/internal/config"
	"github.com/wolfman30/careportal-chat/internal/portalmock"
	"github.com/wolfman30/careportal-chat/migrations"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildDirectory returns the patient directory. Without DATABASE_URL the
// seeded in-memory directory is used. The returned close func is never nil.
func BuildDirectory(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (portalmock.Directory, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		logger.Info("no database configured; using in-memory patient directory")
		return portalmock.NewDemoDirectory(), noop, nil
	}

	if cfg.AutoMigrate {
		if err := migrations.Up(dsn); err != nil {
			return nil, noop, fmt.Errorf("bootstrap: migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, noop, fmt.Errorf("bootstrap: open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, noop, fmt.Errorf("bootstrap: ping db: %w", err)
	}
	logger.Info("patient directory backed by postgres")
	return portalmock.NewPostgresDirectory(db), func() { _ = db.Close() }, nil
}
