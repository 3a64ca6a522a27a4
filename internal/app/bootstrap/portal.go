package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/careportal-chat/internal/config"
	httpmiddleware "github.com/wolfman30/careportal-chat/internal/http/middleware"
	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/portalmock"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// PortalDeps are the runtime resources the development portal runs on.
type PortalDeps struct {
	Directory portalmock.Directory
	Redis     *redis.Client
	Registry  *prometheus.Registry
}

// BuildPortalServer wires the development portal from config. ctx bounds
// the family rate limiter's cleanup loop.
func BuildPortalServer(ctx context.Context, cfg *appconfig.Config, deps PortalDeps, logger *logging.Logger) (*portalmock.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Directory == nil {
		deps.Directory = portalmock.NewDemoDirectory()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	if strings.TrimSpace(cfg.CSRFSecret) == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("bootstrap: CSRF_SECRET is required in production")
		}
		logger.Warn("CSRF_SECRET not set; tokens will not survive a restart")
	}
	if cfg.AllowFakePayments && cfg.Env == "production" {
		return nil, fmt.Errorf("bootstrap: fake payments cannot be enabled in production")
	}

	engine := portalmock.NewEngine(portalmock.EngineOptions{
		Directory: deps.Directory,
		Currency:  cfg.Currency,
		Logger:    logger.With("component", "engine"),
	})
	limiter := portalmock.NewOTPLimiter(deps.Redis, portalmock.LimiterConfig{
		MaxSends:    cfg.OTPMaxSends,
		MaxVerifies: cfg.OTPMaxAttempts,
		Window:      cfg.OTPWindow,
	}, logger)

	var rate *httpmiddleware.RateLimiter
	if cfg.FamilyRatePerSec > 0 {
		rate = httpmiddleware.NewRateLimiter(ctx, cfg.FamilyRatePerSec, cfg.FamilyRateBurst)
	}

	opts := portalmock.Options{
		Engine:            engine,
		Directory:         deps.Directory,
		Limiter:           limiter,
		RateLimiter:       rate,
		Metrics:           metrics.NewPortalMetrics(deps.Registry),
		Gatherer:          deps.Registry,
		Logger:            logger,
		AllowFakePayments: cfg.AllowFakePayments,
		PaymentKeyID:      cfg.PaymentKeyID,
		PaymentSecret:     cfg.PaymentKeySecret,
		PublicBaseURL:     cfg.PublicBaseURL,
		AllowedOrigins:    cfg.AllowedOrigins,
		FixedOTP:          cfg.FixedOTP,
	}
	if secret := strings.TrimSpace(cfg.CSRFSecret); secret != "" {
		opts.Signer = httpmiddleware.NewSigner(secret)
	}
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "http://localhost:" + cfg.Port
	}
	return portalmock.NewServer(opts), nil
}
