package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/backup"
	"github.com/garagehq/workshop-platform/config"
	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/middleware"
	"github.com/garagehq/workshop-platform/ratelimit"
	"github.com/garagehq/workshop-platform/registry"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/sessions"
	"github.com/garagehq/workshop-platform/settings"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Stores
	Registry         *registry.Registry
	Settings         *settings.Store
	PlatformSessions *sessions.Store

	// Services
	Tenants   *services.TenantService
	Limiter   *ratelimit.Limiter
	Scheduler *backup.Scheduler

	// Observability
	Metrics      *observability.Metrics
	PromRegistry *prometheus.Registry

	// Request pipeline stages
	Resolver    *middleware.TenantResolver
	Auth        *middleware.Authenticator
	Authorizer  *middleware.Authorizer
	MachineGate *middleware.MachineGate
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	reg, err := registry.New(cfg.Storage.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tenant registry: %w", err)
	}
	deps.Registry = reg
	deps.Settings = settings.NewStore(reg.Platform(), logger)
	deps.PlatformSessions = sessions.NewStore(reg.Platform())

	if cfg.Observability.MetricsEnabled {
		deps.PromRegistry = prometheus.NewRegistry()
		deps.Metrics = observability.NewMetrics(deps.PromRegistry)
	}

	clk := clock.New()
	deps.Tenants = services.NewTenantService(reg, logger)
	deps.Limiter = ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, clk, logger)
	deps.Scheduler = backup.NewScheduler(reg, deps.Settings,
		cfg.Storage.BackupsDir, cfg.Backup.Hour, clk, deps.Metrics, logger)

	deps.Resolver = middleware.NewTenantResolver(reg, deps.Settings, deps.Metrics, logger)
	deps.Auth = middleware.NewAuthenticator(reg, cfg.Auth.PlatformSecret,
		deps.PlatformSessions, deps.Settings, clk, deps.Metrics, logger)
	deps.Authorizer = middleware.NewAuthorizer(deps.Metrics, logger)
	deps.MachineGate = middleware.NewMachineGate(deps.Metrics, logger)

	logger.Info("all dependencies initialized",
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.Bool("metrics", cfg.Observability.MetricsEnabled))
	return deps, nil
}

// StartWorkers launches the background loops: the rate-limit record
// sweeper and the daily backup scheduler. They stop when ctx is
// cancelled.
func (d *Dependencies) StartWorkers(ctx context.Context) {
	go d.Limiter.StartSweeper(ctx, d.Config.RateLimit.SweepInterval)
	go d.Scheduler.Start(ctx)
}

// Close releases all resources in reverse dependency order
func (d *Dependencies) Close() error {
	var firstErr error
	if d.Registry != nil {
		if err := d.Registry.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	return firstErr
}
