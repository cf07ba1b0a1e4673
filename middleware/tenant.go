package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/registry"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/settings"
	"github.com/garagehq/workshop-platform/utils"
)

// TenantResolver resolves the tenant slug from the route and attaches the
// tenant context. It rejects unknown and suspended tenants before any
// credential is inspected; the maintenance flag is only computed here and
// asserted later, once identity is known, because superusers are exempt.
type TenantResolver struct {
	registry *registry.Registry
	settings *settings.Store
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewTenantResolver creates a new TenantResolver
func NewTenantResolver(reg *registry.Registry, set *settings.Store, metrics *observability.Metrics, logger *zap.Logger) *TenantResolver {
	return &TenantResolver{registry: reg, settings: set, metrics: metrics, logger: logger}
}

// Resolve is the tenant resolution middleware. It never mutates tenant or
// settings data; its only effect is context attachment.
func (m *TenantResolver) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		slug := chi.URLParam(r, "tenant")
		if slug == "" {
			m.reject(w, "missing_slug", services.ErrMissingSlug)
			return
		}

		tenant, err := m.registry.Resolve(ctx, slug)
		if err != nil {
			if services.IsNotFoundError(err) {
				m.logger.Warn("unknown tenant", zap.String("tenant", slug))
				m.reject(w, "not_found", err)
				return
			}
			m.fail(w, "failed to resolve tenant", slug, err)
			return
		}

		if !tenant.IsActive() {
			m.logger.Warn("inactive tenant rejected",
				zap.String("tenant", slug),
				zap.String("detail", tenant.StatusDetail))
			rejection := services.ErrTenantInactive
			if tenant.StatusDetail != "" {
				rejection = rejection.WithMessage(tenant.StatusDetail)
			}
			m.reject(w, "inactive", rejection)
			return
		}

		cfg, err := m.settings.Load(ctx)
		if err != nil {
			m.fail(w, "failed to load settings", slug, err)
			return
		}

		store, err := m.registry.StoreHandle(ctx, slug)
		if err != nil {
			m.fail(w, "failed to obtain store handle", slug, err)
			return
		}

		ctx = WithTenant(ctx, &TenantContext{
			Tenant:      tenant,
			Store:       store,
			Settings:    cfg,
			Maintenance: cfg.MaintenanceMode,
		})

		m.logger.Debug("tenant resolved",
			zap.String("tenant", slug),
			zap.Bool("maintenance", cfg.MaintenanceMode))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *TenantResolver) reject(w http.ResponseWriter, reason string, err error) {
	m.metrics.RecordRejection("tenant", reason)
	_ = utils.WriteDomainError(w, err)
}

func (m *TenantResolver) fail(w http.ResponseWriter, msg, slug string, err error) {
	m.logger.Error(msg, zap.String("tenant", slug), zap.Error(err))
	_ = utils.WriteDomainError(w, err)
}
