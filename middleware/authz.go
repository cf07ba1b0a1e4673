package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/utils"
)

// Authorizer is the role and permission stage. Superusers bypass every
// check here.
type Authorizer struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAuthorizer creates a new Authorizer
func NewAuthorizer(metrics *observability.Metrics, logger *zap.Logger) *Authorizer {
	return &Authorizer{metrics: metrics, logger: logger}
}

// RequireRole passes superusers and identities whose role matches one of
// the accepted roles (case-insensitive)
func (m *Authorizer) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetIdentityFromContext(r.Context())
			if claims == nil {
				m.reject(w, "no_identity", services.ErrMissingCredential)
				return
			}

			if claims.Superuser || claims.HasRole(roles...) {
				next.ServeHTTP(w, r)
				return
			}

			m.logger.Warn("insufficient role",
				zap.String("principal", claims.PrincipalID),
				zap.String("role", claims.Role),
				zap.Strings("required", roles))
			m.reject(w, "missing_role", services.ErrMissingRole)
		})
	}
}

// RequireSuperuser passes only platform-level principals
func (m *Authorizer) RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetIdentityFromContext(r.Context())
		if claims == nil {
			m.reject(w, "no_identity", services.ErrMissingCredential)
			return
		}
		if !claims.Superuser {
			m.reject(w, "not_superuser", services.ErrMissingRole)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission passes superusers, and otherwise requires BOTH the
// permission in the identity's snapshot AND the matching capability
// module enabled for the tenant. A held permission with a disabled module
// rejects with the module_disabled tag; a missing permission rejects
// without it, so callers cannot probe module topology they have no
// permission for.
func (m *Authorizer) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetIdentityFromContext(r.Context())
			if claims == nil {
				m.reject(w, "no_identity", services.ErrMissingCredential)
				return
			}

			if claims.Superuser {
				next.ServeHTTP(w, r)
				return
			}

			tc := GetTenantFromContext(r.Context())
			if tc == nil {
				m.reject(w, "no_tenant", services.ErrMissingPerm)
				return
			}

			hasPerm := claims.HasPermission(name)
			moduleEnabled := tc.Tenant.Modules.Has(name)

			switch {
			case !hasPerm:
				m.logger.Warn("missing permission",
					zap.String("principal", claims.PrincipalID),
					zap.String("permission", name))
				m.reject(w, "missing_permission", services.ErrMissingPerm)
			case !moduleEnabled:
				m.logger.Warn("module disabled for tenant",
					zap.String("tenant", tc.Tenant.Slug),
					zap.String("module", name))
				m.reject(w, "module_disabled", services.ErrModuleDisabled)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (m *Authorizer) reject(w http.ResponseWriter, reason string, err error) {
	m.metrics.RecordRejection("authz", reason)
	_ = utils.WriteDomainError(w, err)
}
