package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/utils"
)

// MachineTokenHeader carries the static per-tenant integration token
const MachineTokenHeader = "x-api-token"

// MachineGate is the alternate credential path for integration
// endpoints: a static token compared against the tenant's stored
// integration token. Stateless per call; no session or timeout semantics.
type MachineGate struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMachineGate creates a new MachineGate
func NewMachineGate(metrics *observability.Metrics, logger *zap.Logger) *MachineGate {
	return &MachineGate{metrics: metrics, logger: logger}
}

// RequireMachineToken verifies the x-api-token header against the
// tenant's integration token. Must run after tenant resolution.
func (m *MachineGate) RequireMachineToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := GetTenantFromContext(r.Context())
		if tc == nil {
			m.reject(w, "no_tenant", services.ErrMissingCredential)
			return
		}

		token := r.Header.Get(MachineTokenHeader)
		if token == "" {
			m.reject(w, "missing_token", services.ErrMissingCredential)
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(tc.Tenant.MachineToken)) != 1 {
			m.logger.Warn("machine token mismatch", zap.String("tenant", tc.Tenant.Slug))
			m.reject(w, "invalid_token", services.ErrInvalidCredential)
			return
		}

		// Machine callers are never superusers, so the deferred
		// maintenance flag applies to them unconditionally.
		if tc.Maintenance {
			m.reject(w, "maintenance", services.ErrMaintenance)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *MachineGate) reject(w http.ResponseWriter, reason string, err error) {
	m.metrics.RecordRejection("machine", reason)
	_ = utils.WriteDomainError(w, err)
}
