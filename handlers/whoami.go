package handlers

import (
	"net/http"

	"github.com/garagehq/workshop-platform/app"
	"github.com/garagehq/workshop-platform/middleware"
	"github.com/garagehq/workshop-platform/utils"
)

// whoamiResponse mirrors the verified credential back to the caller
type whoamiResponse struct {
	PrincipalID string   `json:"principalId"`
	Tenant      string   `json:"tenant,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Superuser   bool     `json:"superuser,omitempty"`
}

// WhoamiHandler reflects the authenticated identity attached by the
// pipeline. Reaching it at all proves resolution, identity, and rate
// limiting all passed.
func WhoamiHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.GetIdentityFromContext(r.Context())
		if claims == nil {
			_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse{
				Error: "internal", Message: "identity missing from context",
			})
			return
		}

		resp := whoamiResponse{
			PrincipalID: claims.PrincipalID,
			Tenant:      claims.TenantSlug,
			Role:        claims.Role,
			Permissions: claims.Permissions,
			Superuser:   claims.Superuser,
		}
		_ = utils.WriteOK(w, resp)
	}
}

// IntegrationPingHandler answers machine-token callers with the resolved
// tenant, confirming the token maps to the tenant in the route
func IntegrationPingHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc := middleware.GetTenantFromContext(r.Context())
		if tc == nil {
			_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse{
				Error: "internal", Message: "tenant missing from context",
			})
			return
		}
		_ = utils.WriteOK(w, map[string]string{
			"status": "ok",
			"tenant": tc.Tenant.Slug,
		})
	}
}
