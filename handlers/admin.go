package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/garagehq/workshop-platform/app"
	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/utils"
)

// tenantResponse is the registry record without credentials
type tenantResponse struct {
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	StatusDetail string    `json:"statusDetail,omitempty"`
	Modules      []string  `json:"modules"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// createTenantResponse additionally carries the generated credentials.
// They are shown once at provisioning; there is no read-back endpoint.
type createTenantResponse struct {
	tenantResponse
	Secret       string `json:"secret"`
	MachineToken string `json:"machineToken"`
}

func toTenantResponse(t *models.Tenant) tenantResponse {
	return tenantResponse{
		Slug:         t.Slug,
		Name:         t.Name,
		Status:       string(t.Status),
		StatusDetail: t.StatusDetail,
		Modules:      t.Modules.Names(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// CreateTenantHandler provisions a new tenant
func CreateTenantHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input services.CreateTenantInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			_ = utils.WriteDomainError(w, services.ErrInvalidInput.WithMessage("malformed request body"))
			return
		}

		tenant, err := deps.Tenants.CreateTenant(r.Context(), input)
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}

		_ = utils.WriteCreated(w, createTenantResponse{
			tenantResponse: toTenantResponse(tenant),
			Secret:         tenant.Secret,
			MachineToken:   tenant.MachineToken,
		})
	}
}

// ListTenantsHandler returns every registry record
func ListTenantsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := deps.Tenants.ListTenants(r.Context())
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		out := make([]tenantResponse, len(tenants))
		for i, t := range tenants {
			out[i] = toTenantResponse(t)
		}
		_ = utils.WriteOK(w, out)
	}
}

// GetTenantHandler returns a single registry record
func GetTenantHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := deps.Tenants.GetTenant(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		_ = utils.WriteOK(w, toTenantResponse(tenant))
	}
}

// SuspendTenantHandler marks the tenant inactive with an operator note
func SuspendTenantHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Detail string `json:"detail"`
		}
		// Body is optional; suspension without a note is valid.
		_ = json.NewDecoder(r.Body).Decode(&body)

		if err := deps.Tenants.Suspend(r.Context(), chi.URLParam(r, "slug"), body.Detail); err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		utils.WriteNoContent(w)
	}
}

// ReactivateTenantHandler marks the tenant active again
func ReactivateTenantHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Tenants.Reactivate(r.Context(), chi.URLParam(r, "slug")); err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		utils.WriteNoContent(w)
	}
}

// EnableModuleHandler adds a capability module to the tenant
func EnableModuleHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Tenants.EnableModule(r.Context(),
			chi.URLParam(r, "slug"), chi.URLParam(r, "module"))
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		utils.WriteNoContent(w)
	}
}

// DisableModuleHandler removes a capability module from the tenant
func DisableModuleHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Tenants.DisableModule(r.Context(),
			chi.URLParam(r, "slug"), chi.URLParam(r, "module"))
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		utils.WriteNoContent(w)
	}
}
