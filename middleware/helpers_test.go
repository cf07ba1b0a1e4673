package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/registry"
	"github.com/garagehq/workshop-platform/sessions"
	"github.com/garagehq/workshop-platform/settings"
)

const testPlatformSecret = "platform-test-secret"

// testEnv wires a registry, settings store and all pipeline stages
// against a temp-dir platform store, with a mock clock.
type testEnv struct {
	registry   *registry.Registry
	settings   *settings.Store
	resolver   *TenantResolver
	auth       *Authenticator
	authorizer *Authorizer
	machine    *MachineGate
	clock      *clock.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	reg, err := registry.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	set := settings.NewStore(reg.Platform(), logger)
	mock := clock.NewMock()

	return &testEnv{
		registry:   reg,
		settings:   set,
		resolver:   NewTenantResolver(reg, set, nil, logger),
		auth:       NewAuthenticator(reg, testPlatformSecret, sessions.NewStore(reg.Platform()), set, mock, nil, logger),
		authorizer: NewAuthorizer(nil, logger),
		machine:    NewMachineGate(nil, logger),
		clock:      mock,
	}
}

func (e *testEnv) provision(t *testing.T, slug string, modules ...string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Slug:         slug,
		Name:         "Workshop " + slug,
		Status:       models.TenantActive,
		Secret:       "secret-" + slug,
		MachineToken: "machine-" + slug,
		Modules:      models.NewModuleSet(modules...),
	}
	require.NoError(t, e.registry.Provision(context.Background(), tenant))
	return tenant
}

// tenantRouter mounts the given chain under /t/{tenant}/probe with a
// probe handler that records the request context it saw.
func (e *testEnv) tenantRouter(captured *context.Context, chain ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/t/{tenant}", func(r chi.Router) {
		r.Use(chain...)
		r.Get("/probe", func(w http.ResponseWriter, req *http.Request) {
			if captured != nil {
				*captured = req.Context()
			}
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func signToken(t *testing.T, secret string, claims *models.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func userClaims(slug, principal string, perms ...string) *models.Claims {
	return &models.Claims{
		PrincipalID: principal,
		TenantSlug:  slug,
		Role:        "mechanic",
		Permissions: perms,
	}
}

func superuserClaims(principal string) *models.Claims {
	return &models.Claims{
		PrincipalID: principal,
		Role:        models.RoleAdmin,
		Superuser:   true,
	}
}

func doGet(h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.10:51234"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
