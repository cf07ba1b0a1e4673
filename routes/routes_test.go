package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/garagehq/workshop-platform/app"
	"github.com/garagehq/workshop-platform/config"
	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/routes"
)

const platformSecret = "routes-test-platform-secret"

func newTestServer(t *testing.T) (*httptest.Server, *app.Dependencies) {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Storage: config.StorageConfig{
			DataDir:    t.TempDir(),
			BackupsDir: t.TempDir(),
		},
		Auth: config.AuthConfig{PlatformSecret: platformSecret},
		RateLimit: config.RateLimitConfig{
			MaxRequests: 100, Window: time.Minute, SweepInterval: 5 * time.Minute,
		},
		Backup: config.BackupConfig{Hour: 3},
		Observability: config.ObservabilityConfig{
			LogLevel: "error", LogFormat: "console", MetricsEnabled: true,
		},
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	t.Cleanup(ts.Close)
	return ts, deps
}

func sign(t *testing.T, secret string, claims *models.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func superuserToken(t *testing.T) string {
	return sign(t, platformSecret, &models.Claims{PrincipalID: "root", Superuser: true})
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTenantLifecycleOverAPI(t *testing.T) {
	ts, _ := newTestServer(t)
	su := superuserToken(t)

	var tenantSecret, machineToken string

	t.Run("create tenant returns one-time credentials", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/admin/tenants", su,
			`{"slug":"north","name":"North Garage","modules":["clients"]}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		data := decodeData(t, resp)
		assert.Equal(t, "north", data["slug"])
		assert.Equal(t, "active", data["status"])
		tenantSecret, _ = data["secret"].(string)
		machineToken, _ = data["machineToken"].(string)
		require.NotEmpty(t, tenantSecret)
		require.NotEmpty(t, machineToken)
	})

	t.Run("whoami through full pipeline", func(t *testing.T) {
		token := sign(t, tenantSecret, &models.Claims{
			PrincipalID: "u1", TenantSlug: "north",
			Role: "admin", Permissions: []string{"clients"},
		})
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/t/north/whoami", token, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "99", resp.Header.Get("X-RateLimit-Remaining"))

		data := decodeData(t, resp)
		assert.Equal(t, "u1", data["principalId"])
		assert.Equal(t, "north", data["tenant"])
		assert.Equal(t, "admin", data["role"])
	})

	t.Run("integration ping with machine token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/t/north/integration/ping", nil)
		require.NoError(t, err)
		req.Header.Set("x-api-token", machineToken)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := decodeData(t, resp)
		assert.Equal(t, "north", data["tenant"])
	})

	t.Run("suspend then whoami rejected at resolution", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/admin/tenants/north/suspend", su,
			`{"detail":"unpaid invoices"}`)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		token := sign(t, tenantSecret, &models.Claims{PrincipalID: "u1", TenantSlug: "north"})
		resp = doRequest(t, ts, http.MethodGet, "/api/v1/t/north/whoami", token, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "inactive", body["status"])

		resp = doRequest(t, ts, http.MethodPost, "/api/v1/admin/tenants/north/reactivate", su, "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("unknown tenant is a plain 404", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/t/ghost/whoami", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminRoutesRequireSuperuser(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("no credential", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/admin/tenants", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("platform-signed but not superuser", func(t *testing.T) {
		token := sign(t, platformSecret, &models.Claims{PrincipalID: "u1", Role: "admin"})
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/admin/tenants", token, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestSettingsAdministration(t *testing.T) {
	ts, _ := newTestServer(t)
	su := superuserToken(t)

	t.Run("update and read back", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPut, "/api/v1/admin/settings", su,
			`{"maintenance_mode":"true","backup_retention":"3"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := decodeData(t, resp)
		assert.Equal(t, "true", data["maintenance_mode"])
		assert.Equal(t, "3", data["backup_retention"])
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPut, "/api/v1/admin/settings", su,
			`{"no_such_key":"1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("maintenance shields tenants but not superusers", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/admin/tenants", su,
			`{"slug":"south","name":"South Garage"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		data := decodeData(t, resp)
		secret, _ := data["secret"].(string)

		token := sign(t, secret, &models.Claims{PrincipalID: "u1", TenantSlug: "south"})
		resp = doRequest(t, ts, http.MethodGet, "/api/v1/t/south/whoami", token, "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		resp = doRequest(t, ts, http.MethodGet, "/api/v1/t/south/whoami", su, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestManualBackupOverAPI(t *testing.T) {
	ts, _ := newTestServer(t)
	su := superuserToken(t)

	resp := doRequest(t, ts, http.MethodPost, "/api/v1/admin/tenants", su,
		`{"slug":"north","name":"North Garage"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodPost, "/api/v1/admin/backups/north", su, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeData(t, resp)
	name, _ := data["fileName"].(string)
	assert.True(t, strings.HasPrefix(name, "manual-"))
	assert.False(t, data["automated"].(bool))

	resp = doRequest(t, ts, http.MethodGet, "/api/v1/admin/backups/north", su, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, name, envelope.Data[0]["fileName"])

	resp = doRequest(t, ts, http.MethodPost, "/api/v1/admin/backups/ghost", su, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
