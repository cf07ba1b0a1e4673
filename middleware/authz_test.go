package middleware

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagehq/workshop-platform/models"
)

func TestRequireRole(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.provision(t, "north")

	chain := func(roles ...string) http.Handler {
		return env.tenantRouter(nil,
			env.resolver.Resolve,
			env.auth.RequireIdentity,
			env.authorizer.RequireRole(roles...),
		)
	}

	t.Run("matching role passes case-insensitively", func(t *testing.T) {
		claims := userClaims("north", "u1")
		claims.Role = "ADMIN"
		token := signToken(t, tenant.Secret, claims)
		w := doGet(chain(models.RoleAdmin), "/t/north/probe", bearer(token))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-matching role rejected", func(t *testing.T) {
		token := signToken(t, tenant.Secret, userClaims("north", "u2"))
		w := doGet(chain(models.RoleAdmin, models.RoleManager), "/t/north/probe", bearer(token))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("superuser bypasses the role check", func(t *testing.T) {
		token := signToken(t, testPlatformSecret, superuserClaims("root"))
		w := doGet(chain(models.RoleAdmin), "/t/north/probe", bearer(token))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	env := newTestEnv(t)
	// Tenant has the clients module enabled, but not invoicing.
	tenant := env.provision(t, "north", "clients")

	chain := func(perm string) http.Handler {
		return env.tenantRouter(nil,
			env.resolver.Resolve,
			env.auth.RequireIdentity,
			env.authorizer.RequirePermission(perm),
		)
	}

	t.Run("permission with enabled module passes", func(t *testing.T) {
		token := signToken(t, tenant.Secret, userClaims("north", "u1", "clients"))
		w := doGet(chain("clients"), "/t/north/probe", bearer(token))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("permission with disabled module rejects tagged module_disabled", func(t *testing.T) {
		token := signToken(t, tenant.Secret, userClaims("north", "u1", "invoicing"))
		w := doGet(chain("invoicing"), "/t/north/probe", bearer(token))

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "module_disabled", body["status"])
	})

	t.Run("missing permission rejects without the module tag", func(t *testing.T) {
		token := signToken(t, tenant.Secret, userClaims("north", "u1"))
		w := doGet(chain("clients"), "/t/north/probe", bearer(token))

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		_, hasTag := body["status"]
		assert.False(t, hasTag)
	})

	t.Run("superuser bypasses permission and module checks", func(t *testing.T) {
		token := signToken(t, testPlatformSecret, superuserClaims("root"))
		w := doGet(chain("invoicing"), "/t/north/probe", bearer(token))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireSuperuser(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.provision(t, "north")

	handler := env.tenantRouter(nil,
		env.resolver.Resolve,
		env.auth.RequireIdentity,
		env.authorizer.RequireSuperuser,
	)

	token := signToken(t, tenant.Secret, userClaims("north", "u1"))
	assert.Equal(t, http.StatusForbidden, doGet(handler, "/t/north/probe", bearer(token)).Code)

	token = signToken(t, testPlatformSecret, superuserClaims("root"))
	assert.Equal(t, http.StatusOK, doGet(handler, "/t/north/probe", bearer(token)).Code)
}
