package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagehq/workshop-platform/models"
)

func TestRequireMachineToken(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.provision(t, "north")

	handler := env.tenantRouter(nil, env.resolver.Resolve, env.machine.RequireMachineToken)

	t.Run("valid token passes", func(t *testing.T) {
		w := doGet(handler, "/t/north/probe", map[string]string{
			MachineTokenHeader: tenant.MachineToken,
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		w := doGet(handler, "/t/north/probe", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		w := doGet(handler, "/t/north/probe", map[string]string{
			MachineTokenHeader: "machine-south",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("another tenant's token rejected", func(t *testing.T) {
		other := env.provision(t, "south")
		w := doGet(handler, "/t/north/probe", map[string]string{
			MachineTokenHeader: other.MachineToken,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMachineTokenDuringMaintenance(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.provision(t, "north")
	require.NoError(t, env.settings.Set(context.Background(), models.SettingMaintenanceMode, "true"))

	handler := env.tenantRouter(nil, env.resolver.Resolve, env.machine.RequireMachineToken)

	w := doGet(handler, "/t/north/probe", map[string]string{
		MachineTokenHeader: tenant.MachineToken,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
