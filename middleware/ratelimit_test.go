package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/ratelimit"
)

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t)
	env.provision(t, "north")

	limiter := ratelimit.New(100, 60*time.Second, env.clock, zap.NewNop())
	handler := env.tenantRouter(nil,
		env.resolver.Resolve,
		RateLimit(limiter, nil, zap.NewNop()),
	)

	t.Run("passing responses carry quota headers", func(t *testing.T) {
		w := doGet(handler, "/t/north/probe", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("101st request rejected with retryAfter", func(t *testing.T) {
		// The previous subtest consumed one request from this window.
		var w *httptest.ResponseRecorder
		for i := 2; i <= 100; i++ {
			w = doGet(handler, "/t/north/probe", nil)
		}
		require.Equal(t, http.StatusOK, w.Code, "100th request in the window must pass")

		w = doGet(handler, "/t/north/probe", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		retryAfter, ok := body["retryAfter"].(float64)
		require.True(t, ok)
		assert.LessOrEqual(t, retryAfter, float64(60))
	})

	t.Run("fresh window admits again", func(t *testing.T) {
		env.clock.Add(61 * time.Second)
		w := doGet(handler, "/t/north/probe", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimitKeyedByAddressAndTenant(t *testing.T) {
	env := newTestEnv(t)
	env.provision(t, "north")
	env.provision(t, "south")

	limiter := ratelimit.New(1, 60*time.Second, env.clock, zap.NewNop())
	handler := env.tenantRouter(nil,
		env.resolver.Resolve,
		RateLimit(limiter, nil, zap.NewNop()),
	)

	require.Equal(t, http.StatusOK, doGet(handler, "/t/north/probe", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(handler, "/t/north/probe", nil).Code)

	// Same caller, different tenant: separate budget.
	assert.Equal(t, http.StatusOK, doGet(handler, "/t/south/probe", nil).Code)
}
