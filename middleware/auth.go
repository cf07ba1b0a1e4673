package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/registry"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/sessions"
	"github.com/garagehq/workshop-platform/settings"
	"github.com/garagehq/workshop-platform/utils"
)

// Authenticator is the identity & session stage. It verifies the signed
// credential, enforces the tenant-binding invariant and the sliding
// session-freshness window, refreshes the activity marker, and finally
// asserts the maintenance flag deferred by tenant resolution.
type Authenticator struct {
	registry         *registry.Registry
	platformSecret   string
	platformSessions *sessions.Store
	settings         *settings.Store
	clk              clock.Clock
	metrics          *observability.Metrics
	logger           *zap.Logger
}

// NewAuthenticator creates a new Authenticator. The registry supplies
// per-tenant signing secrets; platformSessions tracks superuser activity
// markers, while tenant principals' markers live in the tenant store
// attached by the resolution stage.
func NewAuthenticator(
	reg *registry.Registry,
	platformSecret string,
	platformSessions *sessions.Store,
	set *settings.Store,
	clk clock.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Authenticator {
	if clk == nil {
		clk = clock.New()
	}
	return &Authenticator{
		registry:         reg,
		platformSecret:   platformSecret,
		platformSessions: platformSessions,
		settings:         set,
		clk:              clk,
		metrics:          metrics,
		logger:           logger,
	}
}

// RequireIdentity is the middleware enforcing steps 1-6 of the identity
// stage, in order; the first failing check wins.
func (m *Authenticator) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tc := GetTenantFromContext(ctx)

		// 1. Credential present
		token := extractBearerToken(r)
		if token == "" {
			m.reject(w, "missing_credential", services.ErrMissingCredential)
			return
		}

		// 2. Signature valid. The rejection carries no detail about what
		// failed to verify.
		claims, err := m.verify(ctx, token, tc)
		if err != nil {
			m.logger.Warn("credential verification failed", zap.Error(err))
			m.reject(w, "invalid_credential", services.ErrInvalidCredential)
			return
		}

		// 3. Tenant binding: a credential issued for tenant A never
		// authorizes action inside tenant B, superusers excepted.
		if tc != nil && !claims.Superuser && claims.TenantSlug != tc.Tenant.Slug {
			m.logger.Warn("cross-tenant credential rejected",
				zap.String("route_tenant", tc.Tenant.Slug),
				zap.String("credential_tenant", claims.TenantSlug))
			m.reject(w, "cross_tenant", services.ErrCrossTenant)
			return
		}

		// 4. Session freshness against the sliding window. An expired
		// session is dead: the marker stays untouched so retrying cannot
		// silently renew it.
		markers, cfg, err := m.markersFor(r, tc, claims)
		if err != nil {
			m.fail(w, "failed to load session state", err)
			return
		}
		now := m.clk.Now()
		last, seen, err := markers.LastSeen(ctx, claims.PrincipalID)
		if err != nil {
			m.fail(w, "failed to read activity marker", err)
			return
		}
		timeout := cfg.SessionTimeout(claims.Superuser)
		if seen && now.Sub(last) > timeout {
			m.logger.Info("session expired",
				zap.String("principal", claims.PrincipalID),
				zap.Duration("idle", now.Sub(last)),
				zap.Duration("timeout", timeout))
			m.reject(w, "session_timeout", services.ErrSessionTimeout)
			return
		}

		// 5. Refresh the marker and attach the identity
		if err := markers.Touch(ctx, claims.PrincipalID, now); err != nil {
			m.fail(w, "failed to refresh activity marker", err)
			return
		}
		ctx = WithIdentity(ctx, claims)

		// 6. Deferred maintenance assertion; superusers are exempt
		if tc != nil && tc.Maintenance && !claims.Superuser {
			m.reject(w, "maintenance", services.ErrMaintenance)
			return
		}

		m.logger.Debug("identity verified",
			zap.String("principal", claims.PrincipalID),
			zap.Bool("superuser", claims.Superuser))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify parses and validates the credential signature. The signing
// secret follows the credential's issuer, not the route: a credential
// embedding a tenant slug is checked against that tenant's secret from
// the registry, one without a slug against the platform secret. Whether
// the issuer matches the route is the binding check's job, so a
// well-signed credential for the wrong tenant fails there, not here.
func (m *Authenticator) verify(ctx context.Context, token string, tc *TenantContext) (*models.Claims, error) {
	slug, err := credentialTenant(token)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return parseHS256(token, m.platformSecret)
	}
	if tc != nil && slug == tc.Tenant.Slug {
		return parseHS256(token, tc.Tenant.Secret)
	}
	issuer, err := m.registry.Resolve(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("unknown credential issuer %q: %w", slug, err)
	}
	return parseHS256(token, issuer.Secret)
}

// credentialTenant reads the tenant slug out of an unverified credential
// so the signing secret can be selected. The claims are untrusted until
// parseHS256 has checked the signature.
func credentialTenant(token string) (string, error) {
	claims := &models.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	return claims.TenantSlug, nil
}

// markersFor picks the activity-marker store and settings applicable to
// this request. Superuser markers always live in the platform store,
// even on tenant routes, so one sliding window covers the principal no
// matter which tenants they visit. Tenant routes reuse the settings
// loaded by resolution; superuser-only routes load them here.
func (m *Authenticator) markersFor(r *http.Request, tc *TenantContext, claims *models.Claims) (*sessions.Store, models.Settings, error) {
	if tc != nil && !claims.Superuser {
		return sessions.NewStore(tc.Store), tc.Settings, nil
	}
	if tc != nil {
		return m.platformSessions, tc.Settings, nil
	}
	cfg, err := m.settings.Load(r.Context())
	if err != nil {
		return nil, models.Settings{}, err
	}
	return m.platformSessions, cfg, nil
}

func (m *Authenticator) reject(w http.ResponseWriter, reason string, err error) {
	m.metrics.RecordRejection("identity", reason)
	_ = utils.WriteDomainError(w, err)
}

func (m *Authenticator) fail(w http.ResponseWriter, msg string, err error) {
	m.logger.Error(msg, zap.Error(err))
	_ = utils.WriteDomainError(w, err)
}

// parseHS256 parses a credential signed with the given secret, rejecting
// any other signing method
func parseHS256(token, secret string) (*models.Claims, error) {
	claims := &models.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// extractBearerToken extracts the token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
