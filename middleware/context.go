package middleware

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/garagehq/workshop-platform/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// tenantKey is the context key for the resolved tenant context
	tenantKey contextKey = "tenant"

	// identityKey is the context key for the authenticated identity
	identityKey contextKey = "identity"
)

// TenantContext is everything the tenant resolution stage attaches for
// downstream stages and handlers: metadata, the cached store handle, the
// parsed global settings and the deferred maintenance flag.
type TenantContext struct {
	Tenant      *models.Tenant
	Store       *sqlx.DB
	Settings    models.Settings
	Maintenance bool
}

// WithTenant adds the resolved tenant context
func WithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey, tc)
}

// GetTenantFromContext retrieves the tenant context, or nil on
// superuser-only routes that carry no tenant
func GetTenantFromContext(ctx context.Context) *TenantContext {
	if val := ctx.Value(tenantKey); val != nil {
		if tc, ok := val.(*TenantContext); ok {
			return tc
		}
	}
	return nil
}

// WithIdentity adds the authenticated identity
func WithIdentity(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, identityKey, claims)
}

// GetIdentityFromContext retrieves the authenticated identity
func GetIdentityFromContext(ctx context.Context) *models.Claims {
	if val := ctx.Value(identityKey); val != nil {
		if claims, ok := val.(*models.Claims); ok {
			return claims
		}
	}
	return nil
}
