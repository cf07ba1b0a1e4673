package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TenantStatus is the lifecycle state of a workshop account
type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantInactive TenantStatus = "inactive"
)

// Tenant represents a workshop account in the multi-tenant system.
// Tenants are created, suspended and reactivated only through the
// administrative provisioning path, never by the request pipeline.
type Tenant struct {
	Slug         string       `json:"slug" db:"slug"` // URL-friendly identifier
	Name         string       `json:"name" db:"name"`
	Status       TenantStatus `json:"status" db:"status"`
	StatusDetail string       `json:"status_detail,omitempty" db:"status_detail"` // operator-supplied suspension note
	Secret       string       `json:"-" db:"secret"`                              // tenant-scoped signing secret
	MachineToken string       `json:"-" db:"machine_token"`                       // static integration token
	Modules      ModuleSet    `json:"modules" db:"modules"`                       // enabled capability modules
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// IsActive reports whether the tenant may serve requests
func (t *Tenant) IsActive() bool {
	return t.Status == TenantActive
}

// ModuleSet is the set of capability modules enabled for a tenant,
// persisted as a comma-separated list.
type ModuleSet map[string]struct{}

// NewModuleSet builds a ModuleSet from module names
func NewModuleSet(names ...string) ModuleSet {
	s := make(ModuleSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// ParseModuleSet parses the persisted comma-separated form
func ParseModuleSet(raw string) ModuleSet {
	if raw == "" {
		return ModuleSet{}
	}
	return NewModuleSet(strings.Split(raw, ",")...)
}

// Has reports whether the named module is enabled
func (s ModuleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add enables a module
func (s ModuleSet) Add(name string) {
	s[name] = struct{}{}
}

// Remove disables a module
func (s ModuleSet) Remove(name string) {
	delete(s, name)
}

// Names returns the enabled module names in unspecified order
func (s ModuleSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	return names
}

// String returns the persisted comma-separated form
func (s ModuleSet) String() string {
	return strings.Join(s.Names(), ",")
}

// Value implements driver.Valuer so the set round-trips through sqlx
func (s ModuleSet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner
func (s *ModuleSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = ModuleSet{}
	case string:
		*s = ParseModuleSet(v)
	case []byte:
		*s = ParseModuleSet(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ModuleSet", src)
	}
	return nil
}
