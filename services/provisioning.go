package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/models"
)

// TenantStore is the slice of the tenant registry the provisioning
// service needs.
type TenantStore interface {
	Provision(ctx context.Context, t *models.Tenant) error
	Resolve(ctx context.Context, slug string) (*models.Tenant, error)
	SetStatus(ctx context.Context, slug string, status models.TenantStatus, detail string) error
	SetModules(ctx context.Context, slug string, modules models.ModuleSet) error
	Slugs(ctx context.Context) ([]string, error)
}

// TenantService implements the administrative tenant lifecycle:
// provisioning, suspension, reactivation and capability module toggles.
type TenantService struct {
	store  TenantStore
	logger *zap.Logger
}

// NewTenantService creates a tenant lifecycle service
func NewTenantService(store TenantStore, logger *zap.Logger) *TenantService {
	return &TenantService{store: store, logger: logger}
}

// CreateTenantInput is the provisioning request payload
type CreateTenantInput struct {
	Slug    string   `json:"slug" validate:"required,min=3,max=40,slug"`
	Name    string   `json:"name" validate:"required,min=2,max=80"`
	Modules []string `json:"modules"`
}

// CreateTenant provisions a new active tenant with generated
// credentials. The slug is permanent; it names the route segment and
// the on-disk directory.
func (s *TenantService) CreateTenant(ctx context.Context, in CreateTenantInput) (*models.Tenant, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	modules := models.ModuleSet{}
	for _, m := range in.Modules {
		modules.Add(m)
	}

	tenant := &models.Tenant{
		Slug:         in.Slug,
		Name:         in.Name,
		Status:       models.TenantActive,
		Secret:       uuid.NewString(),
		MachineToken: uuid.NewString(),
		Modules:      modules,
	}
	if err := s.store.Provision(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("tenant created",
		zap.String("tenant", tenant.Slug),
		zap.Strings("modules", modules.Names()))
	return tenant, nil
}

// GetTenant returns the tenant's registry record
func (s *TenantService) GetTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.store.Resolve(ctx, slug)
}

// ListTenants returns every tenant record, ordered by slug
func (s *TenantService) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	slugs, err := s.store.Slugs(ctx)
	if err != nil {
		return nil, err
	}
	tenants := make([]*models.Tenant, 0, len(slugs))
	for _, slug := range slugs {
		t, err := s.store.Resolve(ctx, slug)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

// Suspend marks the tenant inactive. Detail is the operator note
// returned to callers rejected at resolution.
func (s *TenantService) Suspend(ctx context.Context, slug, detail string) error {
	if err := s.store.SetStatus(ctx, slug, models.TenantInactive, detail); err != nil {
		return err
	}
	s.logger.Warn("tenant suspended",
		zap.String("tenant", slug), zap.String("detail", detail))
	return nil
}

// Reactivate marks the tenant active again and clears the status note
func (s *TenantService) Reactivate(ctx context.Context, slug string) error {
	if err := s.store.SetStatus(ctx, slug, models.TenantActive, ""); err != nil {
		return err
	}
	s.logger.Info("tenant reactivated", zap.String("tenant", slug))
	return nil
}

// EnableModule adds a capability module to the tenant's set
func (s *TenantService) EnableModule(ctx context.Context, slug, module string) error {
	return s.updateModules(ctx, slug, module, true)
}

// DisableModule removes a capability module from the tenant's set
func (s *TenantService) DisableModule(ctx context.Context, slug, module string) error {
	return s.updateModules(ctx, slug, module, false)
}

func (s *TenantService) updateModules(ctx context.Context, slug, module string, enable bool) error {
	if !slugPattern.MatchString(module) {
		return ErrInvalidInput.WithMessage("module name must be lowercase letters, digits and hyphens")
	}

	tenant, err := s.store.Resolve(ctx, slug)
	if err != nil {
		return err
	}
	if enable {
		tenant.Modules.Add(module)
	} else {
		tenant.Modules.Remove(module)
	}
	if err := s.store.SetModules(ctx, slug, tenant.Modules); err != nil {
		return err
	}

	s.logger.Info("tenant modules updated",
		zap.String("tenant", slug),
		zap.String("module", module),
		zap.Bool("enabled", enable))
	return nil
}
