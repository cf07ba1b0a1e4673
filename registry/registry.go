package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/services"
)

// Registry resolves tenant slugs to metadata and to the tenant's isolated
// store handle. Handles are opened lazily and cached for the process
// lifetime: at most one live handle exists per slug, and every request and
// backup code path must go through it. Opening a second independent
// connection to a tenant store is a bug.
type Registry struct {
	platform *sqlx.DB
	dataDir  string
	logger   *zap.Logger

	mu      sync.Mutex
	handles map[string]*sqlx.DB
}

// New opens the platform store under dataDir and returns the registry.
// The platform store holds tenant metadata, global settings and superuser
// activity markers.
func New(dataDir string, logger *zap.Logger) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	platform, err := openStore(filepath.Join(dataDir, "platform.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open platform store: %w", err)
	}
	if err := initPlatformSchema(platform); err != nil {
		platform.Close()
		return nil, fmt.Errorf("failed to initialize platform schema: %w", err)
	}

	logger.Info("platform store opened", zap.String("data_dir", dataDir))

	return &Registry{
		platform: platform,
		dataDir:  dataDir,
		logger:   logger,
		handles:  make(map[string]*sqlx.DB),
	}, nil
}

// Platform returns the platform store handle
func (r *Registry) Platform() *sqlx.DB {
	return r.platform
}

// Resolve returns the tenant metadata for slug
func (r *Registry) Resolve(ctx context.Context, slug string) (*models.Tenant, error) {
	var t models.Tenant
	err := r.platform.GetContext(ctx, &t,
		`SELECT slug, name, status, status_detail, secret, machine_token, modules, created_at, updated_at
		 FROM tenants WHERE slug = ?`, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrTenantNotFound
		}
		return nil, services.WrapInternal("failed to resolve tenant", err)
	}
	return &t, nil
}

// Exists reports whether a tenant with the given slug is registered
func (r *Registry) Exists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := r.platform.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM tenants WHERE slug = ?`, slug); err != nil {
		return false, services.WrapInternal("failed to check tenant existence", err)
	}
	return n > 0, nil
}

// StoreHandle returns the cached store handle for slug, opening it on
// first call. Opening creates the tenant's directory structure if absent.
// The caller must not close the returned handle; the registry owns it.
func (r *Registry) StoreHandle(ctx context.Context, slug string) (*sqlx.DB, error) {
	exists, err := r.Exists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Never silently create a store outside the provisioning path.
		return nil, services.ErrTenantNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[slug]; ok {
		return h, nil
	}

	h, err := r.openTenantStore(slug)
	if err != nil {
		return nil, err
	}
	r.handles[slug] = h
	r.logger.Info("tenant store opened", zap.String("tenant", slug))
	return h, nil
}

// TenantDir returns the directory holding a tenant's store and assets
func (r *Registry) TenantDir(slug string) string {
	return filepath.Join(r.dataDir, "tenants", slug)
}

// StorePath returns the path of a tenant's store file
func (r *Registry) StorePath(slug string) string {
	return filepath.Join(r.TenantDir(slug), "workshop.db")
}

// UploadsDir returns the tenant's uploaded-asset directory
func (r *Registry) UploadsDir(slug string) string {
	return filepath.Join(r.TenantDir(slug), "uploads")
}

// Slugs returns all registered tenant slugs, ordered for deterministic
// backup iteration
func (r *Registry) Slugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.platform.SelectContext(ctx, &slugs,
		`SELECT slug FROM tenants ORDER BY slug`); err != nil {
		return nil, services.WrapInternal("failed to list tenants", err)
	}
	return slugs, nil
}

// Checkpoint flushes the tenant store's write-ahead log into the main
// store file. Must run through the cached handle so it acts on the same
// connection pool that carries live writes.
func (r *Registry) Checkpoint(ctx context.Context, slug string) error {
	h, err := r.StoreHandle(ctx, slug)
	if err != nil {
		return err
	}
	if _, err := h.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return services.WrapInternal("checkpoint failed", err)
	}
	return nil
}

// Provision registers a new tenant and creates its store. This is the
// only path that creates tenant data on disk.
func (r *Registry) Provision(ctx context.Context, t *models.Tenant) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.platform.ExecContext(ctx,
		`INSERT INTO tenants (slug, name, status, status_detail, secret, machine_token, modules, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Slug, t.Name, t.Status, t.StatusDetail, t.Secret, t.MachineToken, t.Modules, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return services.ErrSlugTaken
		}
		return services.WrapInternal("failed to insert tenant", err)
	}

	// Open eagerly so provisioning fails loudly when the disk layout is
	// broken, rather than on the tenant's first request.
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[t.Slug]; ok {
		return nil
	}
	h, err := r.openTenantStore(t.Slug)
	if err != nil {
		return err
	}
	r.handles[t.Slug] = h
	r.logger.Info("tenant provisioned", zap.String("tenant", t.Slug))
	return nil
}

// SetStatus suspends or reactivates a tenant. Detail is the
// operator-supplied note surfaced to rejected callers.
func (r *Registry) SetStatus(ctx context.Context, slug string, status models.TenantStatus, detail string) error {
	res, err := r.platform.ExecContext(ctx,
		`UPDATE tenants SET status = ?, status_detail = ?, updated_at = ? WHERE slug = ?`,
		status, detail, time.Now().UTC(), slug)
	if err != nil {
		return services.WrapInternal("failed to update tenant status", err)
	}
	return requireRow(res)
}

// SetModules replaces the tenant's enabled capability module set
func (r *Registry) SetModules(ctx context.Context, slug string, modules models.ModuleSet) error {
	res, err := r.platform.ExecContext(ctx,
		`UPDATE tenants SET modules = ?, updated_at = ? WHERE slug = ?`,
		modules, time.Now().UTC(), slug)
	if err != nil {
		return services.WrapInternal("failed to update tenant modules", err)
	}
	return requireRow(res)
}

// Close closes every cached tenant handle and the platform store
func (r *Registry) Close() error {
	r.mu.Lock()
	for slug, h := range r.handles {
		if err := h.Close(); err != nil {
			r.logger.Warn("failed to close tenant store",
				zap.String("tenant", slug), zap.Error(err))
		}
	}
	r.handles = make(map[string]*sqlx.DB)
	r.mu.Unlock()

	r.logger.Info("closing platform store")
	return r.platform.Close()
}

// openTenantStore creates the tenant's on-disk layout and opens its store.
// Caller holds r.mu.
func (r *Registry) openTenantStore(slug string) (*sqlx.DB, error) {
	dir := r.TenantDir(slug)
	if err := os.MkdirAll(filepath.Join(dir, "uploads"), 0o750); err != nil {
		return nil, services.WrapInternal("failed to create tenant directory", err)
	}
	h, err := openStore(filepath.Join(dir, "workshop.db"))
	if err != nil {
		return nil, services.WrapInternal("failed to open tenant store", err)
	}
	if err := initTenantSchema(h); err != nil {
		h.Close()
		return nil, services.WrapInternal("failed to initialize tenant schema", err)
	}
	return h, nil
}

// openStore opens a SQLite store in WAL mode. WAL lets the backup
// checkpoint run concurrently with readers and writers.
func openStore(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY storms under concurrent requests.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initPlatformSchema(db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			slug          TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'active',
			status_detail TEXT NOT NULL DEFAULT '',
			secret        TEXT NOT NULL,
			machine_token TEXT NOT NULL,
			modules       TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS activity (
			principal_id TEXT PRIMARY KEY,
			last_seen    TIMESTAMP NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

func initTenantSchema(db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS activity (
			principal_id TEXT PRIMARY KEY,
			last_seen    TIMESTAMP NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func requireRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return services.WrapInternal("failed to read rows affected", err)
	}
	if n == 0 {
		return services.ErrTenantNotFound
	}
	return nil
}
