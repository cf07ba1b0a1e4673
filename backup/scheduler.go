package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/internal/observability"
	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/registry"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/settings"
)

// Archive name prefixes. Only automated archives are subject to
// retention rotation; anything else in the tenant's backup directory is
// left alone.
const (
	autoPrefix   = "auto"
	manualPrefix = "manual"
)

const timestampLayout = "20060102-150405"

var autoNamePattern = regexp.MustCompile(`^auto-\d{8}-\d{6}\.tar\.gz$`)

// Scheduler runs the daily backup pass: per tenant, checkpoint the store,
// archive it together with uploaded assets, then rotate old automated
// archives. Tenants are processed sequentially to bound resource spikes,
// and one tenant's failure never aborts the run for the others.
type Scheduler struct {
	registry   *registry.Registry
	settings   *settings.Store
	backupsDir string
	hour       int
	clk        clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewScheduler creates a backup scheduler firing daily at the given hour.
// A nil clock defaults to the wall clock.
func NewScheduler(
	reg *registry.Registry,
	set *settings.Store,
	backupsDir string,
	hour int,
	clk clock.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		registry:   reg,
		settings:   set,
		backupsDir: backupsDir,
		hour:       hour,
		clk:        clk,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start blocks until ctx is cancelled, firing RunOnce at the configured
// hour each day. Runs are not designed to overlap; a run is expected to
// finish before the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("backup scheduler started", zap.Int("hour", s.hour))
	for {
		timer := s.clk.Timer(s.untilNextRun())
		select {
		case <-timer.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("backup scheduler stopped")
			return
		}
	}
}

// untilNextRun returns the duration until the next daily firing hour
func (s *Scheduler) untilNextRun() time.Duration {
	now := s.clk.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// RunOnce performs one full backup pass over all known tenants. Failures
// are isolated per tenant and only logged; there is no synchronous
// caller to surface them to.
func (s *Scheduler) RunOnce(ctx context.Context) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Error("backup run aborted: cannot load settings", zap.Error(err))
		return
	}
	if !cfg.BackupEnabled {
		s.logger.Info("backups disabled, skipping run")
		return
	}

	slugs, err := s.registry.Slugs(ctx)
	if err != nil {
		s.logger.Error("backup run aborted: cannot list tenants", zap.Error(err))
		return
	}

	s.logger.Info("backup run starting",
		zap.Int("tenants", len(slugs)),
		zap.Int("retention", cfg.BackupRetention))

	for _, slug := range slugs {
		start := s.clk.Now()
		artifact, err := s.BackupTenant(ctx, slug, autoPrefix)
		elapsed := s.clk.Now().Sub(start).Seconds()
		if err != nil {
			s.metrics.RecordBackup("failure", elapsed)
			s.logger.Error("tenant backup failed",
				zap.String("tenant", slug), zap.Error(err))
			continue
		}
		s.metrics.RecordBackup("success", elapsed)
		s.logger.Info("tenant backup written",
			zap.String("tenant", slug),
			zap.String("archive", artifact.FileName),
			zap.Int64("bytes", artifact.SizeBytes))

		if err := s.Rotate(slug, cfg.BackupRetention); err != nil {
			s.logger.Error("backup rotation failed",
				zap.String("tenant", slug), zap.Error(err))
		}
	}
}

// BackupTenant checkpoints the tenant store and writes one archive with
// the given name prefix. The checkpoint must complete before the store
// file is copied, or the snapshot may miss recently committed writes.
func (s *Scheduler) BackupTenant(ctx context.Context, slug, prefix string) (*models.BackupArtifact, error) {
	if err := s.registry.Checkpoint(ctx, slug); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	dir := s.tenantBackupDir(slug)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	now := s.clk.Now()
	name := fmt.Sprintf("%s-%s.tar.gz", prefix, now.Format(timestampLayout))
	path := filepath.Join(dir, name)

	if err := s.writeArchive(path, slug); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write archive: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &models.BackupArtifact{
		TenantSlug: slug,
		FileName:   name,
		Path:       path,
		SizeBytes:  info.Size(),
		CreatedAt:  now,
		Automated:  prefix == autoPrefix,
	}, nil
}

// BackupTenantManual writes a manually-triggered archive, exempt from
// rotation
func (s *Scheduler) BackupTenantManual(ctx context.Context, slug string) (*models.BackupArtifact, error) {
	exists, err := s.registry.Exists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, services.ErrTenantNotFound
	}
	return s.BackupTenant(ctx, slug, manualPrefix)
}

// Rotate deletes automated archives beyond the retention count, oldest
// first. Manually created archives never match the automated naming
// convention and are never deleted here.
func (s *Scheduler) Rotate(slug string, retention int) error {
	artifacts, err := s.ListArtifacts(slug)
	if err != nil {
		return err
	}

	automated := artifacts[:0]
	for _, a := range artifacts {
		if a.Automated {
			automated = append(automated, a)
		}
	}

	if len(automated) <= retention {
		return nil
	}

	// ListArtifacts sorts newest-first, so everything past the retention
	// count is the excess oldest.
	for _, a := range automated[retention:] {
		if err := os.Remove(a.Path); err != nil {
			return fmt.Errorf("remove %s: %w", a.FileName, err)
		}
		s.logger.Info("rotated out old backup",
			zap.String("tenant", slug),
			zap.String("archive", a.FileName))
	}
	return nil
}

// ListArtifacts returns the tenant's archives sorted newest-first
func (s *Scheduler) ListArtifacts(slug string) ([]models.BackupArtifact, error) {
	dir := s.tenantBackupDir(slug)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	artifacts := make([]models.BackupArtifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, models.BackupArtifact{
			TenantSlug: slug,
			FileName:   entry.Name(),
			Path:       filepath.Join(dir, entry.Name()),
			SizeBytes:  info.Size(),
			CreatedAt:  info.ModTime(),
			Automated:  autoNamePattern.MatchString(entry.Name()),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

func (s *Scheduler) tenantBackupDir(slug string) string {
	return filepath.Join(s.backupsDir, slug)
}

// writeArchive builds the tar.gz containing the checkpointed store file
// and the uploads directory, when present
func (s *Scheduler) writeArchive(path, slug string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if err := addFile(tw, s.registry.StorePath(slug), "workshop.db"); err != nil {
		return err
	}

	uploads := s.registry.UploadsDir(slug)
	if info, err := os.Stat(uploads); err == nil && info.IsDir() {
		if err := addDir(tw, uploads, "uploads"); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func addDir(tw *tar.Writer, dir, base string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFile(tw, path, filepath.Join(base, rel))
	})
}
