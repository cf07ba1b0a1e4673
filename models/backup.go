package models

import "time"

// BackupArtifact describes one archived snapshot of a tenant store.
// Artifacts are immutable once written; only automated artifacts are
// subject to retention rotation.
type BackupArtifact struct {
	TenantSlug string    `json:"tenant_slug"`
	FileName   string    `json:"file_name"`
	Path       string    `json:"-"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	Automated  bool      `json:"automated"`
}
