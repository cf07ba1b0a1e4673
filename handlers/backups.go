package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/garagehq/workshop-platform/app"
	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/utils"
)

// backupResponse describes one archive on disk
type backupResponse struct {
	FileName  string    `json:"fileName"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
	Automated bool      `json:"automated"`
}

func toBackupResponse(a *models.BackupArtifact) backupResponse {
	return backupResponse{
		FileName:  a.FileName,
		SizeBytes: a.SizeBytes,
		CreatedAt: a.CreatedAt,
		Automated: a.Automated,
	}
}

// TriggerBackupHandler runs one tenant's backup synchronously with the
// manual prefix, exempt from retention rotation
func TriggerBackupHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := deps.Scheduler.BackupTenantManual(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		_ = utils.WriteCreated(w, toBackupResponse(artifact))
	}
}

// ListBackupsHandler returns the tenant's archives, newest first
func ListBackupsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifacts, err := deps.Scheduler.ListArtifacts(chi.URLParam(r, "slug"))
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		out := make([]backupResponse, len(artifacts))
		for i := range artifacts {
			out[i] = toBackupResponse(&artifacts[i])
		}
		_ = utils.WriteOK(w, out)
	}
}
