package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/garagehq/workshop-platform/app"
	"github.com/garagehq/workshop-platform/services"
	"github.com/garagehq/workshop-platform/utils"
)

// GetSettingsHandler returns the raw platform settings bag
func GetSettingsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := deps.Settings.All(r.Context())
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		_ = utils.WriteOK(w, raw)
	}
}

// UpdateSettingsHandler upserts the submitted keys. Keys are applied one
// by one; an unknown key aborts the request, but keys already written
// stay written. The bag is re-read on every request so no invalidation
// is needed.
func UpdateSettingsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			_ = utils.WriteDomainError(w, services.ErrInvalidInput.WithMessage("malformed request body"))
			return
		}
		if len(body) == 0 {
			_ = utils.WriteDomainError(w, services.ErrInvalidInput.WithMessage("no settings submitted"))
			return
		}

		for key, value := range body {
			if err := deps.Settings.Set(r.Context(), key, value); err != nil {
				_ = utils.WriteDomainError(w, err)
				return
			}
		}

		raw, err := deps.Settings.All(r.Context())
		if err != nil {
			_ = utils.WriteDomainError(w, err)
			return
		}
		_ = utils.WriteOK(w, raw)
	}
}
