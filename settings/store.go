package settings

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garagehq/workshop-platform/models"
	"github.com/garagehq/workshop-platform/services"
)

// knownKeys guards administrative writes against typos; reads tolerate
// anything and fall back to defaults.
var knownKeys = map[string]struct{}{
	models.SettingMaintenanceMode:          {},
	models.SettingUserSessionTimeout:       {},
	models.SettingSuperadminSessionTimeout: {},
	models.SettingBackupEnabled:            {},
	models.SettingBackupRetention:          {},
}

// Store reads and writes the process-wide key/value configuration bag on
// the platform store. The bag is read-mostly on the request hot path and
// parsed into the typed models.Settings per read.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a settings store on the platform database
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Load reads the full bag and parses it, applying documented defaults for
// absent keys. Absent keys never fail the pipeline.
func (s *Store) Load(ctx context.Context) (models.Settings, error) {
	raw, err := s.All(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return models.ParseSettings(raw), nil
}

// All returns the raw key/value pairs
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, services.WrapInternal("failed to load settings", err)
	}
	raw := make(map[string]string, len(rows))
	for _, row := range rows {
		raw[row.Key] = row.Value
	}
	return raw, nil
}

// Set upserts a single setting. Only known keys are accepted.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, ok := knownKeys[key]; !ok {
		return services.ErrSettingUnknown.WithDetail("key", key)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return services.WrapInternal("failed to write setting", err)
	}
	s.logger.Info("setting updated", zap.String("key", key))
	return nil
}
