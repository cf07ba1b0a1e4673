package models

import (
	"strconv"
	"time"
)

// Setting keys understood by the platform. All values are stored as
// strings; absent keys fall back to the documented defaults below.
const (
	SettingMaintenanceMode          = "maintenance_mode"
	SettingUserSessionTimeout       = "user_session_timeout"
	SettingSuperadminSessionTimeout = "superadmin_session_timeout"
	SettingBackupEnabled            = "backup_enabled"
	SettingBackupRetention          = "backup_retention"
)

// Defaults applied when a setting key is absent
const (
	DefaultUserSessionTimeout       = 30 * time.Minute
	DefaultSuperadminSessionTimeout = 15 * time.Minute
	DefaultBackupRetention          = 7
)

// Settings is the typed view of the process-wide key/value configuration
// bag, parsed once per read. Mutated only by administrative actions.
type Settings struct {
	MaintenanceMode          bool
	UserSessionTimeout       time.Duration
	SuperadminSessionTimeout time.Duration
	BackupEnabled            bool
	BackupRetention          int
}

// ParseSettings builds a Settings from raw key/value pairs, applying the
// documented defaults for absent or malformed values. It never fails:
// the request hot path must not crash on a missing key.
func ParseSettings(raw map[string]string) Settings {
	return Settings{
		MaintenanceMode:          parseBool(raw[SettingMaintenanceMode], false),
		UserSessionTimeout:       parseMinutes(raw[SettingUserSessionTimeout], DefaultUserSessionTimeout),
		SuperadminSessionTimeout: parseMinutes(raw[SettingSuperadminSessionTimeout], DefaultSuperadminSessionTimeout),
		BackupEnabled:            parseBool(raw[SettingBackupEnabled], true),
		BackupRetention:          parseInt(raw[SettingBackupRetention], DefaultBackupRetention),
	}
}

// SessionTimeout returns the idle timeout applicable to a principal
func (s Settings) SessionTimeout(superuser bool) time.Duration {
	if superuser {
		return s.SuperadminSessionTimeout
	}
	return s.UserSessionTimeout
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseMinutes parses a minute count stored as a string
func parseMinutes(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Minute
}
