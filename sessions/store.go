package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/garagehq/workshop-platform/services"
)

// Store tracks per-principal last-activity markers in an `activity` table.
// Tenant principals' markers live in their tenant store, superuser markers
// in the platform store; either way the schema is identical, so one Store
// works against whichever handle the caller obtained from the registry.
//
// Concurrent requests from the same principal may race on Touch; last
// write wins, which is fine since only approximate elapsed time matters.
type Store struct {
	db *sqlx.DB
}

// NewStore creates an activity-marker store on the given handle
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// LastSeen returns the principal's last-activity timestamp, or ok=false
// when the principal has never been seen (first request after login).
func (s *Store) LastSeen(ctx context.Context, principalID string) (time.Time, bool, error) {
	var last time.Time
	err := s.db.GetContext(ctx, &last,
		`SELECT last_seen FROM activity WHERE principal_id = ?`, principalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, services.WrapInternal("failed to read activity marker", err)
	}
	return last, true, nil
}

// Touch advances the principal's marker to now. Called only after every
// other identity check passed; an expired session is never touched.
func (s *Store) Touch(ctx context.Context, principalID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (principal_id, last_seen) VALUES (?, ?)
		 ON CONFLICT(principal_id) DO UPDATE SET last_seen = excluded.last_seen`,
		principalID, now.UTC())
	if err != nil {
		return services.WrapInternal("failed to update activity marker", err)
	}
	return nil
}
