package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/havenmind/coach-server-go/internal/model"
)

type PresenceRepository interface {
	Upsert(ctx context.Context, sessionID, userID string, at time.Time) error
	FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.PresenceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.PresenceRecord, error)
	DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type presenceRepo struct {
	db *sqlx.DB
}

func NewPresenceRepository(db *sqlx.DB) PresenceRepository {
	return &presenceRepo{db: db}
}

// Upsert is last-write-wins on a monotonically increasing timestamp; no
// locking is needed.
func (r *presenceRepo) Upsert(ctx context.Context, sessionID, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO presence (session_id, user_id, last_heartbeat_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id)
		DO UPDATE SET last_heartbeat_at = GREATEST(presence.last_heartbeat_at, EXCLUDED.last_heartbeat_at)
	`, sessionID, userID, at)
	return err
}

func (r *presenceRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.PresenceRecord, error) {
	var record model.PresenceRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM presence
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return HandleNotFound(&record, err)
}

func (r *presenceRepo) ListBySession(ctx context.Context, sessionID string) ([]model.PresenceRecord, error) {
	var records []model.PresenceRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM presence WHERE session_id = $1
	`, sessionID)
	return records, err
}

func (r *presenceRepo) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM presence
		WHERE last_heartbeat_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
