package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/havenmind/coach-server-go/internal/database"
	"github.com/havenmind/coach-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByOwner(ctx context.Context, ownerID string) ([]model.Session, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	UpdateStatus(ctx context.Context, id string, from, to model.SessionStatus) (bool, error)
	SetLock(ctx context.Context, id string, reason string, lockedBy string) error
	MarkEnded(ctx context.Context, id string, reason string, lockedBy string) error
	TouchActivity(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE id = $1`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE owner_id = $1
		ORDER BY last_activity_at DESC
	`, ownerID)
	return sessions, err
}

func (r *sessionRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions WHERE owner_id = $1
	`, ownerID)
	return count, err
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (owner_id, title, kind, status)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.OwnerID, params.Title, params.Kind, params.Status)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateStatus transitions status only when the stored status matches `from`,
// reporting whether a row changed. Concurrent identical transitions are
// benign: the loser simply sees zero rows affected.
func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, from, to model.SessionStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = $3,
			updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, from, to, time.Now())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *sessionRepo) SetLock(ctx context.Context, id string, reason string, lockedBy string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			locked = TRUE,
			lock_reason = $2,
			locked_by = $3,
			updated_at = $4
		WHERE id = $1
	`, id, reason, lockedBy, time.Now())
	return err
}

// MarkEnded sets the terminal status and the lock in one statement so a
// message can never slip in between the two.
func (r *sessionRepo) MarkEnded(ctx context.Context, id string, reason string, lockedBy string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'ended',
			locked = TRUE,
			lock_reason = $2,
			locked_by = $3,
			updated_at = $4
		WHERE id = $1
	`, id, reason, lockedBy, time.Now())
	return err
}

func (r *sessionRepo) TouchActivity(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			last_activity_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id, time.Now())
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
