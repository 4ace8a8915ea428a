package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/havenmind/coach-server-go/internal/database"
	"github.com/havenmind/coach-server-go/internal/model"
)

type InviteRepository interface {
	// FindByCode matches case-insensitively and returns the row regardless of
	// active flag or expiry, so callers can distinguish revoked from expired
	// from never-existed.
	FindByCode(ctx context.Context, code string) (*model.Invite, error)
	FindActiveBySession(ctx context.Context, sessionID string) (*model.Invite, error)
	Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error)
	RevokeAllForSession(ctx context.Context, sessionID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) InviteRepository
}

type inviteRepo struct {
	db database.DBTX
}

func NewInviteRepository(db *sqlx.DB) InviteRepository {
	return &inviteRepo{db: db}
}

func (r *inviteRepo) WithTx(tx *sqlx.Tx) InviteRepository {
	return &inviteRepo{db: tx}
}

func (r *inviteRepo) FindByCode(ctx context.Context, code string) (*model.Invite, error) {
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, `
		SELECT * FROM invites
		WHERE UPPER(code) = UPPER($1)
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) FindActiveBySession(ctx context.Context, sessionID string) (*model.Invite, error) {
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, `
		SELECT * FROM invites
		WHERE session_id = $1 AND active AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error) {
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, `
		INSERT INTO invites (code, session_id, created_by, max_participants, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Code, params.SessionID, params.CreatedBy, params.MaxParticipants, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepo) RevokeAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invites SET active = FALSE
		WHERE session_id = $1 AND active
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *inviteRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM invites
		WHERE expires_at < NOW() - INTERVAL '7 days'
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
