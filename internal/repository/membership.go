package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/havenmind/coach-server-go/internal/database"
	"github.com/havenmind/coach-server-go/internal/model"
)

type MembershipRepository interface {
	FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Membership, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Membership, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	CountReadyBySession(ctx context.Context, sessionID string) (int, error)
	Create(ctx context.Context, params model.CreateMembershipParams) (*model.Membership, error)
	SetReady(ctx context.Context, sessionID, userID string, ready bool) error
	Delete(ctx context.Context, sessionID, userID string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MembershipRepository
}

type membershipRepo struct {
	db database.DBTX
}

func NewMembershipRepository(db *sqlx.DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) WithTx(tx *sqlx.Tx) MembershipRepository {
	return &membershipRepo{db: tx}
}

func (r *membershipRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Membership, error) {
	var m model.Membership
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM memberships
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return HandleNotFound(&m, err)
}

func (r *membershipRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Membership, error) {
	var members []model.Membership
	err := r.db.SelectContext(ctx, &members, `
		SELECT * FROM memberships
		WHERE session_id = $1
		ORDER BY joined_at ASC
	`, sessionID)
	return members, err
}

func (r *membershipRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM memberships WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *membershipRepo) CountReadyBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM memberships WHERE session_id = $1 AND ready
	`, sessionID)
	return count, err
}

func (r *membershipRepo) Create(ctx context.Context, params model.CreateMembershipParams) (*model.Membership, error) {
	var m model.Membership
	err := r.db.GetContext(ctx, &m, `
		INSERT INTO memberships (session_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.SessionID, params.UserID, params.Role)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepo) SetReady(ctx context.Context, sessionID, userID string, ready bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET ready = $3
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID, ready)
	return err
}

func (r *membershipRepo) Delete(ctx context.Context, sessionID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM memberships
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return err
}
