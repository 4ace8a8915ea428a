package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/havenmind/coach-server-go/internal/model"
)

type IntakeRepository interface {
	Upsert(ctx context.Context, params model.UpsertIntakeParams) (*model.IntakeForm, error)
	FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.IntakeForm, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.IntakeForm, error)
}

type intakeRepo struct {
	db *sqlx.DB
}

func NewIntakeRepository(db *sqlx.DB) IntakeRepository {
	return &intakeRepo{db: db}
}

func (r *intakeRepo) Upsert(ctx context.Context, params model.UpsertIntakeParams) (*model.IntakeForm, error) {
	raw, err := json.Marshal(params.Details)
	if err != nil {
		return nil, err
	}

	var form model.IntakeForm
	err = r.db.GetContext(ctx, &form, `
		INSERT INTO intake_forms (session_id, user_id, category, details)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, user_id)
		DO UPDATE SET category = $3, details = $4, updated_at = $5
		RETURNING *
	`, params.SessionID, params.UserID, params.Category, json.RawMessage(raw), time.Now())
	if err != nil {
		return nil, err
	}
	return decodeIntake(&form)
}

func (r *intakeRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.IntakeForm, error) {
	var form model.IntakeForm
	err := r.db.GetContext(ctx, &form, `
		SELECT * FROM intake_forms
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	found, err := HandleNotFound(&form, err)
	if found == nil || err != nil {
		return nil, err
	}
	return decodeIntake(found)
}

func (r *intakeRepo) ListBySession(ctx context.Context, sessionID string) ([]model.IntakeForm, error) {
	var forms []model.IntakeForm
	err := r.db.SelectContext(ctx, &forms, `
		SELECT * FROM intake_forms WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range forms {
		if _, err := decodeIntake(&forms[i]); err != nil {
			return nil, err
		}
	}
	return forms, nil
}

func decodeIntake(form *model.IntakeForm) (*model.IntakeForm, error) {
	details, err := model.ParseIntakeDetails(form.Category, form.RawDetails)
	if err != nil {
		return nil, err
	}
	form.Details = details
	return form, nil
}
