package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/havenmind/coach-server-go/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error)
	Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error)
	UpdateTier(ctx context.Context, id string, tier model.SubscriptionTier, subscriptionID *string) error
	SetStripeCustomerID(ctx context.Context, id string, customerID string) error
}

type accountRepo struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE id = $1`, id)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts
		WHERE token_hash = $1 AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE stripe_customer_id = $1
	`, customerID)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO accounts (email, token_hash, tier, rate_limit_per_minute)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Email, params.TokenHash, params.Tier, params.RateLimitPerMin)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) UpdateTier(ctx context.Context, id string, tier model.SubscriptionTier, subscriptionID *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			tier = $2,
			stripe_subscription_id = $3,
			updated_at = $4
		WHERE id = $1
	`, id, tier, subscriptionID, time.Now())
	return err
}

func (r *accountRepo) SetStripeCustomerID(ctx context.Context, id string, customerID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			stripe_customer_id = $2,
			updated_at = $3
		WHERE id = $1
	`, id, customerID, time.Now())
	return err
}
