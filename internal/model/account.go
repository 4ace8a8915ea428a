package model

import (
	"time"
)

type Account struct {
	ID                   string           `db:"id" json:"id"`
	Email                string           `db:"email" json:"email"`
	TokenHash            string           `db:"token_hash" json:"-"`
	Tier                 SubscriptionTier `db:"tier" json:"tier"`
	StripeCustomerID     *string          `db:"stripe_customer_id" json:"-"`
	StripeSubscriptionID *string          `db:"stripe_subscription_id" json:"-"`
	RateLimitPerMin      int              `db:"rate_limit_per_minute" json:"rateLimitPerMinute"`
	CreatedAt            time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
	DisabledAt           *time.Time       `db:"disabled_at" json:"disabledAt,omitempty"`
}

type CreateAccountParams struct {
	Email           string
	TokenHash       string
	Tier            SubscriptionTier
	RateLimitPerMin int
}
