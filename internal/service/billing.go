package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81"

	"github.com/havenmind/coach-server-go/internal/audit"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
)

// BillingService flips subscription tiers from Stripe webhook events. Tier
// state lives on the account row; Stripe is the source of truth and every
// relevant event overwrites rather than merges.
type BillingService struct {
	accountRepo repository.AccountRepository
}

func NewBillingService(accountRepo repository.AccountRepository) *BillingService {
	return &BillingService{accountRepo: accountRepo}
}

// HandleEvent processes a verified Stripe event. Unknown event types are
// ignored so the webhook endpoint can be subscribed broadly.
func (s *BillingService) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		log.Debug().Str("type", string(event.Type)).Msg("ignoring stripe event")
		return nil
	}
}

func (s *BillingService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	accountID := session.ClientReferenceID
	if accountID == "" {
		log.Warn().Str("eventId", event.ID).Msg("checkout session without client reference")
		return nil
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		log.Warn().Str("accountId", accountID).Msg("checkout for unknown account")
		return nil
	}

	if session.Customer != nil {
		if err := s.accountRepo.SetStripeCustomerID(ctx, account.ID, session.Customer.ID); err != nil {
			return fmt.Errorf("set stripe customer: %w", err)
		}
	}

	var subscriptionID *string
	if session.Subscription != nil {
		subscriptionID = &session.Subscription.ID
	}
	return s.setTier(ctx, account, model.TierPremium, subscriptionID)
}

func (s *BillingService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	account, err := s.findByCustomer(ctx, sub.Customer)
	if err != nil || account == nil {
		return err
	}

	tier := model.TierFree
	if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
		tier = model.TierPremium
	}
	return s.setTier(ctx, account, tier, &sub.ID)
}

func (s *BillingService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	account, err := s.findByCustomer(ctx, sub.Customer)
	if err != nil || account == nil {
		return err
	}
	return s.setTier(ctx, account, model.TierFree, nil)
}

func (s *BillingService) findByCustomer(ctx context.Context, customer *stripe.Customer) (*model.Account, error) {
	if customer == nil {
		return nil, nil
	}
	account, err := s.accountRepo.FindByStripeCustomerID(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("find account by customer: %w", err)
	}
	if account == nil {
		log.Warn().Str("customerId", customer.ID).Msg("stripe event for unknown customer")
	}
	return account, nil
}

func (s *BillingService) setTier(ctx context.Context, account *model.Account, tier model.SubscriptionTier, subscriptionID *string) error {
	if account.Tier == tier {
		return nil
	}
	if err := s.accountRepo.UpdateTier(ctx, account.ID, tier, subscriptionID); err != nil {
		return fmt.Errorf("update tier: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventTierChange,
		UserID: account.ID,
		Details: map[string]any{
			"from": account.Tier,
			"to":   tier,
		},
	})

	log.Info().
		Str("accountId", account.ID).
		Str("tier", string(tier)).
		Msg("subscription tier changed")
	return nil
}
