package handler

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/havenmind/coach-server-go/internal/service"
)

const maxWebhookBody = 64 * 1024

type BillingHandler struct {
	billing       *service.BillingService
	webhookSecret string
}

func NewBillingHandler(billing *service.BillingService, webhookSecret string) *BillingHandler {
	return &BillingHandler{billing: billing, webhookSecret: webhookSecret}
}

// POST /v1/billing/webhook
// Signature verification replaces authentication on this route.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read body"})
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook signature verification failed")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid signature"})
		return
	}

	if err := h.billing.HandleEvent(r.Context(), event); err != nil {
		log.Error().Err(err).Str("eventType", string(event.Type)).Msg("failed to process stripe event")
		// Non-2xx makes Stripe retry with backoff.
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
