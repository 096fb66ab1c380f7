package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/lustre-salon/salon-backend/internal/payments"
)

// WebhookHandler handles Stripe webhooks (no JWT auth; signature
// verification is the auth). Only checkout.session.completed matters here;
// everything else is acknowledged and dropped.
type WebhookHandler struct {
	engine    *payments.Engine
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
}

func NewWebhookHandler(engine *payments.Engine, secret string, tolerance time.Duration, logger *slog.Logger) *WebhookHandler {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &WebhookHandler{engine: engine, secret: secret, tolerance: tolerance, logger: logger}
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", string(evt.Type),
	)

	if evt.Type != "checkout.session.completed" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		h.logger.Error("stripe: invalid checkout session payload", "err", err)
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	outcome, err := h.engine.Reconcile(r.Context(), payments.FromWebhookSession(&session))
	if err != nil {
		h.writeWebhookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *WebhookHandler) writeWebhookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrInvalidInput), errors.Is(err, payments.ErrNotPaid):
		// Acknowledge so the provider stops retrying a payload we will
		// never be able to process differently.
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "reason": err.Error()})
	default:
		h.logger.Error("webhook reconciliation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
