package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lustre-salon/salon-backend/internal/payments"
)

type PaymentHandler struct {
	engine   *payments.Engine
	provider payments.CheckoutProvider
	logger   *slog.Logger
}

func NewPaymentHandler(engine *payments.Engine, provider payments.CheckoutProvider, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{engine: engine, provider: provider, logger: logger}
}

type checkoutRequest struct {
	Items []payments.CheckoutItem `json:"items"`
	Plan  string                  `json:"payment_plan"`
}

func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	checkout, err := h.engine.CreateCheckout(r.Context(), OwnerFrom(r.Context()), req.Plan, req.Items)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

type confirmRequest struct {
	SessionID string `json:"session_id"`
}

// Confirm is the synchronous confirmation path: the client polls it after
// the provider redirect. It races the webhook for the same cart; both are
// safe to run.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	sess, err := h.provider.GetSession(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("checkout session fetch failed", "session_id", req.SessionID, "error", err)
		h.writePaymentError(w, fmt.Errorf("%w: %v", payments.ErrProvider, err))
		return
	}

	outcome, err := h.engine.Reconcile(r.Context(), sess)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrUnauthorized):
		http.Error(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, payments.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, payments.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payments.ErrNotPaid):
		http.Error(w, "payment not completed", http.StatusPaymentRequired)
	case errors.Is(err, payments.ErrProvider):
		http.Error(w, "checkout provider unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("payment request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
