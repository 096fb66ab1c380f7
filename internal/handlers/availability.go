package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lustre-salon/salon-backend/internal/availability"
	"github.com/lustre-salon/salon-backend/internal/schedule"
)

// AvailabilityHandler serves the public occupancy view. No auth: the booking
// UI queries it before the customer signs in.
type AvailabilityHandler struct {
	svc    *availability.Service
	logger *slog.Logger
}

func NewAvailabilityHandler(svc *availability.Service, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, logger: logger}
}

func (h *AvailabilityHandler) Occupied(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylist := strings.TrimSpace(r.URL.Query().Get("stylist"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	slots, err := h.svc.OccupiedSlots(r.Context(), stylist, date)
	if err != nil {
		switch {
		case errors.Is(err, availability.ErrInvalidRequest):
			http.Error(w, "stylist and date required", http.StatusBadRequest)
		case errors.Is(err, schedule.ErrInvalidDate):
			http.Error(w, "invalid date", http.StatusBadRequest)
		default:
			h.logger.Error("availability lookup failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occupied": slots})
}
