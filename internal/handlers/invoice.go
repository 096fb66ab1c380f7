package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/schedule"
)

// InvoiceHandler exposes the read-only projection consumed by the invoice
// rendering collaborator: Pending appointments created inside a half-open
// instant window.
type InvoiceHandler struct {
	repo   AppointmentStore
	zone   *time.Location
	logger *slog.Logger
}

func NewInvoiceHandler(repo AppointmentStore, zone *time.Location, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{repo: repo, zone: zone, logger: logger}
}

func (h *InvoiceHandler) PendingCreatedBetween(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, err := h.parseBound(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := h.parseBound(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	appts, err := h.repo.ListCreatedBetween(r.Context(), from, to, model.StatusPending)
	if err != nil {
		h.logger.Error("invoice projection failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(appts))
}

// parseBound accepts an RFC 3339 instant or a bare date, taken as midnight
// in the business zone.
func (h *InvoiceHandler) parseBound(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return schedule.ParseDate(raw, h.zone)
}
