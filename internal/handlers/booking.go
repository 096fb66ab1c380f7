package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lustre-salon/salon-backend/internal/booking"
	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/schedule"
	"github.com/lustre-salon/salon-backend/internal/storage"
)

// AppointmentStore is the read/mutate surface the HTTP layer needs beyond
// the booking engine's conditional insert.
type AppointmentStore interface {
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Appointment, error)
	ListAll(ctx context.Context, limit int) ([]model.Appointment, error)
	ListForStylistBetween(ctx context.Context, stylist string, from, to time.Time, excludeStatuses []string) ([]model.Appointment, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time, status string) ([]model.Appointment, error)
}

type BookingHandler struct {
	engine *booking.Engine
	repo   AppointmentStore
	zone   *time.Location
	logger *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, repo AppointmentStore, zone *time.Location, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, repo: repo, zone: zone, logger: logger}
}

type appointmentView struct {
	ID          string  `json:"id"`
	Stylist     string  `json:"stylist"`
	Service     string  `json:"service"`
	SubService  string  `json:"sub_service"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	ClientType  string  `json:"client_type"`
	PaymentPlan string  `json:"payment_plan"`
	AmountPaid  float64 `json:"amount_paid"`
	AmountDue   float64 `json:"amount_due"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

func viewOf(appt model.Appointment) appointmentView {
	return appointmentView{
		ID:          appt.ID,
		Stylist:     appt.Stylist,
		Service:     appt.Service,
		SubService:  appt.SubService,
		Date:        appt.Date.Format("2006-01-02"),
		StartTime:   appt.StartTime,
		EndTime:     appt.EndTime,
		ClientType:  appt.ClientType,
		PaymentPlan: appt.PaymentPlan,
		AmountPaid:  appt.AmountPaid,
		AmountDue:   appt.AmountDue,
		Status:      appt.Status,
		CreatedAt:   appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func viewsOf(appts []model.Appointment) []appointmentView {
	views := make([]appointmentView, 0, len(appts))
	for _, appt := range appts {
		views = append(views, viewOf(appt))
	}
	return views
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req booking.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OwnerID = OwnerFrom(r.Context())

	appt, err := h.engine.Create(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(appt))
}

type batchRequest struct {
	Items []booking.Item `json:"items"`
	Plan  string         `json:"payment_plan"`
}

type batchResponse struct {
	Submitted int               `json:"submitted"`
	Created   int               `json:"created"`
	Items     []appointmentView `json:"items"`
}

func (h *BookingHandler) BookOnly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.BookOnly(r.Context(), OwnerFrom(r.Context()), req.Items)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batchResponse{
		Submitted: result.Submitted,
		Created:   len(result.Created),
		Items:     viewsOf(result.Created),
	})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	appts, err := h.repo.ListAll(r.Context(), limit)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(appts))
}

func (h *BookingHandler) My(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appts, err := h.repo.ListByOwner(r.Context(), OwnerFrom(r.Context()))
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(appts))
}

// ByDate lists a stylist's full appointments for one calendar day, staff
// view counterpart of the public occupancy endpoint.
func (h *BookingHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stylist := strings.TrimSpace(r.URL.Query().Get("stylist"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if stylist == "" || date == "" {
		http.Error(w, "stylist and date required", http.StatusBadRequest)
		return
	}
	day, err := schedule.ParseDate(date, h.zone)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	appts, err := h.repo.ListForStylistBetween(r.Context(), stylist, day, day.AddDate(0, 0, 1), nil)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(appts))
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" || !model.ValidStatus(req.Status) {
		http.Error(w, "appointment_id and a valid status required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.UpdateStatus(r.Context(), req.AppointmentID, req.Status)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(appt))
}

type deleteRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(r.Context(), req.AppointmentID); err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *BookingHandler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrUnauthorized):
		http.Error(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "time slot already booked", http.StatusConflict)
	case errors.Is(err, booking.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
