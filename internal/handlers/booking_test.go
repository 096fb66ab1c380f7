package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lustre-salon/salon-backend/internal/booking"
	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/storage"
	"github.com/lustre-salon/salon-backend/libs/auth"
)

type fakeRepo struct {
	appts  map[string]model.Appointment
	nextID int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appts: map[string]model.Appointment{}}
}

func (f *fakeRepo) CreateIfSlotFree(_ context.Context, appt *model.Appointment) (model.Appointment, bool, error) {
	for _, existing := range f.appts {
		if existing.Status != model.StatusCancelled &&
			existing.Stylist == appt.Stylist &&
			existing.Date.Equal(appt.Date) &&
			existing.StartTime == appt.StartTime {
			return model.Appointment{}, false, nil
		}
	}
	f.nextID++
	appt.ID = fmt.Sprintf("appt-%d", f.nextID)
	appt.CreatedAt = time.Now()
	f.appts[appt.ID] = *appt
	return *appt, true, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (model.Appointment, error) {
	appt, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return appt, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.appts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.appts, id)
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id, status string) (model.Appointment, error) {
	appt, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	appt.Status = status
	f.appts[id] = appt
	return appt, nil
}

func (f *fakeRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range f.appts {
		if appt.OwnerID == ownerID {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAll(_ context.Context, _ int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range f.appts {
		out = append(out, appt)
	}
	return out, nil
}

func (f *fakeRepo) ListForStylistBetween(_ context.Context, stylist string, from, to time.Time, exclude []string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range f.appts {
		if appt.Stylist != stylist || appt.Date.Before(from) || !appt.Date.Before(to) {
			continue
		}
		excluded := false
		for _, st := range exclude {
			if appt.Status == st {
				excluded = true
			}
		}
		if !excluded {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCreatedBetween(_ context.Context, from, to time.Time, status string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range f.appts {
		if appt.Status == status && !appt.CreatedAt.Before(from) && appt.CreatedAt.Before(to) {
			out = append(out, appt)
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBookingHandler(repo *fakeRepo) *BookingHandler {
	eng := booking.NewEngine(repo, time.UTC)
	return NewBookingHandler(eng, repo, time.UTC, discardLogger())
}

func asOwner(r *http.Request, owner string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ownerKey, owner))
}

const createBody = `{
	"stylist": "amy",
	"service": "Haircuts & Styling",
	"sub_service": "Trim",
	"date": "2026-09-14",
	"start_time": "9:00 AM",
	"client_type": "Ladies",
	"price": 40,
	"payment_plan": "Full"
}`

func TestCreateAppointment(t *testing.T) {
	h := newBookingHandler(newFakeRepo())

	req := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody)), "user-1")
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}

	var view appointmentView
	if err := json.Unmarshal(rw.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.EndTime != "10:00 AM" || view.AmountPaid != 40 || view.AmountDue != 0 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Status != model.StatusPending {
		t.Fatalf("expected Pending, got %q", view.Status)
	}
}

func TestCreateConflictReturns409(t *testing.T) {
	repo := newFakeRepo()
	h := newBookingHandler(repo)

	first := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody)), "user-1")
	rw := httptest.NewRecorder()
	h.Create(rw, first)
	if rw.Code != http.StatusCreated {
		t.Fatalf("first booking: expected 201, got %d", rw.Code)
	}

	second := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody)), "user-2")
	rw = httptest.NewRecorder()
	h.Create(rw, second)
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rw.Code)
	}
	if len(repo.appts) != 1 {
		t.Fatalf("store holds %d appointments after conflict", len(repo.appts))
	}
}

func TestCreateWithoutOwnerReturns401(t *testing.T) {
	h := newBookingHandler(newFakeRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody))
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestBookOnlyReportsCounts(t *testing.T) {
	repo := newFakeRepo()
	h := newBookingHandler(repo)

	// occupy one of the slots up front
	taken := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody)), "user-1")
	h.Create(httptest.NewRecorder(), taken)

	body := `{"items": [
		{"stylist": "amy", "service": "Haircuts & Styling", "date": "2026-09-14", "start_time": "9:00 AM", "client_type": "Ladies", "price": 40},
		{"stylist": "amy", "service": "Haircuts & Styling", "date": "2026-09-14", "start_time": "11:00 AM", "client_type": "Ladies", "price": 40}
	]}`
	req := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments/book-only", strings.NewReader(body)), "user-2")
	rw := httptest.NewRecorder()
	h.BookOnly(rw, req)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Submitted != 2 || resp.Created != 1 {
		t.Fatalf("want 1 of 2 created, got %+v", resp)
	}
	if resp.Items[0].PaymentPlan != model.PlanBookOnly || resp.Items[0].AmountDue != 40 {
		t.Fatalf("unexpected created item: %+v", resp.Items[0])
	}
}

func TestUpdateStatusAndDelete(t *testing.T) {
	repo := newFakeRepo()
	h := newBookingHandler(repo)

	created := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody)), "user-1")
	rw := httptest.NewRecorder()
	h.Create(rw, created)
	var view appointmentView
	_ = json.Unmarshal(rw.Body.Bytes(), &view)

	statusBody := fmt.Sprintf(`{"appointment_id": %q, "status": "Cancelled"}`, view.ID)
	rw = httptest.NewRecorder()
	h.UpdateStatus(rw, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/status", strings.NewReader(statusBody)))
	if rw.Code != http.StatusOK {
		t.Fatalf("status update: expected 200, got %d", rw.Code)
	}
	if repo.appts[view.ID].Status != model.StatusCancelled {
		t.Fatalf("status not persisted: %q", repo.appts[view.ID].Status)
	}

	rw = httptest.NewRecorder()
	h.UpdateStatus(rw, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/status",
		strings.NewReader(`{"appointment_id": "missing", "status": "Cancelled"}`)))
	if rw.Code != http.StatusNotFound {
		t.Fatalf("missing id: expected 404, got %d", rw.Code)
	}

	deleteBody := fmt.Sprintf(`{"appointment_id": %q}`, view.ID)
	rw = httptest.NewRecorder()
	h.Delete(rw, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/delete", strings.NewReader(deleteBody)))
	if rw.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rw.Code)
	}
	if len(repo.appts) != 0 {
		t.Fatal("appointment survived delete")
	}
}

func TestMyListsOnlyOwnAppointments(t *testing.T) {
	repo := newFakeRepo()
	h := newBookingHandler(repo)

	h.Create(httptest.NewRecorder(), asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(createBody)), "user-1"))

	otherBody := strings.Replace(createBody, `"9:00 AM"`, `"11:00 AM"`, 1)
	h.Create(httptest.NewRecorder(), asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(otherBody)), "user-2"))

	rw := httptest.NewRecorder()
	h.My(rw, asOwner(httptest.NewRequest(http.MethodGet, "/api/v1/appointments/my", nil), "user-1"))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var views []appointmentView
	_ = json.Unmarshal(rw.Body.Bytes(), &views)
	if len(views) != 1 || views[0].StartTime != "9:00 AM" {
		t.Fatalf("unexpected my list: %+v", views)
	}
}

func TestRequireAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.Claims{
		Sub: "user-1",
		Iat: time.Now().Unix(),
		Exp: time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}

	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if OwnerFrom(r.Context()) != "user-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}

	reqNone := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	rwNone := httptest.NewRecorder()
	h.ServeHTTP(rwNone, reqNone)
	if rwNone.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rwNone.Code)
	}
}
