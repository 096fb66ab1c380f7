package availability

import (
	"context"
	"errors"
	"time"

	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/schedule"
)

var ErrInvalidRequest = errors.New("stylist and date are required")

// Occupied is one taken slot on a stylist's day. Only the time window and
// status leak out; who booked it and what for stays private.
type Occupied struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

type AppointmentLister interface {
	ListForStylistBetween(ctx context.Context, stylist string, from, to time.Time, excludeStatuses []string) ([]model.Appointment, error)
}

// Service answers "which slots are taken" queries for the booking UI.
type Service struct {
	appts AppointmentLister
	zone  *time.Location
}

func NewService(appts AppointmentLister, zone *time.Location) *Service {
	return &Service{appts: appts, zone: zone}
}

// OccupiedSlots returns the taken windows for a stylist on one calendar day.
// Cancelled appointments do not occupy their slot. A day with no bookings
// yields an empty list, never an error.
func (s *Service) OccupiedSlots(ctx context.Context, stylist, date string) ([]Occupied, error) {
	if stylist == "" || date == "" {
		return nil, ErrInvalidRequest
	}
	day, err := schedule.ParseDate(date, s.zone)
	if err != nil {
		return nil, err
	}

	appts, err := s.appts.ListForStylistBetween(ctx, stylist, day, day.AddDate(0, 0, 1), []string{model.StatusCancelled})
	if err != nil {
		return nil, err
	}

	slots := make([]Occupied, 0, len(appts))
	for _, appt := range appts {
		slots = append(slots, Occupied{
			StartTime: appt.StartTime,
			EndTime:   appt.EndTime,
			Status:    appt.Status,
		})
	}
	return slots, nil
}
