package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/schedule"
)

type Store interface {
	ListByStatus(ctx context.Context, status string) ([]model.Appointment, error)
	SetEndTime(ctx context.Context, id, endTime string) error
	UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error)
}

// Sweeper promotes Pending appointments to Completed once their end instant
// has passed. Bookings that never see a payment confirmation still age out
// of Pending this way.
type Sweeper struct {
	store    Store
	zone     *time.Location
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

func New(store Store, zone *time.Location, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		zone:     zone,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if promoted, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			} else if promoted > 0 {
				s.logger.Info("promoted elapsed appointments", "count", promoted)
			}
		}
	}
}

// Sweep runs one pass and returns how many appointments were promoted.
// Each appointment is handled independently: one bad record is logged and
// skipped, never stalling the rest.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := s.store.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return 0, err
	}

	now := s.now().In(s.zone)
	promoted := 0
	for _, appt := range pending {
		done, err := s.sweepOne(ctx, appt, now)
		if err != nil {
			s.logger.Warn("skipping appointment in sweep", "appointment_id", appt.ID, "error", err)
			continue
		}
		if done {
			promoted++
		}
	}
	return promoted, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, appt model.Appointment, now time.Time) (bool, error) {
	end := appt.EndTime
	if end == "" {
		var err error
		end, err = schedule.AddMinutes(appt.StartTime, 60)
		if err != nil {
			return false, err
		}
		if err := s.store.SetEndTime(ctx, appt.ID, end); err != nil {
			return false, err
		}
	}

	endsAt, err := schedule.EndInstant(appt.Date, appt.StartTime, end)
	if err != nil {
		return false, err
	}
	if endsAt.After(now) {
		return false, nil
	}

	if _, err := s.store.UpdateStatus(ctx, appt.ID, model.StatusCompleted); err != nil {
		return false, err
	}
	return true, nil
}
