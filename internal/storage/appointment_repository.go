package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/outbox"
	"github.com/lustre-salon/salon-backend/libs/db"
)

var ErrNotFound = errors.New("appointment not found")

const appointmentColumns = `
	id, stylist, service, sub_service, date, start_time, end_time,
	client_type, payment_plan, amount_paid, amount_due, status, owner_id, created_at`

// AppointmentRepository is the durable store of bookings. Slot uniqueness is
// enforced by a partial unique index on (stylist, date, start_time) covering
// non-Cancelled rows, so the insert itself is the double-booking guard.
type AppointmentRepository struct {
	pool   *db.Pool
	events *outbox.Repository
	zone   *time.Location
}

func NewAppointmentRepository(pool *db.Pool, events *outbox.Repository, zone *time.Location) *AppointmentRepository {
	if zone == nil {
		zone = time.UTC
	}
	return &AppointmentRepository{pool: pool, events: events, zone: zone}
}

// CreateIfSlotFree inserts the appointment unless a non-Cancelled appointment
// already holds the same (stylist, date, start_time) slot. The second return
// value reports whether a row was inserted; a taken slot is not an error.
// The booked event is written to the outbox in the same transaction.
func (r *AppointmentRepository) CreateIfSlotFree(ctx context.Context, appt *model.Appointment) (model.Appointment, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(stylist, service, sub_service, date, start_time, end_time,
			 client_type, payment_plan, amount_paid, amount_due, status, owner_id)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stylist, date, start_time) WHERE status <> 'Cancelled' DO NOTHING
		RETURNING id, created_at
	`, appt.Stylist, appt.Service, appt.SubService, appt.Date.Format("2006-01-02"),
		appt.StartTime, appt.EndTime, appt.ClientType, appt.PaymentPlan,
		appt.AmountPaid, appt.AmountDue, appt.Status, appt.OwnerID,
	).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, false, nil
		}
		return model.Appointment{}, false, err
	}

	if err := r.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       appointmentPayload(*appt),
	}); err != nil {
		return model.Appointment{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, err
	}
	return *appt, true, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := r.scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// UpdateStatus transitions the appointment and records the matching domain
// event in the same transaction.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
		RETURNING`+appointmentColumns+`
	`, id, status)
	appt, err := r.scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}

	evtType := outbox.EventAppointmentStatus
	switch status {
	case model.StatusCompleted:
		evtType = outbox.EventAppointmentCompleted
	case model.StatusCancelled:
		evtType = outbox.EventAppointmentCancelled
	}
	if err := r.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     evtType,
		Payload:       appointmentPayload(appt),
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) SetEndTime(ctx context.Context, id, endTime string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET end_time = $2
		WHERE id = $1
	`, id, endTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForStylistBetween returns appointments for the stylist whose calendar
// day falls in the half-open [from, to) range, skipping excluded statuses.
// The range bounds are interpreted as business-zone days.
func (r *AppointmentRepository) ListForStylistBetween(ctx context.Context, stylist string, from, to time.Time, excludeStatuses []string) ([]model.Appointment, error) {
	if excludeStatuses == nil {
		excludeStatuses = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE stylist = $1
			AND date >= $2::date
			AND date < $3::date
			AND NOT (status = ANY($4))
		ORDER BY date, start_time
	`, stylist, from.Format("2006-01-02"), to.Format("2006-01-02"), excludeStatuses)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *AppointmentRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1
		ORDER BY date DESC, start_time
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *AppointmentRepository) ListAll(ctx context.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *AppointmentRepository) ListByStatus(ctx context.Context, status string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY date, start_time
	`, status)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListCreatedBetween supports invoice batching: appointments created within
// the half-open [from, to) instant window with the given status.
func (r *AppointmentRepository) ListCreatedBetween(ctx context.Context, from, to time.Time, status string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE created_at >= $1
			AND created_at < $2
			AND status = $3
		ORDER BY created_at
	`, from, to, status)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *AppointmentRepository) collect(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var date time.Time
	err := row.Scan(
		&appt.ID,
		&appt.Stylist,
		&appt.Service,
		&appt.SubService,
		&date,
		&appt.StartTime,
		&appt.EndTime,
		&appt.ClientType,
		&appt.PaymentPlan,
		&appt.AmountPaid,
		&appt.AmountDue,
		&appt.Status,
		&appt.OwnerID,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	// pgx scans the date column at UTC midnight; re-home it to the business
	// zone so end-of-service instants come out right.
	appt.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.zone)
	return appt, nil
}

func appointmentPayload(appt model.Appointment) []byte {
	payload, _ := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"stylist":        appt.Stylist,
		"service":        appt.Service,
		"sub_service":    appt.SubService,
		"date":           appt.Date.Format("2006-01-02"),
		"start_time":     appt.StartTime,
		"end_time":       appt.EndTime,
		"client_type":    appt.ClientType,
		"payment_plan":   appt.PaymentPlan,
		"amount_paid":    appt.AmountPaid,
		"amount_due":     appt.AmountDue,
		"status":         appt.Status,
		"owner_id":       appt.OwnerID,
	})
	return payload
}
