package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/schedule"
)

// DefaultDurationMinutes is assumed when a booking omits its end time.
const DefaultDurationMinutes = 60

// amountEpsilon absorbs float64 representation error when checking that
// caller-supplied amounts sum to the price. Half a cent, so any decimally
// exact split passes and any real mismatch of a cent or more fails.
const amountEpsilon = 0.005

var (
	ErrSlotTaken    = errors.New("slot already booked")
	ErrUnauthorized = errors.New("owner required")
	ErrInvalidInput = errors.New("invalid booking input")
)

// Store is the slice of the appointment repository the engine writes through.
type Store interface {
	CreateIfSlotFree(ctx context.Context, appt *model.Appointment) (model.Appointment, bool, error)
}

// Engine validates booking requests and persists appointments. Slot
// exclusivity is delegated to the store's conditional insert, so concurrent
// requests for the same slot resolve to exactly one winner without any
// read-then-write window here.
type Engine struct {
	store Store
	zone  *time.Location
}

func NewEngine(store Store, zone *time.Location) *Engine {
	return &Engine{store: store, zone: zone}
}

// Item is one requested slot. Price is the full service price; how much of
// it is paid up front depends on the payment plan applied.
type Item struct {
	Stylist    string  `json:"stylist"`
	Service    string  `json:"service"`
	SubService string  `json:"sub_service"`
	Date       string  `json:"date"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	ClientType string  `json:"client_type"`
	Price      float64 `json:"price"`
}

// CreateRequest is a direct single booking with explicit payment fields.
type CreateRequest struct {
	Item
	PaymentPlan string  `json:"payment_plan"`
	AmountPaid  float64 `json:"amount_paid"`
	AmountDue   float64 `json:"amount_due"`
	OwnerID     string  `json:"-"`
}

// BatchResult reports a non-atomic batch outcome. Conflicting items are
// skipped, not failed: callers compare len(Created) against Submitted to
// detect skips.
type BatchResult struct {
	Created   []model.Appointment
	Submitted int
}

// Create books a single appointment with status Pending. When the caller
// leaves both amounts zero they are derived from the plan; otherwise they
// must sum to the price.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (model.Appointment, error) {
	if req.OwnerID == "" {
		return model.Appointment{}, ErrUnauthorized
	}
	if !model.ValidPlan(req.PaymentPlan) {
		return model.Appointment{}, fmt.Errorf("%w: payment plan %q", ErrInvalidInput, req.PaymentPlan)
	}

	paid, due := req.AmountPaid, req.AmountDue
	if paid == 0 && due == 0 {
		paid, due = splitByPlan(req.PaymentPlan, req.Price)
	} else if math.Abs(paid+due-req.Price) > amountEpsilon {
		return model.Appointment{}, fmt.Errorf("%w: amounts %.2f+%.2f do not sum to price %.2f", ErrInvalidInput, paid, due, req.Price)
	}

	appt, err := e.build(req.Item, req.OwnerID, req.PaymentPlan, paid, due, model.StatusPending)
	if err != nil {
		return model.Appointment{}, err
	}
	created, ok, err := e.store.CreateIfSlotFree(ctx, &appt)
	if err != nil {
		return model.Appointment{}, err
	}
	if !ok {
		return model.Appointment{}, ErrSlotTaken
	}
	return created, nil
}

// BookOnly books a batch with no money collected: plan BookOnly, nothing
// paid, full price due, status Pending. Items whose slot is already taken
// are skipped silently.
func (e *Engine) BookOnly(ctx context.Context, ownerID string, items []Item) (BatchResult, error) {
	return e.createBatch(ctx, ownerID, model.PlanBookOnly, model.StatusPending, items)
}

// SaveAfterPayment books a batch whose payment has already been confirmed:
// amounts derive from the plan (Full or Half) and the appointments land
// Completed. Items whose slot was taken in the meantime are skipped silently.
func (e *Engine) SaveAfterPayment(ctx context.Context, ownerID, plan string, items []Item) (BatchResult, error) {
	if plan != model.PlanFull && plan != model.PlanHalf {
		return BatchResult{}, fmt.Errorf("%w: payment plan %q", ErrInvalidInput, plan)
	}
	return e.createBatch(ctx, ownerID, plan, model.StatusCompleted, items)
}

func (e *Engine) createBatch(ctx context.Context, ownerID, plan, status string, items []Item) (BatchResult, error) {
	if ownerID == "" {
		return BatchResult{}, ErrUnauthorized
	}
	result := BatchResult{Submitted: len(items)}
	for i, item := range items {
		paid, due := splitByPlan(plan, item.Price)
		appt, err := e.build(item, ownerID, plan, paid, due, status)
		if err != nil {
			return result, fmt.Errorf("item %d: %w", i, err)
		}
		created, ok, err := e.store.CreateIfSlotFree(ctx, &appt)
		if err != nil {
			return result, fmt.Errorf("item %d: %w", i, err)
		}
		if !ok {
			continue
		}
		result.Created = append(result.Created, created)
	}
	return result, nil
}

func (e *Engine) build(item Item, ownerID, plan string, paid, due float64, status string) (model.Appointment, error) {
	switch {
	case item.Stylist == "":
		return model.Appointment{}, fmt.Errorf("%w: stylist required", ErrInvalidInput)
	case !model.ValidService(item.Service):
		return model.Appointment{}, fmt.Errorf("%w: unknown service %q", ErrInvalidInput, item.Service)
	case !model.ValidClientType(item.ClientType):
		return model.Appointment{}, fmt.Errorf("%w: client type %q", ErrInvalidInput, item.ClientType)
	case item.Price < 0:
		return model.Appointment{}, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}

	day, err := schedule.ParseDate(item.Date, e.zone)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: date %q", ErrInvalidInput, item.Date)
	}

	startH, startM, err := schedule.ParseClock(item.StartTime)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: start time %q", ErrInvalidInput, item.StartTime)
	}
	start := schedule.FormatClock(startH, startM)

	end := item.EndTime
	if end == "" {
		end, err = schedule.AddMinutes(start, DefaultDurationMinutes)
	} else {
		var endH, endM int
		endH, endM, err = schedule.ParseClock(end)
		end = schedule.FormatClock(endH, endM)
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: end time %q", ErrInvalidInput, item.EndTime)
	}

	return model.Appointment{
		Stylist:     item.Stylist,
		Service:     item.Service,
		SubService:  item.SubService,
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		ClientType:  item.ClientType,
		PaymentPlan: plan,
		AmountPaid:  paid,
		AmountDue:   due,
		Status:      status,
		OwnerID:     ownerID,
	}, nil
}

// splitByPlan derives (paid now, still due) from the plan and full price.
func splitByPlan(plan string, price float64) (paid, due float64) {
	switch plan {
	case model.PlanFull:
		return price, 0
	case model.PlanHalf:
		half := price / 2
		return half, price - half
	default: // BookOnly
		return 0, price
	}
}
