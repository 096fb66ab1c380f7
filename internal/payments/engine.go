package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lustre-salon/salon-backend/internal/cart"
	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/outbox"
	"github.com/lustre-salon/salon-backend/internal/schedule"
)

// MinChargeDollars is the provider's minimum payable amount per line item.
// Anything below is rejected before the provider is contacted.
const MinChargeDollars = 0.50

var (
	ErrUnauthorized  = errors.New("owner required")
	ErrInvalidInput  = errors.New("invalid checkout input")
	ErrInvalidAmount = errors.New("amount below provider minimum")
	ErrNotPaid       = errors.New("payment not completed")
	ErrProvider      = errors.New("checkout provider unavailable")
)

// Metadata keys attached to every checkout session.
const (
	metaCartID      = "cart_id"
	metaPaymentPlan = "payment_plan"
	metaOwnerID     = "owner_id"
)

type CartStore interface {
	Create(ctx context.Context, items []model.CartItem, paymentPlan, ownerID string) (model.PendingCart, error)
	Get(ctx context.Context, id string) (model.PendingCart, error)
	Delete(ctx context.Context, id string) error
}

type AppointmentStore interface {
	CreateIfSlotFree(ctx context.Context, appt *model.Appointment) (model.Appointment, bool, error)
}

type EventRecorder interface {
	InsertStandalone(ctx context.Context, evt outbox.Event) error
}

// Engine bridges the external checkout provider with durable appointment
// creation. Both confirmation paths (client poll and provider webhook) run
// the same Reconcile, which is safe to invoke any number of times per cart:
// the cart delete is the commit point, and a missing cart means someone
// already finished the job.
type Engine struct {
	provider CheckoutProvider
	carts    CartStore
	appts    AppointmentStore
	events   EventRecorder
	zone     *time.Location
	logger   *slog.Logger

	successURL string
	cancelURL  string
	minCharge  float64
}

// EngineConfig carries the deployment-specific knobs of the engine. A zero
// MinCharge falls back to MinChargeDollars.
type EngineConfig struct {
	SuccessURL string
	CancelURL  string
	MinCharge  float64
}

func NewEngine(provider CheckoutProvider, carts CartStore, appts AppointmentStore, events EventRecorder, zone *time.Location, logger *slog.Logger, cfg EngineConfig) *Engine {
	minCharge := cfg.MinCharge
	if minCharge <= 0 {
		minCharge = MinChargeDollars
	}
	return &Engine{
		provider:   provider,
		carts:      carts,
		appts:      appts,
		events:     events,
		zone:       zone,
		logger:     logger,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		minCharge:  minCharge,
	}
}

// CheckoutItem is one appointment the customer is paying for.
type CheckoutItem struct {
	Stylist    string  `json:"stylist"`
	Service    string  `json:"service"`
	SubService string  `json:"sub_service"`
	Date       string  `json:"date"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	ClientType string  `json:"client_type"`
	Price      float64 `json:"price"`
}

// Checkout is what the client needs to hand the customer to the provider.
type Checkout struct {
	CartID    string `json:"cart_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckout stages the cart and opens a provider session for it. The
// plan decides how much of each price is charged now: all of it for Full,
// half for Half. Items below the provider minimum fail the whole request
// before any provider call.
func (e *Engine) CreateCheckout(ctx context.Context, ownerID, plan string, items []CheckoutItem) (Checkout, error) {
	if ownerID == "" {
		return Checkout{}, ErrUnauthorized
	}
	if plan != model.PlanFull && plan != model.PlanHalf {
		return Checkout{}, fmt.Errorf("%w: payment plan %q", ErrInvalidInput, plan)
	}
	if len(items) == 0 {
		return Checkout{}, fmt.Errorf("%w: empty cart", ErrInvalidInput)
	}

	cartItems := make([]model.CartItem, 0, len(items))
	lineItems := make([]LineItem, 0, len(items))
	for i, item := range items {
		amountNow := item.Price
		if plan == model.PlanHalf {
			amountNow = item.Price / 2
		}
		if amountNow < e.minCharge {
			return Checkout{}, fmt.Errorf("%w: item %d charges %.2f", ErrInvalidAmount, i, amountNow)
		}
		cartItems = append(cartItems, model.CartItem{
			Stylist:    item.Stylist,
			Service:    item.Service,
			SubService: item.SubService,
			Date:       item.Date,
			StartTime:  item.StartTime,
			EndTime:    item.EndTime,
			ClientType: item.ClientType,
			Price:      item.Price,
			AmountNow:  amountNow,
		})
		name := item.Service
		if item.SubService != "" {
			name += " / " + item.SubService
		}
		lineItems = append(lineItems, LineItem{
			Name:        name,
			Description: fmt.Sprintf("%s | %s | %s", item.SubService, item.Stylist, item.Date),
			AmountCents: int64(math.Round(amountNow * 100)),
			Quantity:    1,
		})
	}

	cart, err := e.carts.Create(ctx, cartItems, plan, ownerID)
	if err != nil {
		return Checkout{}, err
	}

	sess, err := e.provider.CreateSession(ctx, SessionRequest{
		LineItems:  lineItems,
		SuccessURL: e.successURL,
		CancelURL:  e.cancelURL,
		Metadata: map[string]string{
			metaCartID:      cart.ID,
			metaPaymentPlan: plan,
			metaOwnerID:     ownerID,
		},
	})
	if err != nil {
		// The staged cart ages out on its own; retrying the whole
		// checkout is safe.
		return Checkout{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return Checkout{CartID: cart.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

// Outcome reports what one Reconcile invocation did.
type Outcome struct {
	CartID           string `json:"cart_id"`
	Created          int    `json:"created"`
	Skipped          int    `json:"skipped"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// Reconcile turns a paid checkout session into Completed appointments,
// at most once per cart. An absent cart means the other confirmation path
// (or an earlier retry) already reconciled it and is reported as success.
// Items that fail validation or whose slot got taken in the meantime are
// skipped and logged, never aborting the rest of the cart.
func (e *Engine) Reconcile(ctx context.Context, sess Session) (Outcome, error) {
	cartID := sess.Metadata[metaCartID]
	if cartID == "" {
		return Outcome{}, fmt.Errorf("%w: session %s has no cart reference", ErrInvalidInput, sess.ID)
	}

	cart, err := e.carts.Get(ctx, cartID)
	if err != nil {
		if isCartNotFound(err) {
			return Outcome{CartID: cartID, AlreadyProcessed: true}, nil
		}
		return Outcome{}, err
	}

	if !sess.Paid {
		return Outcome{CartID: cartID}, ErrNotPaid
	}

	outcome := Outcome{CartID: cartID}
	for i, item := range cart.Items {
		appt, buildErr := e.buildAppointment(cart, item)
		if buildErr != nil {
			outcome.Skipped++
			e.logger.Warn("skipping unprocessable cart item",
				"cart_id", cartID, "item", i, "error", buildErr)
			continue
		}
		_, created, insertErr := e.appts.CreateIfSlotFree(ctx, &appt)
		if insertErr != nil {
			return outcome, insertErr
		}
		if !created {
			outcome.Skipped++
			e.logger.Warn("slot taken during reconciliation",
				"cart_id", cartID, "item", i,
				"stylist", item.Stylist, "date", item.Date, "start_time", item.StartTime)
			continue
		}
		outcome.Created++
	}

	// Commit point: once the cart is gone, a rerun from the racing path
	// short-circuits at the lookup above.
	if err := e.carts.Delete(ctx, cartID); err != nil {
		return outcome, fmt.Errorf("delete reconciled cart %s: %w", cartID, err)
	}

	if e.events != nil {
		payload, _ := json.Marshal(map[string]any{
			"cart_id":    cartID,
			"session_id": sess.ID,
			"owner_id":   cart.OwnerID,
			"plan":       cart.PaymentPlan,
			"created":    outcome.Created,
			"skipped":    outcome.Skipped,
		})
		if err := e.events.InsertStandalone(ctx, outbox.Event{
			AggregateType: "cart",
			AggregateID:   cartID,
			EventType:     outbox.EventPaymentReconciled,
			Payload:       payload,
		}); err != nil {
			e.logger.Error("recording reconciliation event", "cart_id", cartID, "error", err)
		}
	}
	return outcome, nil
}

func (e *Engine) buildAppointment(cart model.PendingCart, item model.CartItem) (model.Appointment, error) {
	switch {
	case item.Stylist == "":
		return model.Appointment{}, errors.New("missing stylist")
	case item.Service == "":
		return model.Appointment{}, errors.New("missing service")
	case item.ClientType == "":
		return model.Appointment{}, errors.New("missing client type")
	case item.StartTime == "":
		return model.Appointment{}, errors.New("missing start time")
	}

	day, err := schedule.ParseDate(item.Date, e.zone)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("date %q: %w", item.Date, err)
	}
	startH, startM, err := schedule.ParseClock(item.StartTime)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("start time %q: %w", item.StartTime, err)
	}
	start := schedule.FormatClock(startH, startM)

	end := item.EndTime
	if end == "" {
		end, err = schedule.AddMinutes(start, 60)
		if err != nil {
			return model.Appointment{}, err
		}
	}

	paid := item.AmountNow
	due := item.Price - paid
	if due < 0 {
		due = 0
	}

	return model.Appointment{
		Stylist:     item.Stylist,
		Service:     item.Service,
		SubService:  item.SubService,
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		ClientType:  item.ClientType,
		PaymentPlan: cart.PaymentPlan,
		AmountPaid:  paid,
		AmountDue:   due,
		Status:      model.StatusCompleted,
		OwnerID:     cart.OwnerID,
	}, nil
}

func isCartNotFound(err error) bool {
	return errors.Is(err, cart.ErrNotFound)
}
