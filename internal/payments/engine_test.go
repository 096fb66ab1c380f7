package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lustre-salon/salon-backend/internal/cart"
	"github.com/lustre-salon/salon-backend/internal/model"
	"github.com/lustre-salon/salon-backend/internal/outbox"
)

type fakeProvider struct {
	created  []SessionRequest
	sessions map[string]Session
	err      error
}

func (f *fakeProvider) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	if f.err != nil {
		return Session{}, f.err
	}
	f.created = append(f.created, req)
	return Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1", Metadata: req.Metadata}, nil
}

func (f *fakeProvider) GetSession(_ context.Context, id string) (Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return Session{}, errors.New("no such session")
	}
	return sess, nil
}

type fakeCarts struct {
	carts  map[string]model.PendingCart
	nextID int
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[string]model.PendingCart{}}
}

func (f *fakeCarts) Create(_ context.Context, items []model.CartItem, plan, owner string) (model.PendingCart, error) {
	f.nextID++
	c := model.PendingCart{
		ID:          fmt.Sprintf("cart-%d", f.nextID),
		Items:       items,
		PaymentPlan: plan,
		OwnerID:     owner,
		CreatedAt:   time.Now(),
	}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeCarts) Get(_ context.Context, id string) (model.PendingCart, error) {
	c, ok := f.carts[id]
	if !ok {
		return model.PendingCart{}, cart.ErrNotFound
	}
	return c, nil
}

func (f *fakeCarts) Delete(_ context.Context, id string) error {
	delete(f.carts, id)
	return nil
}

type fakeAppts struct {
	taken   map[string]bool
	created []model.Appointment
}

func newFakeAppts(takenSlots ...string) *fakeAppts {
	taken := make(map[string]bool, len(takenSlots))
	for _, s := range takenSlots {
		taken[s] = true
	}
	return &fakeAppts{taken: taken}
}

func (f *fakeAppts) CreateIfSlotFree(_ context.Context, appt *model.Appointment) (model.Appointment, bool, error) {
	key := fmt.Sprintf("%s|%s|%s", appt.Stylist, appt.Date.Format("2006-01-02"), appt.StartTime)
	if f.taken[key] {
		return model.Appointment{}, false, nil
	}
	f.taken[key] = true
	appt.ID = fmt.Sprintf("appt-%d", len(f.created)+1)
	f.created = append(f.created, *appt)
	return *appt, true, nil
}

type fakeEvents struct {
	recorded []outbox.Event
}

func (f *fakeEvents) InsertStandalone(_ context.Context, evt outbox.Event) error {
	f.recorded = append(f.recorded, evt)
	return nil
}

func newTestEngine(provider *fakeProvider, carts *fakeCarts, appts *fakeAppts, events *fakeEvents) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(provider, carts, appts, events, time.UTC, logger, EngineConfig{
		SuccessURL: "https://salon.example/success",
		CancelURL:  "https://salon.example/cancel",
	})
}

func checkoutItem(start string, price float64) CheckoutItem {
	return CheckoutItem{
		Stylist:    "amy",
		Service:    "Haircuts & Styling",
		SubService: "Trim",
		Date:       "2026-09-14",
		StartTime:  start,
		ClientType: model.ClientLadies,
		Price:      price,
	}
}

func TestCreateCheckoutHalfPlan(t *testing.T) {
	provider := &fakeProvider{}
	carts := newFakeCarts()
	eng := newTestEngine(provider, carts, newFakeAppts(), &fakeEvents{})

	out, err := eng.CreateCheckout(context.Background(), "user-1", model.PlanHalf, []CheckoutItem{
		checkoutItem("9:00 AM", 40),
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if out.SessionID != "cs_test_1" || out.CartID == "" {
		t.Fatalf("unexpected checkout: %+v", out)
	}

	req := provider.created[0]
	if len(req.LineItems) != 1 || req.LineItems[0].AmountCents != 2000 {
		t.Fatalf("want one 2000-cent line item, got %+v", req.LineItems)
	}
	if req.Metadata["cart_id"] != out.CartID || req.Metadata["payment_plan"] != model.PlanHalf {
		t.Fatalf("metadata mismatch: %v", req.Metadata)
	}

	staged := carts.carts[out.CartID]
	if staged.Items[0].AmountNow != 20 || staged.Items[0].Price != 40 {
		t.Fatalf("staged amounts wrong: %+v", staged.Items[0])
	}
}

func TestCreateCheckoutRejectsTinyAmount(t *testing.T) {
	provider := &fakeProvider{}
	eng := newTestEngine(provider, newFakeCarts(), newFakeAppts(), &fakeEvents{})

	_, err := eng.CreateCheckout(context.Background(), "user-1", model.PlanHalf, []CheckoutItem{
		checkoutItem("9:00 AM", 0.8), // half is 0.40, below minimum
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	if len(provider.created) != 0 {
		t.Fatal("provider was contacted despite invalid amount")
	}
}

func TestCreateCheckoutConfiguredMinimum(t *testing.T) {
	provider := &fakeProvider{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := NewEngine(provider, newFakeCarts(), newFakeAppts(), &fakeEvents{}, time.UTC, logger, EngineConfig{
		SuccessURL: "https://salon.example/success",
		CancelURL:  "https://salon.example/cancel",
		MinCharge:  5,
	})

	_, err := eng.CreateCheckout(context.Background(), "user-1", model.PlanHalf, []CheckoutItem{
		checkoutItem("9:00 AM", 8), // half is 4.00, under the raised floor
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	if len(provider.created) != 0 {
		t.Fatal("provider called for a rejected cart")
	}
}

func TestCreateCheckoutProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("stripe down")}
	eng := newTestEngine(provider, newFakeCarts(), newFakeAppts(), &fakeEvents{})

	_, err := eng.CreateCheckout(context.Background(), "user-1", model.PlanFull, []CheckoutItem{
		checkoutItem("9:00 AM", 40),
	})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("want ErrProvider, got %v", err)
	}
}

func TestCreateCheckoutRequiresOwnerAndPlan(t *testing.T) {
	eng := newTestEngine(&fakeProvider{}, newFakeCarts(), newFakeAppts(), &fakeEvents{})
	ctx := context.Background()

	if _, err := eng.CreateCheckout(ctx, "", model.PlanFull, []CheckoutItem{checkoutItem("9:00 AM", 40)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := eng.CreateCheckout(ctx, "user-1", model.PlanBookOnly, []CheckoutItem{checkoutItem("9:00 AM", 40)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for BookOnly checkout, got %v", err)
	}
	if _, err := eng.CreateCheckout(ctx, "user-1", model.PlanFull, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for empty cart, got %v", err)
	}
}

func stageCart(t *testing.T, carts *fakeCarts, plan string, items ...model.CartItem) model.PendingCart {
	t.Helper()
	c, err := carts.Create(context.Background(), items, plan, "user-9")
	if err != nil {
		t.Fatalf("stage cart: %v", err)
	}
	return c
}

func paidSession(cartID string) Session {
	return Session{ID: "cs_test_9", Paid: true, Metadata: map[string]string{"cart_id": cartID}}
}

func TestReconcilePaidCart(t *testing.T) {
	carts := newFakeCarts()
	appts := newFakeAppts()
	events := &fakeEvents{}
	eng := newTestEngine(&fakeProvider{}, carts, appts, events)

	staged := stageCart(t, carts, model.PlanHalf, model.CartItem{
		Stylist: "amy", Service: "Haircuts & Styling", SubService: "Trim",
		Date: "2026-09-14", StartTime: "9:00 AM", ClientType: model.ClientLadies,
		Price: 40, AmountNow: 20,
	})

	out, err := eng.Reconcile(context.Background(), paidSession(staged.ID))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if out.Created != 1 || out.Skipped != 0 || out.AlreadyProcessed {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	appt := appts.created[0]
	if appt.Status != model.StatusCompleted {
		t.Fatalf("want Completed, got %q", appt.Status)
	}
	if appt.AmountPaid != 20 || appt.AmountDue != 20 {
		t.Fatalf("want paid=20 due=20, got paid=%v due=%v", appt.AmountPaid, appt.AmountDue)
	}
	if appt.EndTime != "10:00 AM" {
		t.Fatalf("want default end time, got %q", appt.EndTime)
	}
	if appt.OwnerID != "user-9" {
		t.Fatalf("owner not carried from cart: %q", appt.OwnerID)
	}

	if _, err := carts.Get(context.Background(), staged.ID); !errors.Is(err, cart.ErrNotFound) {
		t.Fatal("cart survived reconciliation")
	}
	if len(events.recorded) != 1 || events.recorded[0].EventType != outbox.EventPaymentReconciled {
		t.Fatalf("reconciled event not recorded: %+v", events.recorded)
	}
}

func TestReconcileDoubleFire(t *testing.T) {
	carts := newFakeCarts()
	appts := newFakeAppts()
	eng := newTestEngine(&fakeProvider{}, carts, appts, &fakeEvents{})

	staged := stageCart(t, carts, model.PlanFull, model.CartItem{
		Stylist: "amy", Service: "Haircuts & Styling",
		Date: "2026-09-14", StartTime: "9:00 AM", ClientType: model.ClientLadies,
		Price: 40, AmountNow: 40,
	})

	first, err := eng.Reconcile(context.Background(), paidSession(staged.ID))
	if err != nil || first.Created != 1 {
		t.Fatalf("first Reconcile: %+v, %v", first, err)
	}

	second, err := eng.Reconcile(context.Background(), paidSession(staged.ID))
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if !second.AlreadyProcessed || second.Created != 0 {
		t.Fatalf("want already-processed no-op, got %+v", second)
	}
	if len(appts.created) != 1 {
		t.Fatalf("double fire created %d appointments", len(appts.created))
	}
}

func TestReconcileUnpaidSessionKeepsCart(t *testing.T) {
	carts := newFakeCarts()
	eng := newTestEngine(&fakeProvider{}, carts, newFakeAppts(), &fakeEvents{})

	staged := stageCart(t, carts, model.PlanFull, model.CartItem{
		Stylist: "amy", Service: "Haircuts & Styling",
		Date: "2026-09-14", StartTime: "9:00 AM", ClientType: model.ClientLadies,
		Price: 40, AmountNow: 40,
	})

	sess := paidSession(staged.ID)
	sess.Paid = false
	if _, err := eng.Reconcile(context.Background(), sess); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("want ErrNotPaid, got %v", err)
	}
	if _, err := carts.Get(context.Background(), staged.ID); err != nil {
		t.Fatal("unpaid reconcile consumed the cart")
	}
}

func TestReconcileSkipsBadItemsAndTakenSlots(t *testing.T) {
	carts := newFakeCarts()
	appts := newFakeAppts("amy|2026-09-14|10:30 AM")
	eng := newTestEngine(&fakeProvider{}, carts, appts, &fakeEvents{})

	staged := stageCart(t, carts, model.PlanFull,
		model.CartItem{ // fine
			Stylist: "amy", Service: "Haircuts & Styling",
			Date: "2026-09-14", StartTime: "9:00 AM", ClientType: model.ClientLadies,
			Price: 40, AmountNow: 40,
		},
		model.CartItem{ // missing stylist
			Service: "Haircuts & Styling",
			Date:    "2026-09-14", StartTime: "11:00 AM", ClientType: model.ClientLadies,
			Price: 40, AmountNow: 40,
		},
		model.CartItem{ // unparseable date
			Stylist: "amy", Service: "Haircuts & Styling",
			Date: "14/09/2026", StartTime: "1:00 PM", ClientType: model.ClientLadies,
			Price: 40, AmountNow: 40,
		},
		model.CartItem{ // slot taken meanwhile
			Stylist: "amy", Service: "Haircuts & Styling",
			Date: "2026-09-14", StartTime: "10:30 AM", ClientType: model.ClientLadies,
			Price: 40, AmountNow: 40,
		},
	)

	out, err := eng.Reconcile(context.Background(), paidSession(staged.ID))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if out.Created != 1 || out.Skipped != 3 {
		t.Fatalf("want 1 created 3 skipped, got %+v", out)
	}
	if _, err := carts.Get(context.Background(), staged.ID); !errors.Is(err, cart.ErrNotFound) {
		t.Fatal("cart should still be consumed after partial reconcile")
	}
}

func TestReconcileRejectsSessionWithoutCartRef(t *testing.T) {
	eng := newTestEngine(&fakeProvider{}, newFakeCarts(), newFakeAppts(), &fakeEvents{})

	_, err := eng.Reconcile(context.Background(), Session{ID: "cs_x", Paid: true})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
