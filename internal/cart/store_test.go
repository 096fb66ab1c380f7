package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lustre-salon/salon-backend/internal/model"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, DefaultTTL), mr
}

func sampleItems() []model.CartItem {
	return []model.CartItem{
		{
			Stylist:    "nadia",
			Service:    "Haircuts & Styling",
			SubService: "Layered Cut",
			Date:       "2026-09-14",
			StartTime:  "10:30 AM",
			EndTime:    "11:30 AM",
			ClientType: "Ladies",
			Price:      45,
			AmountNow:  45,
		},
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, sampleItems(), model.PlanFull, "user-7")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create returned empty id")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerID != "user-7" || got.PaymentPlan != model.PlanFull {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Stylist != "nadia" {
		t.Fatalf("items mismatch: %+v", got.Items)
	}
}

func TestGetMissingCart(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-cart")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCartExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, sampleItems(), model.PlanHalf, "user-8")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.FastForward(DefaultTTL + time.Second)

	_, err = store.Get(ctx, created.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after TTL, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, sampleItems(), model.PlanFull, "user-9")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}
