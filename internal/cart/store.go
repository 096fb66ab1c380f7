package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lustre-salon/salon-backend/internal/model"
)

// DefaultTTL is how long an unpaid cart survives before Redis drops it.
const DefaultTTL = time.Hour

var ErrNotFound = errors.New("pending cart not found")

// Store holds carts awaiting payment. Entries expire on their own; a cart
// that outlives a checkout session is garbage, not state to migrate.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func cartKey(id string) string {
	return "salon:cart:" + id
}

// Create persists the cart under a fresh id and returns it.
func (s *Store) Create(ctx context.Context, items []model.CartItem, paymentPlan, ownerID string) (model.PendingCart, error) {
	cart := model.PendingCart{
		ID:          uuid.NewString(),
		Items:       items,
		PaymentPlan: paymentPlan,
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return model.PendingCart{}, err
	}
	if err := s.rdb.Set(ctx, cartKey(cart.ID), raw, s.ttl).Err(); err != nil {
		return model.PendingCart{}, fmt.Errorf("store cart: %w", err)
	}
	return cart, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.PendingCart, error) {
	raw, err := s.rdb.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.PendingCart{}, ErrNotFound
		}
		return model.PendingCart{}, fmt.Errorf("fetch cart: %w", err)
	}
	var cart model.PendingCart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return model.PendingCart{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return cart, nil
}

// Delete removes the cart. Deleting an absent cart is not an error; the
// reconciliation path treats deletion as its commit point and a missing key
// just means someone else got there first.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, cartKey(id)).Err()
}

func (s *Store) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return s.rdb.Ping(ctx).Err()
	}
}
