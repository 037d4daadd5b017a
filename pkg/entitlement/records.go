package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// User is the local identity record. The provider customer id is set exactly
// once, lazily, on first checkout; SubscriptionStatus is a denormalized copy
// of the latest applied subscription state kept for fast access checks.
type User struct {
	ID                 uuid.UUID
	Email              string
	IsAdmin            bool
	Disabled           bool
	CustomerID         *string
	SubscriptionStatus *SubscriptionStatus
	CreatedAt          time.Time
}

// Product is a sellable unit in one audience space.
type Product struct {
	ID        uuid.UUID
	Name      string
	Space     Space
	Type      ProductType
	PriceID   string // provider price reference
	Price     int64  // minor currency units; zero means free
	Active    bool
	CreatedAt time.Time
}

// Free reports whether the product unlocks without payment.
func (p Product) Free() bool {
	return p.Price == 0
}

// Purchase is a one-time, perpetual-access grant. Rows are append-only facts;
// the only mutation is a status transition (e.g. refunded).
type Purchase struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProductID   uuid.UUID
	Status      PurchaseStatus
	ProviderRef string // payment intent reference from the provider
	Space       Space
	CreatedAt   time.Time
}

// Subscription is the locally mirrored provider subscription state, keyed by
// the provider's subscription id. EventAt is the provider timestamp of the
// last applied lifecycle event; upserts carrying an older timestamp are
// rejected so out-of-order delivery cannot roll back state.
type Subscription struct {
	ID                string // provider subscription id
	UserID            uuid.UUID
	Status            SubscriptionStatus
	PriceID           string
	Quantity          int64
	CancelAtPeriodEnd bool
	PeriodStart       time.Time
	PeriodEnd         time.Time
	Space             Space
	EventAt           time.Time
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Entitling reports whether the subscription currently grants access.
func (s Subscription) Entitling() bool {
	return s.Status.Entitling()
}
