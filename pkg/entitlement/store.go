package entitlement

import (
	"context"

	"github.com/google/uuid"
)

// UserStore persists identity records and their provider linkage.
type UserStore interface {
	// Get returns a user by id. Returns ErrUserNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByCustomerID resolves a user via the provider customer id.
	// Returns ErrUserNotFound if no user carries that linkage.
	GetByCustomerID(ctx context.Context, customerID string) (*User, error)

	// SetCustomerID persists the provider customer linkage. Writing the same
	// value again is a no-op, so redelivered events may repeat it safely.
	SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error

	// SetSubscriptionStatus updates the denormalized status mirror.
	SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus) error
}

// ProductStore reads the sellable catalog. Catalog management itself belongs
// to the excluded admin layer.
type ProductStore interface {
	// Get returns a product by id. Returns ErrProductNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Product, error)
}

// PurchaseStore persists one-time purchase facts.
type PurchaseStore interface {
	// Record inserts a purchase fact unless an identical one already exists
	// for (user, product, provider ref). Reports whether a row was inserted;
	// a duplicate delivery returns (false, nil).
	Record(ctx context.Context, purchase Purchase) (bool, error)

	// HasPaid reports whether an effective paid purchase exists for the pair.
	HasPaid(ctx context.Context, userID, productID uuid.UUID) (bool, error)

	// SetStatusByProviderRef transitions the status of the purchase recorded
	// under the given provider reference. Returns ErrPurchaseNotFound if no
	// such purchase exists.
	SetStatusByProviderRef(ctx context.Context, providerRef string, status PurchaseStatus) error
}

// SubscriptionStore persists mirrored subscription state keyed by the
// provider subscription id.
type SubscriptionStore interface {
	// Upsert writes the record unless the stored row carries a newer EventAt.
	// Reports whether the write was applied; a stale event returns
	// (false, nil) and leaves the row untouched.
	Upsert(ctx context.Context, subscription Subscription) (bool, error)

	// Get returns a subscription by provider id. Returns
	// ErrSubscriptionNotFound if absent.
	Get(ctx context.Context, id string) (*Subscription, error)

	// ListByUser returns all subscriptions attached to the user.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error)
}
