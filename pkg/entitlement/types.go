package entitlement

import (
	"fmt"
	"slices"
)

// Space is one of the two independently branded audiences. Products and
// subscriptions in one space never unlock content in the other.
type Space string

const (
	SpaceKids   Space = "kids"
	SpaceAdults Space = "adults"
)

// ParseSpace converts a raw tag into a Space, rejecting anything outside the
// closed set.
func ParseSpace(raw string) (Space, error) {
	switch Space(raw) {
	case SpaceKids, SpaceAdults:
		return Space(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSpace, raw)
	}
}

// ProductType is the shape of a sellable unit.
type ProductType string

const (
	ProductPack         ProductType = "pack"
	ProductSubscription ProductType = "subscription"
	ProductCoaching     ProductType = "coaching"
	ProductCourse       ProductType = "course"
)

// PurchaseStatus is the state of a one-time purchase fact.
type PurchaseStatus string

const (
	PurchasePaid     PurchaseStatus = "paid"
	PurchaseRefunded PurchaseStatus = "refunded"
)

// SubscriptionStatus mirrors the provider's subscription states.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCanceled   SubscriptionStatus = "canceled"
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusUnpaid     SubscriptionStatus = "unpaid"
)

// EntitlingStatuses is the set of subscription states that grant access.
// This is a policy decision, kept in one place on purpose.
var EntitlingStatuses = []SubscriptionStatus{StatusActive, StatusTrialing}

// Entitling reports whether the status grants access.
func (s SubscriptionStatus) Entitling() bool {
	return slices.Contains(EntitlingStatuses, s)
}

// Metadata keys attached to checkout sessions at creation time and read back
// from webhook events. They are the only link between a provider event and
// local business context, so webhook handlers never need a session lookup.
const (
	MetadataUserID    = "user_id"
	MetadataProductID = "product_id"
	MetadataSpace     = "space"
)
