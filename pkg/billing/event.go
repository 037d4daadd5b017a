package billing

import "time"

// EventType is the normalized billing event type. Provider implementations
// map their own event names to these; anything else becomes EventUnknown.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventSubscriptionCreated EventType = "subscription_created"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentRefunded     EventType = "payment_refunded"
	EventUnknown             EventType = "unknown"
)

// CheckoutMode distinguishes one-time payments from subscription checkouts.
type CheckoutMode string

const (
	ModePayment      CheckoutMode = "payment"
	ModeSubscription CheckoutMode = "subscription"
)

// Event is a verified, normalized webhook event. Exactly one of the payload
// pointers is set depending on Type; EventUnknown carries none.
type Event struct {
	ID           string    // provider event id, used for dedup journaling
	Type         EventType // normalized type
	ProviderType string    // original provider event name
	OccurredAt   time.Time // when the event occurred at the provider

	Checkout     *CheckoutInfo
	Subscription *SubscriptionInfo
	Refund       *RefundInfo
}

// CheckoutInfo is the payload of a completed checkout session event.
type CheckoutInfo struct {
	SessionID  string
	Mode       CheckoutMode
	CustomerID string            // provider customer id, may be empty
	PaymentRef string            // payment intent reference for one-time payments
	Metadata   map[string]string // reconciliation tags set at session creation
}

// SubscriptionInfo is the payload of a subscription lifecycle event.
type SubscriptionInfo struct {
	ID                string // provider subscription id, the natural upsert key
	CustomerID        string
	Status            string
	PriceID           string
	Quantity          int64
	CancelAtPeriodEnd bool
	PeriodStart       time.Time
	PeriodEnd         time.Time
	Metadata          map[string]string
}

// RefundInfo is the payload of a refund event.
type RefundInfo struct {
	PaymentRef string // payment intent reference of the refunded charge
}
