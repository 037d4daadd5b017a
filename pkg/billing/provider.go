package billing

import "context"

// Provider defines the minimal payment provider surface the reconciliation
// subsystem needs. Hosted checkout and webhooks keep all card handling on the
// provider's side; the application only ever sees identifiers and events.
type Provider interface {
	// EnsureCustomer returns the provider customer id for the given user,
	// creating the billing relationship if none exists yet.
	EnsureCustomer(ctx context.Context, params CustomerParams) (string, error)

	// CreateCheckoutSession creates a hosted checkout session for a one-time
	// or recurring purchase. The session carries the supplied metadata so
	// webhook events can be reconciled without a local session lookup table.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// ParseWebhook verifies the signature against the exact raw payload bytes
	// and returns a normalized event. Verification must happen before any
	// JSON decoding of the body.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// CustomerParams identifies the local user a billing relationship belongs to.
type CustomerParams struct {
	UserID string // local user id, stored in provider-side metadata
	Email  string // used to find an existing customer record
}

// CheckoutParams describes a checkout session to create.
type CheckoutParams struct {
	CustomerID   string            // provider customer id
	PriceID      string            // provider price id
	Subscription bool              // recurring when true, one-time otherwise
	Metadata     map[string]string // reconciliation tags, echoed back in events
}

// CheckoutSession is a created hosted checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}
