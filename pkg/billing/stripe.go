package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/customer"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeConfig holds Stripe credentials and the public application URL used
// to build post-checkout redirect targets.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
	PublicURL     string `env:"APP_PUBLIC_URL,required"`
}

// StripeProvider implements Provider on top of the Stripe SDK.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a Stripe-backed billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if config.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	stripe.Key = config.SecretKey

	return &StripeProvider{config: config}, nil
}

// EnsureCustomer looks up an existing customer by email and creates one when
// none is found. The local user id is stored in customer metadata so support
// staff can trace billing records back to accounts.
func (p *StripeProvider) EnsureCustomer(ctx context.Context, params CustomerParams) (string, error) {
	if params.Email != "" {
		listParams := &stripe.CustomerListParams{Email: stripe.String(params.Email)}
		listParams.Context = ctx
		listParams.Limit = stripe.Int64(1)

		iter := customer.List(listParams)
		for iter.Next() {
			return iter.Customer().ID, nil
		}
		if err := iter.Err(); err != nil {
			return "", errors.Join(ErrProviderUnavailable, err)
		}
	}

	custParams := &stripe.CustomerParams{}
	custParams.Context = ctx
	if params.Email != "" {
		custParams.Email = stripe.String(params.Email)
	}
	if params.UserID != "" {
		custParams.AddMetadata("user_id", params.UserID)
	}

	cust, err := customer.New(custParams)
	if err != nil {
		return "", errors.Join(ErrProviderUnavailable, err)
	}

	return cust.ID, nil
}

// CreateCheckoutSession creates a hosted checkout session. Metadata is set on
// the session and mirrored onto the payment intent or subscription so every
// downstream event carries the reconciliation tags.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if params.CustomerID == "" {
		return nil, ErrMissingCustomerID
	}
	if params.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	mode := stripe.CheckoutSessionModePayment
	if params.Subscription {
		mode = stripe.CheckoutSessionModeSubscription
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Customer: stripe.String(params.CustomerID),
		Mode:     stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.config.PublicURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.config.PublicURL + "/checkout/cancel"),
	}
	sessionParams.Context = ctx
	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	if params.Subscription {
		sessionParams.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: params.Metadata,
		}
	} else {
		sessionParams.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: params.Metadata,
		}
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw payload
// bytes and normalizes the event. Unrecognized event types come back as
// EventUnknown with no payload so the caller can acknowledge them.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		p.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}

	event := &Event{
		ID:           stripeEvent.ID,
		Type:         mapStripeEventType(string(stripeEvent.Type)),
		ProviderType: string(stripeEvent.Type),
		OccurredAt:   time.Unix(stripeEvent.Created, 0).UTC(),
	}

	switch event.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, errors.Join(ErrMalformedEventPayload, err)
		}
		info := &CheckoutInfo{
			SessionID: sess.ID,
			Mode:      CheckoutMode(sess.Mode),
			Metadata:  sess.Metadata,
		}
		if sess.Customer != nil {
			info.CustomerID = sess.Customer.ID
		}
		if sess.PaymentIntent != nil {
			info.PaymentRef = sess.PaymentIntent.ID
		}
		event.Checkout = info

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEventPayload, err)
		}
		info := &SubscriptionInfo{
			ID:                sub.ID,
			Status:            string(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			PeriodEnd:         time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
			Metadata:          sub.Metadata,
		}
		if sub.Customer != nil {
			info.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			if item.Price != nil {
				info.PriceID = item.Price.ID
			}
			info.Quantity = item.Quantity
		}
		event.Subscription = info

	case EventPaymentRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(stripeEvent.Data.Raw, &charge); err != nil {
			return nil, errors.Join(ErrMalformedEventPayload, err)
		}
		if charge.PaymentIntent != nil {
			event.Refund = &RefundInfo{PaymentRef: charge.PaymentIntent.ID}
		}
	}

	return event, nil
}

func mapStripeEventType(stripeType string) EventType {
	switch stripeType {
	case "checkout.session.completed":
		return EventCheckoutCompleted
	case "customer.subscription.created":
		return EventSubscriptionCreated
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	case "charge.refunded":
		return EventPaymentRefunded
	default:
		return EventUnknown
	}
}
