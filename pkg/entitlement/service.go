package entitlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dualspace/memberd/pkg/billing"
)

// Service is the public interface of the reconciliation subsystem.
type Service interface {
	// CreateCheckoutSession starts a hosted checkout for the user and product
	// and returns the redirect URL. The provider customer linkage is persisted
	// before the session is requested, so a crash in between leaves a harmless
	// orphan customer rather than an unlinked session.
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (string, error)

	// HandleEvent reconciles a verified webhook event into local state. It is
	// idempotent under redelivery and safe under out-of-order delivery. A
	// non-nil error means a transient store failure and asks the caller to
	// signal the provider for redelivery; business-level dead ends (unknown
	// user, missing metadata, unhandled type) are logged and acknowledged.
	HandleEvent(ctx context.Context, event *billing.Event) error

	// IsUnlocked answers whether the user currently has access to the product.
	IsUnlocked(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// CheckoutRequest carries the client's view of what is being bought. The
// product record is canonical; mismatching price, space, or mode is rejected
// rather than trusted.
type CheckoutRequest struct {
	ProductID    uuid.UUID
	PriceID      string
	Subscription bool
	Space        Space
}

// EventJournal is a best-effort record of already processed provider event
// ids. It only saves redundant work: correctness is carried by the idempotent
// store writes, so journal failures degrade to processing the event again.
type EventJournal interface {
	// Seen reports whether the event id has been processed before.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Record marks the event id as processed.
	Record(ctx context.Context, eventID string) error
}

type service struct {
	provider      billing.Provider
	users         UserStore
	products      ProductStore
	purchases     PurchaseStore
	subscriptions SubscriptionStore
	journal       EventJournal
	refunds       bool
	log           *slog.Logger
}

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithJournal enables best-effort dedup of redelivered events.
func WithJournal(journal EventJournal) ServiceOption {
	return func(s *service) { s.journal = journal }
}

// WithRefunds enables the refund event path: refund events transition the
// matching purchase to refunded. Off by default; whether refunds revoke
// access is a business decision, not a technical default.
func WithRefunds() ServiceOption {
	return func(s *service) { s.refunds = true }
}

// NewService creates the reconciliation service. Panics if a required
// dependency is nil to fail fast during initialization.
func NewService(provider billing.Provider, users UserStore, products ProductStore, purchases PurchaseStore, subscriptions SubscriptionStore, opts ...ServiceOption) Service {
	if provider == nil {
		panic("entitlement: billing.Provider is required")
	}
	if users == nil {
		panic("entitlement: UserStore is required")
	}
	if products == nil {
		panic("entitlement: ProductStore is required")
	}
	if purchases == nil {
		panic("entitlement: PurchaseStore is required")
	}
	if subscriptions == nil {
		panic("entitlement: SubscriptionStore is required")
	}

	s := &service{
		provider:      provider,
		users:         users,
		products:      products,
		purchases:     purchases,
		subscriptions: subscriptions,
		log:           slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (string, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Disabled {
		return "", ErrUserDisabled
	}

	product, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		return "", err
	}
	if !product.Active {
		return "", ErrProductUnavailable
	}
	if product.PriceID == "" || product.Free() {
		return "", ErrProductNotPurchasable
	}
	if req.PriceID != "" && req.PriceID != product.PriceID {
		return "", ErrPriceMismatch
	}
	if req.Space != "" && req.Space != product.Space {
		return "", ErrSpaceMismatch
	}

	recurring := product.Type == ProductSubscription
	if req.Subscription != recurring {
		return "", ErrCheckoutModeMismatch
	}

	// Lazily create the provider customer and persist the linkage BEFORE
	// requesting the session. Lifecycle events resolve users through this
	// linkage, so it must be durable by the time the session can complete.
	customerID := user.CustomerID
	if customerID == nil {
		id, err := s.provider.EnsureCustomer(ctx, billing.CustomerParams{
			UserID: user.ID.String(),
			Email:  user.Email,
		})
		if err != nil {
			return "", errors.Join(ErrCheckoutUnavailable, err)
		}
		if err := s.users.SetCustomerID(ctx, user.ID, id); err != nil {
			return "", err
		}
		customerID = &id
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID:   *customerID,
		PriceID:      product.PriceID,
		Subscription: recurring,
		Metadata: map[string]string{
			MetadataUserID:    user.ID.String(),
			MetadataProductID: product.ID.String(),
			MetadataSpace:     string(product.Space),
		},
	})
	if err != nil {
		return "", errors.Join(ErrCheckoutUnavailable, err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		"user_id", user.ID,
		"product_id", product.ID,
		"space", product.Space,
		"session_id", sess.ID,
	)

	return sess.URL, nil
}

func (s *service) HandleEvent(ctx context.Context, event *billing.Event) error {
	if event == nil {
		return nil
	}

	if s.journal != nil && event.ID != "" {
		seen, err := s.journal.Seen(ctx, event.ID)
		if err != nil {
			// Journal is best-effort: fall through and rely on idempotent writes.
			s.log.WarnContext(ctx, "event journal lookup failed", "event_id", event.ID, "error", err)
		} else if seen {
			s.log.DebugContext(ctx, "duplicate event delivery skipped", "event_id", event.ID)
			return nil
		}
	}

	var err error
	switch event.Type {
	case billing.EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		err = s.handleSubscriptionEvent(ctx, event)
	case billing.EventPaymentRefunded:
		err = s.handleRefund(ctx, event)
	default:
		// Acknowledge events we will never understand so the provider stops
		// redelivering them.
		s.log.WarnContext(ctx, "unhandled billing event acknowledged",
			"event_id", event.ID,
			"provider_type", event.ProviderType,
		)
		return nil
	}
	if err != nil {
		return err
	}

	if s.journal != nil && event.ID != "" {
		if err := s.journal.Record(ctx, event.ID); err != nil {
			s.log.WarnContext(ctx, "event journal record failed", "event_id", event.ID, "error", err)
		}
	}

	return nil
}

// handleCheckoutCompleted records a purchase fact for one-time payments and
// persists the customer linkage. Subscription checkouts only persist the
// linkage; the subscription facts themselves arrive via lifecycle events.
func (s *service) handleCheckoutCompleted(ctx context.Context, event *billing.Event) error {
	checkout := event.Checkout
	if checkout == nil {
		s.log.WarnContext(ctx, "checkout event without session payload", "event_id", event.ID)
		return nil
	}

	userID, err := uuid.Parse(checkout.Metadata[MetadataUserID])
	if err != nil {
		// No local user to attach anything to. Redelivery cannot fix a
		// payload that is missing its tags, so acknowledge.
		s.log.ErrorContext(ctx, "checkout session without resolvable user",
			"event_id", event.ID,
			"session_id", checkout.SessionID,
		)
		return nil
	}

	if checkout.CustomerID != "" {
		if err := s.users.SetCustomerID(ctx, userID, checkout.CustomerID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				s.log.ErrorContext(ctx, "checkout session references unknown user",
					"event_id", event.ID,
					"user_id", userID,
				)
				return nil
			}
			return err
		}
	}

	if checkout.Mode != billing.ModePayment {
		return nil
	}

	rawProductID := checkout.Metadata[MetadataProductID]
	if rawProductID == "" {
		s.log.WarnContext(ctx, "checkout completed without product metadata, nothing to reconcile",
			"event_id", event.ID,
			"session_id", checkout.SessionID,
		)
		return nil
	}
	productID, err := uuid.Parse(rawProductID)
	if err != nil {
		s.log.ErrorContext(ctx, "checkout session carries malformed product id",
			"event_id", event.ID,
			"product_id", rawProductID,
		)
		return nil
	}

	space, spaceErr := ParseSpace(checkout.Metadata[MetadataSpace])
	if spaceErr != nil {
		// Metadata may have been truncated; the catalog still knows the space.
		product, err := s.products.Get(ctx, productID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				s.log.ErrorContext(ctx, "checkout session references unknown product",
					"event_id", event.ID,
					"product_id", productID,
				)
				return nil
			}
			return err
		}
		space = product.Space
	}

	inserted, err := s.purchases.Record(ctx, Purchase{
		ID:          uuid.New(),
		UserID:      userID,
		ProductID:   productID,
		Status:      PurchasePaid,
		ProviderRef: checkout.PaymentRef,
		Space:       space,
		CreatedAt:   event.OccurredAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.log.DebugContext(ctx, "duplicate purchase delivery ignored",
			"event_id", event.ID,
			"user_id", userID,
			"product_id", productID,
		)
		return nil
	}

	s.log.InfoContext(ctx, "purchase recorded",
		"user_id", userID,
		"product_id", productID,
		"space", space,
		"provider_ref", checkout.PaymentRef,
	)
	return nil
}

// handleSubscriptionEvent upserts the mirrored subscription state and
// recomputes the user's denormalized status from the stored row. Created,
// updated, and deleted events share this path: deletion is just another
// status value and the row persists with terminal state.
func (s *service) handleSubscriptionEvent(ctx context.Context, event *billing.Event) error {
	sub := event.Subscription
	if sub == nil {
		s.log.WarnContext(ctx, "subscription event without payload", "event_id", event.ID)
		return nil
	}

	user, err := s.users.GetByCustomerID(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// The user record is canonical; a missing linkage is not a
			// transient condition, so drop rather than retry forever.
			s.log.ErrorContext(ctx, "subscription event for unknown customer",
				"event_id", event.ID,
				"customer_id", sub.CustomerID,
				"subscription_id", sub.ID,
			)
			return nil
		}
		return err
	}

	space, spaceErr := ParseSpace(sub.Metadata[MetadataSpace])
	if spaceErr != nil {
		// Record the subscription anyway; an unknown space entitles nothing,
		// which fails closed on the audience isolation invariant.
		s.log.WarnContext(ctx, "subscription event without valid space tag",
			"event_id", event.ID,
			"subscription_id", sub.ID,
		)
	}

	applied, err := s.subscriptions.Upsert(ctx, Subscription{
		ID:                sub.ID,
		UserID:            user.ID,
		Status:            SubscriptionStatus(sub.Status),
		PriceID:           sub.PriceID,
		Quantity:          sub.Quantity,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PeriodStart:       sub.PeriodStart,
		PeriodEnd:         sub.PeriodEnd,
		Space:             space,
		EventAt:           event.OccurredAt,
		Metadata:          sub.Metadata,
	})
	if err != nil {
		return err
	}
	if !applied {
		s.log.InfoContext(ctx, "stale subscription event ignored",
			"event_id", event.ID,
			"subscription_id", sub.ID,
			"event_at", event.OccurredAt,
		)
	}

	// Mirror from the stored row, never from the event: if the event was
	// stale, the mirror must keep reflecting the newer state already applied.
	current, err := s.subscriptions.Get(ctx, sub.ID)
	if err != nil {
		return err
	}
	if err := s.users.SetSubscriptionStatus(ctx, user.ID, current.Status); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription state reconciled",
		"subscription_id", current.ID,
		"user_id", user.ID,
		"status", current.Status,
	)
	return nil
}

func (s *service) handleRefund(ctx context.Context, event *billing.Event) error {
	if !s.refunds {
		s.log.InfoContext(ctx, "refund event acknowledged, refund handling disabled", "event_id", event.ID)
		return nil
	}

	refund := event.Refund
	if refund == nil || refund.PaymentRef == "" {
		s.log.WarnContext(ctx, "refund event without payment reference", "event_id", event.ID)
		return nil
	}

	if err := s.purchases.SetStatusByProviderRef(ctx, refund.PaymentRef, PurchaseRefunded); err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			s.log.WarnContext(ctx, "refund for unknown purchase acknowledged",
				"event_id", event.ID,
				"provider_ref", refund.PaymentRef,
			)
			return nil
		}
		return err
	}

	s.log.InfoContext(ctx, "purchase refunded", "provider_ref", refund.PaymentRef)
	return nil
}

func (s *service) IsUnlocked(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.Disabled {
		return false, nil
	}
	if user.IsAdmin {
		return true, nil
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return false, err
	}

	paid, err := s.purchases.HasPaid(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	if paid {
		return true, nil
	}

	if product.Free() {
		return true, nil
	}

	subs, err := s.subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.Space == product.Space && sub.Entitling() {
			return true, nil
		}
	}

	return false, nil
}
