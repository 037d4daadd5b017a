package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	billingpkg "github.com/dualspace/memberd/pkg/billing"
	"github.com/dualspace/memberd/pkg/entitlement"
)

// CurrentUserFunc resolves the authenticated user from the request. The
// surrounding application owns authentication; this module only needs the
// identity of the caller for checkout and access checks.
type CurrentUserFunc func(r *http.Request) (uuid.UUID, error)

// RouterOptions configures the billing module router. Service, Provider, and
// CurrentUser are required; the rest have sensible defaults.
type RouterOptions struct {
	Service     entitlement.Service
	Provider    billingpkg.Provider
	CurrentUser CurrentUserFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MaxWebhookBytes caps the webhook request body. Defaults to 64 KiB,
	// comfortably above any real provider payload.
	MaxWebhookBytes int64
}

const defaultMaxWebhookBytes = 64 << 10

// Router creates the billing module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Service:     svc,
//	    Provider:    provider,
//	    CurrentUser: sessionUserID,
//	}))
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("billing: entitlement.Service is required")
	}
	if opts.Provider == nil {
		panic("billing: billing.Provider is required")
	}
	if opts.CurrentUser == nil {
		panic("billing: CurrentUser resolver is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = defaultMaxWebhookBytes
	}

	h := &handlers{
		service:         opts.Service,
		provider:        opts.Provider,
		currentUser:     opts.CurrentUser,
		log:             opts.Logger,
		maxWebhookBytes: opts.MaxWebhookBytes,
	}

	r := chi.NewRouter()
	r.Post("/checkout", h.createCheckout)
	r.Get("/access/{productID}", h.checkAccess)
	r.Post("/webhooks/payments", h.handleWebhook)
	return r
}
