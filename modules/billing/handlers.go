package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	billingpkg "github.com/dualspace/memberd/pkg/billing"
	"github.com/dualspace/memberd/pkg/entitlement"
)

type handlers struct {
	service         entitlement.Service
	provider        billingpkg.Provider
	currentUser     CurrentUserFunc
	log             *slog.Logger
	maxWebhookBytes int64
}

type checkoutRequest struct {
	ProductID    uuid.UUID `json:"product_id"`
	PriceID      string    `json:"price_id,omitempty"`
	Subscription bool      `json:"subscription"`
	Space        string    `json:"space,omitempty"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

type accessResponse struct {
	Unlocked bool `json:"unlocked"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := h.currentUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if req.ProductID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "product_id is required"})
		return
	}

	var space entitlement.Space
	if req.Space != "" {
		space, err = entitlement.ParseSpace(req.Space)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown space"})
			return
		}
	}

	url, err := h.service.CreateCheckoutSession(r.Context(), userID, entitlement.CheckoutRequest{
		ProductID:    req.ProductID,
		PriceID:      req.PriceID,
		Subscription: req.Subscription,
		Space:        space,
	})
	if err != nil {
		status := checkoutStatus(err)
		if status == http.StatusInternalServerError || status == http.StatusBadGateway {
			h.log.ErrorContext(r.Context(), "checkout session creation failed",
				"user_id", userID,
				"product_id", req.ProductID,
				"error", err,
			)
		}
		writeJSON(w, status, errorResponse{Error: publicError(err, status)})
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

func (h *handlers) checkAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := h.currentUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed product id"})
		return
	}

	unlocked, err := h.service.IsUnlocked(r.Context(), userID, productID)
	if err != nil {
		switch {
		case errors.Is(err, entitlement.ErrUserNotFound), errors.Is(err, entitlement.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		default:
			h.log.ErrorContext(r.Context(), "access check failed",
				"user_id", userID,
				"product_id", productID,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, accessResponse{Unlocked: unlocked})
}

// handleWebhook verifies, normalizes, and reconciles a provider event. The
// response code is the redelivery contract: 2xx acknowledges the event, 4xx
// rejects an unverifiable request, and 5xx asks the provider to redeliver.
func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxWebhookBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable payload"})
		return
	}

	event, err := h.provider.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.WarnContext(r.Context(), "webhook rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid webhook"})
		return
	}

	if err := h.service.HandleEvent(r.Context(), event); err != nil {
		h.log.ErrorContext(r.Context(), "webhook reconciliation failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "reconciliation failed"})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, entitlement.ErrUserNotFound), errors.Is(err, entitlement.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, entitlement.ErrUserDisabled):
		return http.StatusForbidden
	case errors.Is(err, entitlement.ErrProductUnavailable),
		errors.Is(err, entitlement.ErrProductNotPurchasable),
		errors.Is(err, entitlement.ErrPriceMismatch),
		errors.Is(err, entitlement.ErrSpaceMismatch),
		errors.Is(err, entitlement.ErrCheckoutModeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entitlement.ErrCheckoutUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicError keeps provider internals out of client responses.
func publicError(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "checkout is temporarily unavailable"
	}
	switch {
	case errors.Is(err, entitlement.ErrUserNotFound), errors.Is(err, entitlement.ErrProductNotFound):
		return "not found"
	case errors.Is(err, entitlement.ErrUserDisabled):
		return "account disabled"
	case errors.Is(err, entitlement.ErrProductUnavailable):
		return "product is not available"
	case errors.Is(err, entitlement.ErrProductNotPurchasable):
		return "product cannot be purchased"
	case errors.Is(err, entitlement.ErrPriceMismatch):
		return "price does not match the catalog"
	case errors.Is(err, entitlement.ErrSpaceMismatch):
		return "space does not match the catalog"
	case errors.Is(err, entitlement.ErrCheckoutModeMismatch):
		return "checkout mode does not match the product"
	default:
		return "request rejected"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
