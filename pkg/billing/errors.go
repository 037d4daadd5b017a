package billing

import "errors"

var (
	ErrMissingSecretKey          = errors.New("billing: provider secret key is required")
	ErrMissingWebhookSecret      = errors.New("billing: webhook signing secret is required")
	ErrMissingCustomerID         = errors.New("billing: customer id is required")
	ErrMissingPriceID            = errors.New("billing: price id is required")
	ErrProviderUnavailable       = errors.New("billing: provider request failed")
	ErrNoCheckoutURL             = errors.New("billing: no checkout URL returned by provider")
	ErrWebhookVerificationFailed = errors.New("billing: webhook signature verification failed")
	ErrMalformedEventPayload     = errors.New("billing: malformed event payload")
)
