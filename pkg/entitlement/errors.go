package entitlement

import "errors"

var (
	ErrUserNotFound         = errors.New("entitlement: user not found")
	ErrProductNotFound      = errors.New("entitlement: product not found")
	ErrPurchaseNotFound     = errors.New("entitlement: purchase not found")
	ErrSubscriptionNotFound = errors.New("entitlement: subscription not found")

	ErrInvalidSpace = errors.New("entitlement: invalid audience space")

	ErrUserDisabled          = errors.New("entitlement: user account is disabled")
	ErrProductUnavailable    = errors.New("entitlement: product is not available for sale")
	ErrProductNotPurchasable = errors.New("entitlement: product has no purchasable price")
	ErrPriceMismatch         = errors.New("entitlement: price does not belong to product")
	ErrSpaceMismatch         = errors.New("entitlement: audience space does not match product")
	ErrCheckoutModeMismatch  = errors.New("entitlement: checkout mode does not match product type")
	ErrCheckoutUnavailable   = errors.New("entitlement: could not start checkout")
)
