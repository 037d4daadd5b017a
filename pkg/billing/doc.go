// Package billing abstracts the external payment provider behind a small
// Provider interface: ensure a customer exists, create hosted checkout
// sessions, and turn signed webhook payloads into normalized events.
//
// The Stripe implementation lives in this package (stripe.go). Consumers
// depend only on Provider and the normalized Event types, so the rest of the
// system never touches provider SDK structures.
package billing
