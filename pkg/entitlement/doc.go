// Package entitlement is the reconciliation core of the membership platform:
// it creates checkout sessions with the payment provider and converts the
// provider's asynchronously delivered webhook events into durable, locally
// queryable access facts.
//
// The design assumes nothing about delivery: events can arrive duplicated,
// concurrently, and out of order. Every write is therefore shaped to be safe
// under redelivery — purchase inserts are insert-or-ignore facts, and
// subscription upserts are full-state overwrites guarded by the provider
// event timestamp so older state can never overwrite newer state.
//
// The unlock decision (IsUnlocked) resolves in a fixed order: admin override,
// paid one-time purchase, free product, then an entitling subscription whose
// audience space matches the product's.
package entitlement
