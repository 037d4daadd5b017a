// Package redis provides connection helpers for the go-redis client:
// retrying Connect, env-tagged Config, and a healthcheck probe.
package redis
