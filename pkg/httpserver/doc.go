// Package httpserver wraps net/http with env-driven configuration, graceful
// shutdown on SIGINT/SIGTERM, and probe handlers for liveness and readiness.
package httpserver
