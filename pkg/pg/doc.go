// Package pg wires the application to PostgreSQL: pgx connection pooling
// with startup retry, goose SQL migrations, and a healthcheck probe.
package pg
