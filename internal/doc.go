// Package internal documents the event registration server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, error envelopes, and routing
// - domain: events and users workflows, validation, and tagged errors
// - storage/postgres: pgx repositories, transactions, and migrations
// - config, metrics, telemetry: shared infrastructure
// - loadtest: concurrent registration driver used by `server loadtest`
//
// Code in internal/ is not meant for external import.
package internal
