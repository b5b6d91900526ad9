// Package tokenstore persists delegated mailbox credentials for later use by
// the backend processing service.
//
// A Credential is keyed by the user's resolved identity (email address) and
// is written with upsert semantics: a new sign-in for the same user replaces
// the prior record in place. Records are never deleted by the dashboard; no
// revocation path exists here.
//
// Two durable implementations are provided:
//   - PostgresStore writes directly to the hosted Postgres store via pgx
//   - RESTStore posts the credential JSON to the hosted upsert endpoint
//
// MemoryStore backs tests and local development.
package tokenstore
