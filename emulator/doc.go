// Package emulator implements an in-memory enrollment registry service
// speaking the same wire protocol as the real one: per-kind CRUD with eTag
// issuance and If-Match enforcement, the bulk enrollment endpoint and
// paginated queries with continuation-token headers.
//
// It exists for two consumers: the module's own integration-style tests,
// which run the full client stack against it, and the cmd/emulator binary
// for local development. The query language is not implemented; every query
// matches all records.
package emulator
