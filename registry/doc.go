// Package registry implements the management-plane client for the remote
// device-provisioning registry service.
//
// The core is a record lifecycle engine generic over a kind descriptor:
// optimistic-concurrency CRUD with ETag-based conditional writes
// (RecordClient), single-request bulk mutation with per-record results
// (BulkClient) and cursor-based paginated queries (QueryIterator). Client
// wires the three engines to the typed record kinds and owns the underlying
// transport.
//
// All operations take a context.Context as the cancellation signal and are
// safe for concurrent use, except QueryIterator whose Advance calls are
// serialized internally. The engine performs no automatic retry; every
// failure is surfaced to the caller through the taxonomy in the interfaces
// package.
package registry
