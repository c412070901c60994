package interfaces

import (
	"context"
	"net/http"
)

// Response is the outcome of a single transport exchange. Body is fully read
// by the transport; callers never deal with streams.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// ContractTransport performs a single request/response exchange with the
// remote registry service. Implementations handle connection setup,
// authentication signing and the api-version parameter; callers supply the
// verb, the collection-relative path and any conditional-write headers.
//
// A transport-level failure (connection, timeout) is returned as a plain
// error; an HTTP-level failure is returned as a Response with a non-2xx
// status. Implementations must honor ctx cancellation and abort the in-flight
// request when it fires.
//
// Transports are shared read-only across concurrent calls and must be safe
// for concurrent use.
type ContractTransport interface {
	Send(ctx context.Context, method, path string, headers http.Header, body []byte) (*Response, error)
}
