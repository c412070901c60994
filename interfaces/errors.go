package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Failure kinds surfaced by registry operations. Callers match them with
// errors.Is; the concrete error is a *ServiceError carrying the HTTP status
// and the service's diagnostic message where one was available.
var (
	// ErrInvalidArgument is a local validation failure. No request was issued.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound means the service reported the record absent.
	ErrNotFound = errors.New("record not found")

	// ErrPreconditionFailed means the stored eTag differs from the one the
	// caller supplied for a conditional write.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrMalformed covers bad requests as reported by the service and
	// undecodable responses.
	ErrMalformed = errors.New("malformed request or response")

	// ErrUnauthorized covers authentication and authorization failures.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrThrottled means the service rejected the request due to rate limits.
	ErrThrottled = errors.New("request throttled")

	// ErrServiceFault covers 5xx responses and unclassified statuses.
	ErrServiceFault = errors.New("service fault")

	// ErrTransport is a failure below the HTTP layer (connection, timeout).
	ErrTransport = errors.New("transport failure")

	// ErrCancelled means the caller's cancellation signal fired before the
	// operation completed.
	ErrCancelled = errors.New("operation cancelled")

	// ErrIteratorExhausted is returned by Advance on a terminal query cursor.
	ErrIteratorExhausted = errors.New("query iterator exhausted")

	// ErrClientClosed is returned by any operation attempted after the owning
	// client released its transport.
	ErrClientClosed = errors.New("client is closed")
)

// ServiceError is the concrete error type for all non-nil failures raised by
// registry operations. Kind is one of the sentinel errors above, so both
// errors.Is(err, interfaces.ErrNotFound) and inspection of Status/Message
// work.
type ServiceError struct {
	// Kind is the taxonomy sentinel this failure belongs to.
	Kind error

	// Status is the raw HTTP status code, 0 for local failures.
	Status int

	// Message is the service's diagnostic message, or a local description.
	Message string
}

// Error formats the failure with its status and diagnostic message.
func (e *ServiceError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the taxonomy sentinel to errors.Is.
func (e *ServiceError) Unwrap() error {
	return e.Kind
}

// InvalidArgument builds a local validation failure. No request was or will
// be issued for the operation that returns it.
func InvalidArgument(format string, args ...any) error {
	return &ServiceError{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// serviceErrorBody is the JSON error payload shape the service uses.
type serviceErrorBody struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

const maxDiagnosticLen = 512

// ClassifyResponse maps a non-success transport response to the error
// taxonomy. It is a pure function of the status code and the optional error
// payload; unknown statuses classify as a service fault with the raw status
// preserved for diagnostics.
func ClassifyResponse(status int, body []byte) error {
	var kind error
	switch {
	case status == 400:
		kind = ErrMalformed
	case status == 401 || status == 403:
		kind = ErrUnauthorized
	case status == 404:
		kind = ErrNotFound
	case status == 409 || status == 412:
		kind = ErrPreconditionFailed
	case status == 429:
		kind = ErrThrottled
	default:
		kind = ErrServiceFault
	}
	return &ServiceError{Kind: kind, Status: status, Message: diagnosticMessage(body)}
}

// diagnosticMessage extracts the service's error message from a response
// body, falling back to the raw (truncated) body for non-JSON payloads.
func diagnosticMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed serviceErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	if len(body) > maxDiagnosticLen {
		body = body[:maxDiagnosticLen]
	}
	return string(body)
}

// ClassifyTransportFailure wraps an error returned by a ContractTransport.
// Context cancellation and deadline expiry surface as Cancelled, everything
// else as a transport failure.
func ClassifyTransportFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Kind: ErrCancelled, Message: err.Error()}
	}
	return &ServiceError{Kind: ErrTransport, Message: err.Error()}
}

// KindLabel returns a short stable label for an operation outcome, for use as
// a metrics label value.
func KindLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrIteratorExhausted):
		return "iterator_exhausted"
	case errors.Is(err, ErrClientClosed):
		return "client_closed"
	default:
		return "service_fault"
	}
}
