package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// BulkOutcome is the result of one record in a bulk operation, in the same
// position as the record held in the input batch.
type BulkOutcome struct {
	// RegistrationID identifies the input record this outcome belongs to.
	RegistrationID string

	// Error is nil on success, otherwise the service's per-record failure.
	Error *api.BulkEnrollmentOperationError
}

// Succeeded reports whether the record was applied.
func (o BulkOutcome) Succeeded() bool {
	return o.Error == nil
}

// BulkResult is the decoded outcome of a bulk operation. Outcomes has
// exactly one entry per input record, in input order, regardless of the
// order the service reported failures in. IsSuccessful is true iff every
// outcome succeeded.
//
// A partially failed bulk operation is data, not an error: callers must
// inspect IsSuccessful.
type BulkResult struct {
	IsSuccessful bool
	Outcomes     []BulkOutcome
}

// BulkClient executes one mutation mode over a batch of records as a single
// request. Stateless and safe for concurrent use.
type BulkClient[T any] struct {
	transport interfaces.ContractTransport
	desc      Descriptor[T]
}

// NewBulkClient builds a bulk executor over the given transport.
func NewBulkClient[T any](transport interfaces.ContractTransport, desc Descriptor[T]) *BulkClient[T] {
	return &BulkClient[T]{transport: transport, desc: desc}
}

type bulkRequest[T any] struct {
	Mode        api.BulkOperationMode `json:"mode"`
	Enrollments []*T                  `json:"enrollments"`
}

// Execute runs one bulk operation. The batch must be non-empty, every record
// must carry an id, and mode updateIfMatchETag additionally requires every
// record to carry an eTag; violations fail with ErrInvalidArgument before
// any request is issued. Only a wholesale transport or service fault raises
// an error; per-record failures come back inside the BulkResult.
func (c *BulkClient[T]) Execute(ctx context.Context, mode api.BulkOperationMode, records []*T) (*BulkResult, error) {
	if len(records) == 0 {
		return nil, interfaces.InvalidArgument("bulk operation requires at least one record")
	}
	seen := make(map[string]struct{}, len(records))
	for i, record := range records {
		id := c.desc.ID(record)
		if id == "" {
			return nil, interfaces.InvalidArgument("bulk operation record %d has no id", i)
		}
		// Result reconciliation joins by id, so duplicates are ambiguous.
		if _, dup := seen[id]; dup {
			return nil, interfaces.InvalidArgument("bulk operation contains record %q more than once", id)
		}
		seen[id] = struct{}{}
		if mode == api.BulkUpdateIfMatchETag && c.desc.ETag(record) == "" {
			return nil, interfaces.InvalidArgument("mode %s requires record %q to carry an eTag", mode, id)
		}
	}

	body, err := json.Marshal(bulkRequest[T]{Mode: mode, Enrollments: records})
	if err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not serialize bulk operation: %v", err)}
	}

	headers := http.Header{}
	headers.Set("Content-Type", api.ContentTypeJSON)

	resp, err := c.transport.Send(ctx, http.MethodPost, c.desc.Collection, headers, body)
	if err != nil {
		return nil, interfaces.ClassifyTransportFailure(err)
	}
	if resp.Status != http.StatusOK {
		return nil, interfaces.ClassifyResponse(resp.Status, resp.Body)
	}

	var wire api.BulkEnrollmentOperationResult
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not parse bulk operation response: %v", err)}
	}

	return c.reconcile(records, &wire)
}

// reconcile joins the wire result back to the input batch by registration
// id. The service does not guarantee positional alignment of its error
// array, so position is never trusted; an error referring to an id outside
// the batch, a duplicate error for one id, or a success flag inconsistent
// with the error list all classify as Malformed.
func (c *BulkClient[T]) reconcile(records []*T, wire *api.BulkEnrollmentOperationResult) (*BulkResult, error) {
	failed := make(map[string]*api.BulkEnrollmentOperationError, len(wire.Errors))
	for i := range wire.Errors {
		e := &wire.Errors[i]
		if _, dup := failed[e.RegistrationID]; dup {
			return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("bulk result reports record %q twice", e.RegistrationID)}
		}
		failed[e.RegistrationID] = e
	}

	result := &BulkResult{Outcomes: make([]BulkOutcome, 0, len(records))}
	matched := 0
	for _, record := range records {
		id := c.desc.ID(record)
		outcome := BulkOutcome{RegistrationID: id}
		if e, ok := failed[id]; ok {
			outcome.Error = e
			matched++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	if matched != len(failed) {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: "bulk result reports records outside the input batch"}
	}

	result.IsSuccessful = len(failed) == 0
	if wire.IsSuccessful != result.IsSuccessful {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: "bulk result success flag contradicts its error list"}
	}
	return result, nil
}
