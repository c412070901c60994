package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// Descriptor tells the generic engine how to address and version one record
// kind. It replaces a type hierarchy per kind: the engine only ever needs the
// collection path and accessors for the id and eTag fields.
type Descriptor[T any] struct {
	// Collection is the URL path segment for the kind, e.g. "enrollments".
	Collection string

	// ID extracts the record identifier.
	ID func(*T) string

	// ETag extracts the record's optimistic-concurrency token.
	ETag func(*T) string
}

// RecordClient implements single-record optimistic-concurrency CRUD for one
// record kind. It is stateless and safe for concurrent use; each call owns
// its own request/response lifecycle.
type RecordClient[T any] struct {
	transport interfaces.ContractTransport
	desc      Descriptor[T]
}

// NewRecordClient builds a record client over the given transport.
func NewRecordClient[T any](transport interfaces.ContractTransport, desc Descriptor[T]) *RecordClient[T] {
	return &RecordClient[T]{transport: transport, desc: desc}
}

// CreateOrUpdate writes the record and returns the service's copy carrying a
// fresh eTag. If the record carries an eTag the write is conditional on it;
// a stale eTag fails with ErrPreconditionFailed.
func (c *RecordClient[T]) CreateOrUpdate(ctx context.Context, record *T) (*T, error) {
	id := c.desc.ID(record)
	if id == "" {
		return nil, interfaces.InvalidArgument("%s record id must not be empty", c.desc.Collection)
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not serialize %s record: %v", c.desc.Collection, err)}
	}

	headers := http.Header{}
	headers.Set("Content-Type", api.ContentTypeJSON)
	if etag := c.desc.ETag(record); etag != "" {
		headers.Set(api.IfMatchHeader, quoteETag(etag))
	}

	resp, err := c.transport.Send(ctx, http.MethodPut, recordPath(c.desc.Collection, id), headers, body)
	if err != nil {
		return nil, interfaces.ClassifyTransportFailure(err)
	}
	if resp.Status != http.StatusOK {
		return nil, interfaces.ClassifyResponse(resp.Status, resp.Body)
	}

	var stored T
	if err := json.Unmarshal(resp.Body, &stored); err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not parse %s response: %v", c.desc.Collection, err)}
	}
	return &stored, nil
}

// Get fetches the record by id. Absent records fail with ErrNotFound.
func (c *RecordClient[T]) Get(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, interfaces.InvalidArgument("%s record id must not be empty", c.desc.Collection)
	}

	resp, err := c.transport.Send(ctx, http.MethodGet, recordPath(c.desc.Collection, id), nil, nil)
	if err != nil {
		return nil, interfaces.ClassifyTransportFailure(err)
	}
	if resp.Status != http.StatusOK {
		return nil, interfaces.ClassifyResponse(resp.Status, resp.Body)
	}

	var stored T
	if err := json.Unmarshal(resp.Body, &stored); err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not parse %s response: %v", c.desc.Collection, err)}
	}
	return &stored, nil
}

// Delete removes the record from the registry. An empty eTag or "*" deletes
// unconditionally; any other value makes the delete conditional on the
// stored eTag. Deletion never touches anything outside the registry entry
// itself.
func (c *RecordClient[T]) Delete(ctx context.Context, id, etag string) error {
	if id == "" {
		return interfaces.InvalidArgument("%s record id must not be empty", c.desc.Collection)
	}

	headers := http.Header{}
	if etag != "" && etag != "*" {
		headers.Set(api.IfMatchHeader, quoteETag(etag))
	}

	resp, err := c.transport.Send(ctx, http.MethodDelete, recordPath(c.desc.Collection, id), headers, nil)
	if err != nil {
		return interfaces.ClassifyTransportFailure(err)
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusNoContent {
		return interfaces.ClassifyResponse(resp.Status, resp.Body)
	}
	return nil
}

func recordPath(collection, id string) string {
	return collection + "/" + id
}

// quoteETag wraps an eTag in double quotes as the If-Match grammar requires,
// leaving already-quoted values untouched.
func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`) && len(etag) >= 2 {
		return etag
	}
	return `"` + etag + `"`
}
