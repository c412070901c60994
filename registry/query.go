package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// QueryIterator is a forward-only cursor over paginated query results. Each
// Advance issues exactly one request and returns one page, which may be
// empty. Once the service stops returning a continuation token the iterator
// is exhausted and further Advance calls fail with ErrIteratorExhausted
// without contacting the service.
//
// The cursor is owned exclusively by the iterator. Concurrent Advance calls
// are serialized by an internal mutex; a failed Advance leaves the cursor
// unchanged so the caller may simply retry. An iterator is not restartable —
// construct a new one from the same specification instead.
type QueryIterator[T any] struct {
	transport interfaces.ContractTransport
	path      string
	spec      api.QuerySpecification
	pageSize  int

	mu           sync.Mutex
	continuation string
	hasMore      bool
}

// newQueryIterator validates the page size and builds a cursor in the
// not-started state. Page size 0 lets the service choose its default.
func newQueryIterator[T any](transport interfaces.ContractTransport, path string, spec api.QuerySpecification, pageSize int) (*QueryIterator[T], error) {
	if pageSize < 0 {
		return nil, interfaces.InvalidArgument("query page size must not be negative, got %d", pageSize)
	}
	return &QueryIterator[T]{
		transport: transport,
		path:      path,
		spec:      spec,
		pageSize:  pageSize,
		hasMore:   true,
	}, nil
}

// Advance fetches the next page. The returned slice may be empty; HasMore
// reports whether another page may exist.
func (it *QueryIterator[T]) Advance(ctx context.Context) ([]*T, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if !it.hasMore {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrIteratorExhausted, Message: "query returned its last page"}
	}

	body, err := json.Marshal(it.spec)
	if err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not serialize query: %v", err)}
	}

	headers := http.Header{}
	headers.Set("Content-Type", api.ContentTypeJSON)
	if it.pageSize > 0 {
		headers.Set(api.PageSizeHeader, strconv.Itoa(it.pageSize))
	}
	if it.continuation != "" {
		headers.Set(api.ContinuationHeader, it.continuation)
	}

	// The cursor is only updated after a fully decoded success, so any
	// failure below leaves it valid for a retry.
	resp, err := it.transport.Send(ctx, http.MethodPost, it.path, headers, body)
	if err != nil {
		return nil, interfaces.ClassifyTransportFailure(err)
	}
	if resp.Status != http.StatusOK {
		return nil, interfaces.ClassifyResponse(resp.Status, resp.Body)
	}

	var page []*T
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, &interfaces.ServiceError{Kind: interfaces.ErrMalformed, Message: fmt.Sprintf("could not parse query response: %v", err)}
	}

	token := resp.Headers.Get(api.ContinuationHeader)
	it.continuation = token
	it.hasMore = token != ""
	return page, nil
}

// HasMore reports whether another Advance may return a page. It is false
// once the service omits the continuation token.
func (it *QueryIterator[T]) HasMore() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.hasMore
}
