package registry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
)

func pageResponse(body, continuation string) *interfaces.Response {
	headers := http.Header{}
	if continuation != "" {
		headers.Set(api.ContinuationHeader, continuation)
	}
	return &interfaces.Response{Status: http.StatusOK, Headers: headers, Body: []byte(body)}
}

func newEnrollmentIterator(t *testing.T, transport interfaces.ContractTransport, pageSize int) *QueryIterator[api.IndividualEnrollment] {
	t.Helper()
	iter, err := newQueryIterator[api.IndividualEnrollment](transport, "enrollments/query", api.QuerySpecification{Query: "SELECT *"}, pageSize)
	require.NoError(t, err)
	return iter
}

// TestQueryIterator_Pagination walks a three-page result set and checks the
// continuation token round-trip plus terminal exhaustion.
func TestQueryIterator_Pagination(t *testing.T) {
	transport := new(MockTransport)

	// First page: no continuation header sent, token "2" returned.
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.MatchedBy(func(h http.Header) bool {
		return h.Get(api.ContinuationHeader) == "" && h.Get(api.PageSizeHeader) == "2"
	}), mock.Anything).Return(pageResponse(`[{"registrationId":"a"},{"registrationId":"b"}]`, "2"), nil).Once()

	// Second page: token "2" echoed back, token "4" returned.
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.MatchedBy(func(h http.Header) bool {
		return h.Get(api.ContinuationHeader) == "2"
	}), mock.Anything).Return(pageResponse(`[{"registrationId":"c"},{"registrationId":"d"}]`, "4"), nil).Once()

	// Last page: no token returned.
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.MatchedBy(func(h http.Header) bool {
		return h.Get(api.ContinuationHeader) == "4"
	}), mock.Anything).Return(pageResponse(`[{"registrationId":"e"}]`, ""), nil).Once()

	iter := newEnrollmentIterator(t, transport, 2)

	var seen []string
	for iter.HasMore() {
		page, err := iter.Advance(context.Background())
		require.NoError(t, err)
		for _, record := range page {
			seen = append(seen, record.RegistrationID)
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)

	// The cursor is terminal: no further request is issued.
	_, err := iter.Advance(context.Background())
	assert.True(t, errors.Is(err, interfaces.ErrIteratorExhausted))
	transport.AssertNumberOfCalls(t, "Send", 3)
}

// TestQueryIterator_EmptyResultSet checks that an empty registry yields one
// empty page and then exhaustion.
func TestQueryIterator_EmptyResultSet(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.Anything, mock.Anything).
		Return(pageResponse(`[]`, ""), nil).Once()

	iter := newEnrollmentIterator(t, transport, 0)
	require.True(t, iter.HasMore(), "a fresh iterator has not started")

	page, err := iter.Advance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, iter.HasMore())

	_, err = iter.Advance(context.Background())
	assert.True(t, errors.Is(err, interfaces.ErrIteratorExhausted))
}

// TestQueryIterator_DefaultPageSizeOmitsHeader checks that page size 0 leaves
// the choice to the service.
func TestQueryIterator_DefaultPageSizeOmitsHeader(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.MatchedBy(func(h http.Header) bool {
		_, present := h[http.CanonicalHeaderKey(api.PageSizeHeader)]
		return !present
	}), mock.Anything).Return(pageResponse(`[]`, ""), nil)

	_, err := newEnrollmentIterator(t, transport, 0).Advance(context.Background())
	require.NoError(t, err)
	transport.AssertExpectations(t)
}

// TestQueryIterator_NegativePageSize checks construction-time validation.
func TestQueryIterator_NegativePageSize(t *testing.T) {
	_, err := newQueryIterator[api.IndividualEnrollment](new(MockTransport), "enrollments/query", api.QuerySpecification{}, -1)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))
}

// TestQueryIterator_FailedAdvanceIsRetryable checks that a throttled page
// leaves the cursor unchanged so a retry resumes from the same position.
func TestQueryIterator_FailedAdvanceIsRetryable(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.Anything, mock.Anything).
		Return(&interfaces.Response{Status: http.StatusTooManyRequests, Headers: http.Header{}}, nil).Once()
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.MatchedBy(func(h http.Header) bool {
		// The retry must still be the first page: no continuation token.
		return h.Get(api.ContinuationHeader) == ""
	}), mock.Anything).Return(pageResponse(`[{"registrationId":"a"}]`, ""), nil).Once()

	iter := newEnrollmentIterator(t, transport, 0)

	_, err := iter.Advance(context.Background())
	require.True(t, errors.Is(err, interfaces.ErrThrottled))
	require.True(t, iter.HasMore(), "a failed advance must not exhaust the cursor")

	page, err := iter.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].RegistrationID)
	transport.AssertExpectations(t)
}

// pagedTransport serves a fixed page sequence keyed by continuation token and
// counts how often each token is requested. A token requested twice or an
// unknown token means the iterator corrupted its cursor.
type pagedTransport struct {
	mu     sync.Mutex
	pages  map[string]queryPage
	served map[string]int
}

type queryPage struct {
	body string
	next string
}

func (p *pagedTransport) Send(ctx context.Context, method, path string, headers http.Header, body []byte) (*interfaces.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := headers.Get(api.ContinuationHeader)
	page, ok := p.pages[token]
	if !ok {
		return errorResponse(http.StatusBadRequest, `{"message":"unknown continuation token"}`), nil
	}
	p.served[token]++
	return pageResponse(page.body, page.next), nil
}

// TestQueryIterator_ConcurrentAdvance drains one iterator from several
// goroutines at once. Serialization of the shared cursor means every record
// is observed exactly once and every continuation token is requested exactly
// once.
func TestQueryIterator_ConcurrentAdvance(t *testing.T) {
	transport := &pagedTransport{
		pages: map[string]queryPage{
			"":   {body: `[{"registrationId":"a"},{"registrationId":"b"}]`, next: "t1"},
			"t1": {body: `[{"registrationId":"c"},{"registrationId":"d"}]`, next: "t2"},
			"t2": {body: `[{"registrationId":"e"},{"registrationId":"f"}]`, next: "t3"},
			"t3": {body: `[{"registrationId":"g"},{"registrationId":"h"}]`, next: "t4"},
			"t4": {body: `[{"registrationId":"i"},{"registrationId":"j"}]`, next: ""},
		},
		served: make(map[string]int),
	}
	iter := newEnrollmentIterator(t, transport, 2)

	var seenMu sync.Mutex
	var seen []string

	const workers = 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				page, err := iter.Advance(context.Background())
				if errors.Is(err, interfaces.ErrIteratorExhausted) {
					return
				}
				assert.NoError(t, err)
				seenMu.Lock()
				for _, record := range page {
					seen = append(seen, record.RegistrationID)
				}
				seenMu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, seen,
		"every record observed exactly once")
	for token, count := range transport.served {
		assert.Equal(t, 1, count, "token %q requested once", token)
	}
	assert.Len(t, transport.served, 5, "every page fetched")
	assert.False(t, iter.HasMore())
}

// TestQueryIterator_UndecodablePageIsRetryable checks that a garbage body
// classifies as Malformed without moving the cursor.
func TestQueryIterator_UndecodablePageIsRetryable(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments/query", mock.Anything, mock.Anything).
		Return(pageResponse(`[{`, "9"), nil).Once()

	iter := newEnrollmentIterator(t, transport, 0)
	_, err := iter.Advance(context.Background())
	assert.True(t, errors.Is(err, interfaces.ErrMalformed))
	assert.True(t, iter.HasMore())
}
