package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
)

func newBulkEnrollmentClient(transport interfaces.ContractTransport) *BulkClient[api.IndividualEnrollment] {
	return NewBulkClient(transport, individualEnrollments)
}

func enrollmentBatch(ids ...string) []*api.IndividualEnrollment {
	batch := make([]*api.IndividualEnrollment, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, &api.IndividualEnrollment{RegistrationID: id})
	}
	return batch
}

func bulkWireResult(t *testing.T, result api.BulkEnrollmentOperationResult) *interfaces.Response {
	t.Helper()
	body, err := json.Marshal(result)
	require.NoError(t, err)
	return &interfaces.Response{Status: http.StatusOK, Headers: http.Header{}, Body: body}
}

// TestBulkClient_AllSucceed checks the happy path: one POST to the collection
// root, one successful outcome per input record.
func TestBulkClient_AllSucceed(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments", mock.Anything, mock.MatchedBy(func(body []byte) bool {
		var req struct {
			Mode        api.BulkOperationMode `json:"mode"`
			Enrollments []json.RawMessage     `json:"enrollments"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return false
		}
		return req.Mode == api.BulkCreate && len(req.Enrollments) == 3
	})).Return(bulkWireResult(t, api.BulkEnrollmentOperationResult{IsSuccessful: true}), nil)

	result, err := newBulkEnrollmentClient(transport).Execute(context.Background(), api.BulkCreate, enrollmentBatch("a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	require.Len(t, result.Outcomes, 3)
	for i, outcome := range result.Outcomes {
		assert.True(t, outcome.Succeeded(), "outcome %d", i)
	}
	transport.AssertExpectations(t)
}

// TestBulkClient_PartialFailureAlignsByID checks that outcomes follow input
// order even when the service reports failures out of order.
func TestBulkClient_PartialFailureAlignsByID(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments", mock.Anything, mock.Anything).
		Return(bulkWireResult(t, api.BulkEnrollmentOperationResult{
			IsSuccessful: false,
			Errors: []api.BulkEnrollmentOperationError{
				{RegistrationID: "c", ErrorCode: 409201, ErrorStatus: "record already exists"},
				{RegistrationID: "a", ErrorCode: 412001, ErrorStatus: "etag does not match"},
			},
		}), nil)

	result, err := newBulkEnrollmentClient(transport).Execute(context.Background(), api.BulkUpdate, enrollmentBatch("a", "b", "c"))
	require.NoError(t, err, "partial failure is data, not an error")
	assert.False(t, result.IsSuccessful)
	require.Len(t, result.Outcomes, 3)

	assert.Equal(t, "a", result.Outcomes[0].RegistrationID)
	require.NotNil(t, result.Outcomes[0].Error)
	assert.Equal(t, 412001, result.Outcomes[0].Error.ErrorCode)

	assert.True(t, result.Outcomes[1].Succeeded())

	assert.Equal(t, "c", result.Outcomes[2].RegistrationID)
	require.NotNil(t, result.Outcomes[2].Error)
	assert.Equal(t, 409201, result.Outcomes[2].Error.ErrorCode)
}

// TestBulkClient_UnknownErrorID checks that an error for a record outside the
// batch classifies as Malformed.
func TestBulkClient_UnknownErrorID(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments", mock.Anything, mock.Anything).
		Return(bulkWireResult(t, api.BulkEnrollmentOperationResult{
			IsSuccessful: false,
			Errors:       []api.BulkEnrollmentOperationError{{RegistrationID: "stranger", ErrorCode: 500}},
		}), nil)

	_, err := newBulkEnrollmentClient(transport).Execute(context.Background(), api.BulkUpdate, enrollmentBatch("a", "b"))
	assert.True(t, errors.Is(err, interfaces.ErrMalformed))
}

// TestBulkClient_DuplicateErrorID checks that two errors for one record
// classify as Malformed.
func TestBulkClient_DuplicateErrorID(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments", mock.Anything, mock.Anything).
		Return(bulkWireResult(t, api.BulkEnrollmentOperationResult{
			IsSuccessful: false,
			Errors: []api.BulkEnrollmentOperationError{
				{RegistrationID: "a", ErrorCode: 1},
				{RegistrationID: "a", ErrorCode: 2},
			},
		}), nil)

	_, err := newBulkEnrollmentClient(transport).Execute(context.Background(), api.BulkUpdate, enrollmentBatch("a", "b"))
	assert.True(t, errors.Is(err, interfaces.ErrMalformed))
}

// TestBulkClient_InconsistentSuccessFlag checks that a success flag
// contradicting the error list classifies as Malformed.
func TestBulkClient_InconsistentSuccessFlag(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments", mock.Anything, mock.Anything).
		Return(bulkWireResult(t, api.BulkEnrollmentOperationResult{
			IsSuccessful: true,
			Errors:       []api.BulkEnrollmentOperationError{{RegistrationID: "a", ErrorCode: 1}},
		}), nil)

	_, err := newBulkEnrollmentClient(transport).Execute(context.Background(), api.BulkUpdate, enrollmentBatch("a"))
	assert.True(t, errors.Is(err, interfaces.ErrMalformed))
}

// TestBulkClient_ValidationFailsBeforeSend checks the local preconditions:
// empty batch, missing id and missing eTag for updateIfMatchETag all fail
// without a request.
func TestBulkClient_ValidationFailsBeforeSend(t *testing.T) {
	transport := new(MockTransport)
	client := newBulkEnrollmentClient(transport)

	_, err := client.Execute(context.Background(), api.BulkCreate, nil)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	_, err = client.Execute(context.Background(), api.BulkCreate, []*api.IndividualEnrollment{{}})
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	_, err = client.Execute(context.Background(), api.BulkUpdateIfMatchETag, enrollmentBatch("a"))
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	// Duplicate ids would make id-based result reconciliation ambiguous.
	_, err = client.Execute(context.Background(), api.BulkCreate, enrollmentBatch("a", "b", "a"))
	assert.True(t, errors.Is(err, interfaces.ErrInvalidArgument))

	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestBulkClient_ServiceFault checks that a wholesale 5xx surfaces as an
// error, not a result.
func TestBulkClient_ServiceFault(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, http.MethodPost, "enrollments", mock.Anything, mock.Anything).
		Return(&interfaces.Response{Status: http.StatusInternalServerError, Headers: http.Header{}}, nil)

	result, err := newBulkEnrollmentClient(transport).Execute(context.Background(), api.BulkDelete, enrollmentBatch("a"))
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, interfaces.ErrServiceFault))
}
