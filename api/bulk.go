package api

// BulkOperationMode selects the mutation applied to every record in a bulk
// operation.
type BulkOperationMode string

const (
	// BulkCreate inserts records; existing ids are reported as per-record errors.
	BulkCreate BulkOperationMode = "create"

	// BulkUpdate upserts records unconditionally.
	BulkUpdate BulkOperationMode = "update"

	// BulkUpdateIfMatchETag updates records conditionally on each record's
	// eTag. Every record in the batch must carry one.
	BulkUpdateIfMatchETag BulkOperationMode = "updateIfMatchETag"

	// BulkDelete removes records; missing ids are reported as per-record errors.
	BulkDelete BulkOperationMode = "delete"
)

// BulkEnrollmentOperationError is one failed record in a bulk operation
// result. The service aligns errors by registration id, not by the position
// of the record in the request.
type BulkEnrollmentOperationError struct {
	RegistrationID string `json:"registrationId"`
	ErrorCode      int    `json:"errorCode"`
	ErrorStatus    string `json:"errorStatus"`
}

// BulkEnrollmentOperationResult is the wire shape of a bulk operation
// response. IsSuccessful is true iff Errors is empty.
type BulkEnrollmentOperationResult struct {
	IsSuccessful bool                           `json:"isSuccessful"`
	Errors       []BulkEnrollmentOperationError `json:"errors"`
}
