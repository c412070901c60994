package api

// Protocol constants shared by the record engine, the default transport and
// the emulator.
const (
	// ServiceAPIVersion is the api-version query parameter sent on every request.
	ServiceAPIVersion = "2021-10-01"

	// IfMatchHeader carries the eTag precondition for conditional writes.
	IfMatchHeader = "If-Match"

	// ETagHeader carries the record's current eTag on responses.
	ETagHeader = "ETag"

	// ContinuationHeader carries the opaque pagination token, on query
	// requests and responses. Absent on a response means the query is
	// exhausted.
	ContinuationHeader = "x-ms-continuation"

	// PageSizeHeader requests a maximum page size for a query. Absent means
	// the service picks its default.
	PageSizeHeader = "x-ms-max-item-count"

	// ContentTypeJSON is the content type for all request bodies.
	ContentTypeJSON = "application/json; charset=utf-8"
)

// URL path segments for the record collections.
const (
	EnrollmentsCollection      = "enrollments"
	EnrollmentGroupsCollection = "enrollmentGroups"
	RegistrationsCollection    = "registrations"
)
