package registry

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
	"github.com/ruteri/enrollment-registry-client/metrics"
)

// Kind descriptors wiring the generic engine to the concrete wire types.
var (
	individualEnrollments = Descriptor[api.IndividualEnrollment]{
		Collection: api.EnrollmentsCollection,
		ID:         func(e *api.IndividualEnrollment) string { return e.RegistrationID },
		ETag:       func(e *api.IndividualEnrollment) string { return e.ETag },
	}

	enrollmentGroups = Descriptor[api.EnrollmentGroup]{
		Collection: api.EnrollmentGroupsCollection,
		ID:         func(g *api.EnrollmentGroup) string { return g.EnrollmentGroupID },
		ETag:       func(g *api.EnrollmentGroup) string { return g.ETag },
	}

	registrationStates = Descriptor[api.DeviceRegistrationState]{
		Collection: api.RegistrationsCollection,
		ID:         func(s *api.DeviceRegistrationState) string { return s.RegistrationID },
		ETag:       func(s *api.DeviceRegistrationState) string { return s.ETag },
	}
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Transport performs all request/response exchanges. Required.
	Transport interfaces.ContractTransport

	// Log receives debug-level operation logs. Discarded when nil.
	Log *slog.Logger

	// Metrics records per-operation outcomes and latencies. Optional.
	Metrics *metrics.ClientMetrics
}

// Client is the top-level management client for the enrollment registry. It
// exclusively owns its transport and exposes it to the record engines per
// call. All operations are safe to invoke concurrently; query iterators
// returned by the Query methods carry their own cursor state.
type Client struct {
	transport interfaces.ContractTransport
	log       *slog.Logger
	metrics   *metrics.ClientMetrics
	closed    atomic.Bool

	enrollments *RecordClient[api.IndividualEnrollment]
	groups      *RecordClient[api.EnrollmentGroup]
	states      *RecordClient[api.DeviceRegistrationState]
	bulk        *BulkClient[api.IndividualEnrollment]
}

// NewClient builds a Client over the given transport.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg.Transport == nil {
		return nil, interfaces.InvalidArgument("client requires a transport")
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		transport:   cfg.Transport,
		log:         log,
		metrics:     cfg.Metrics,
		enrollments: NewRecordClient(cfg.Transport, individualEnrollments),
		groups:      NewRecordClient(cfg.Transport, enrollmentGroups),
		states:      NewRecordClient(cfg.Transport, registrationStates),
		bulk:        NewBulkClient(cfg.Transport, individualEnrollments),
	}, nil
}

// Close releases the transport. It is idempotent; any operation after Close
// fails fast with ErrClientClosed without attempting a call.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) guard() error {
	if c.closed.Load() {
		return &interfaces.ServiceError{Kind: interfaces.ErrClientClosed}
	}
	return nil
}

// observe records the outcome of one operation.
func (c *Client) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.ObserveOperation(op, err, elapsed)
	}
	if err != nil {
		c.log.Debug("registry operation failed", "operation", op, "err", err, "duration", elapsed)
	} else {
		c.log.Debug("registry operation completed", "operation", op, "duration", elapsed)
	}
}

// CreateOrUpdateIndividualEnrollment writes an individual enrollment,
// conditionally when it carries an eTag, and returns the stored copy.
func (c *Client) CreateOrUpdateIndividualEnrollment(ctx context.Context, enrollment *api.IndividualEnrollment) (*api.IndividualEnrollment, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	stored, err := c.enrollments.CreateOrUpdate(ctx, enrollment)
	c.observe("enrollment_create_or_update", start, err)
	return stored, err
}

// GetIndividualEnrollment fetches an individual enrollment by registration id.
func (c *Client) GetIndividualEnrollment(ctx context.Context, registrationID string) (*api.IndividualEnrollment, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	stored, err := c.enrollments.Get(ctx, registrationID)
	c.observe("enrollment_get", start, err)
	return stored, err
}

// DeleteIndividualEnrollment removes an individual enrollment. An empty eTag
// or "*" deletes unconditionally.
func (c *Client) DeleteIndividualEnrollment(ctx context.Context, registrationID, etag string) error {
	if err := c.guard(); err != nil {
		return err
	}
	start := time.Now()
	err := c.enrollments.Delete(ctx, registrationID, etag)
	c.observe("enrollment_delete", start, err)
	return err
}

// CreateOrUpdateEnrollmentGroup writes an enrollment group, conditionally
// when it carries an eTag, and returns the stored copy.
func (c *Client) CreateOrUpdateEnrollmentGroup(ctx context.Context, group *api.EnrollmentGroup) (*api.EnrollmentGroup, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	stored, err := c.groups.CreateOrUpdate(ctx, group)
	c.observe("enrollment_group_create_or_update", start, err)
	return stored, err
}

// GetEnrollmentGroup fetches an enrollment group by id.
func (c *Client) GetEnrollmentGroup(ctx context.Context, groupID string) (*api.EnrollmentGroup, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	stored, err := c.groups.Get(ctx, groupID)
	c.observe("enrollment_group_get", start, err)
	return stored, err
}

// DeleteEnrollmentGroup removes an enrollment group. An empty eTag or "*"
// deletes unconditionally.
func (c *Client) DeleteEnrollmentGroup(ctx context.Context, groupID, etag string) error {
	if err := c.guard(); err != nil {
		return err
	}
	start := time.Now()
	err := c.groups.Delete(ctx, groupID, etag)
	c.observe("enrollment_group_delete", start, err)
	return err
}

// GetDeviceRegistrationState fetches a device registration state by
// registration id. States are created by the service, never by this client.
func (c *Client) GetDeviceRegistrationState(ctx context.Context, registrationID string) (*api.DeviceRegistrationState, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	stored, err := c.states.Get(ctx, registrationID)
	c.observe("registration_state_get", start, err)
	return stored, err
}

// DeleteDeviceRegistrationState removes a device registration state from the
// registry. The downstream device identity the state describes is untouched.
func (c *Client) DeleteDeviceRegistrationState(ctx context.Context, registrationID, etag string) error {
	if err := c.guard(); err != nil {
		return err
	}
	start := time.Now()
	err := c.states.Delete(ctx, registrationID, etag)
	c.observe("registration_state_delete", start, err)
	return err
}

// RunBulkEnrollmentOperation applies one mutation mode to a batch of
// individual enrollments as a single request. Partial failures are returned
// inside the BulkResult, not as an error.
func (c *Client) RunBulkEnrollmentOperation(ctx context.Context, mode api.BulkOperationMode, enrollments []*api.IndividualEnrollment) (*BulkResult, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := c.bulk.Execute(ctx, mode, enrollments)
	c.observe("enrollment_bulk_"+string(mode), start, err)
	return result, err
}

// QueryIndividualEnrollments creates a fresh iterator over the enrollments
// matching the specification. Page size 0 lets the service pick its default.
func (c *Client) QueryIndividualEnrollments(spec api.QuerySpecification, pageSize int) (*QueryIterator[api.IndividualEnrollment], error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	return newQueryIterator[api.IndividualEnrollment](c.transport, api.EnrollmentsCollection+"/query", spec, pageSize)
}

// QueryEnrollmentGroups creates a fresh iterator over the enrollment groups
// matching the specification.
func (c *Client) QueryEnrollmentGroups(spec api.QuerySpecification, pageSize int) (*QueryIterator[api.EnrollmentGroup], error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	return newQueryIterator[api.EnrollmentGroup](c.transport, api.EnrollmentGroupsCollection+"/query", spec, pageSize)
}

// QueryDeviceRegistrationStates creates a fresh iterator over the
// registration states belonging to an enrollment group.
func (c *Client) QueryDeviceRegistrationStates(groupID string, pageSize int) (*QueryIterator[api.DeviceRegistrationState], error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, interfaces.InvalidArgument("enrollment group id must not be empty")
	}
	path := api.RegistrationsCollection + "/" + groupID + "/query"
	return newQueryIterator[api.DeviceRegistrationState](c.transport, path, api.QuerySpecification{Query: "*"}, pageSize)
}
