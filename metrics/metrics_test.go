package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// TestObserveOperation checks the outcome-label mapping on the operations
// counter.
func TestObserveOperation(t *testing.T) {
	m := NewClientMetrics("test_client")

	m.ObserveOperation("enrollment_get", nil, 5*time.Millisecond)
	m.ObserveOperation("enrollment_get", nil, 7*time.Millisecond)
	m.ObserveOperation("enrollment_get", interfaces.ClassifyResponse(404, nil), time.Millisecond)
	m.ObserveOperation("enrollment_delete", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("enrollment_get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("enrollment_get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("enrollment_delete", "service_fault")))
}
