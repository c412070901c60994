package registry

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// MockTransport mocks the interfaces.ContractTransport interface.
type MockTransport struct {
	mock.Mock
}

// Send mocks the Send method.
func (m *MockTransport) Send(ctx context.Context, method, path string, headers http.Header, body []byte) (*interfaces.Response, error) {
	args := m.Called(ctx, method, path, headers, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Response), args.Error(1)
}
