package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/enrollment-registry-client/api"
	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// defaultTokenTTL bounds how long a generated SAS token stays valid.
const defaultTokenTTL = time.Hour

// HTTPTransport implements interfaces.ContractTransport over net/http. It is
// safe for concurrent use and owns no per-request state beyond the request
// itself.
type HTTPTransport struct {
	// Client is the HTTP client used for all requests. http.DefaultClient
	// when nil. The client's timeout acts as the default end-to-end bound;
	// callers cancel individual requests through their context.
	Client *http.Client

	baseURL    string
	connString *ConnectionString
	tokenTTL   time.Duration
	closed     atomic.Bool
}

// NewHTTPTransport builds an authenticated transport from a service
// connection string.
func NewHTTPTransport(connectionString string) (*HTTPTransport, error) {
	cs, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("could not parse connection string: %w", err)
	}
	return &HTTPTransport{
		baseURL:    "https://" + cs.HostName,
		connString: cs,
		tokenTTL:   defaultTokenTTL,
	}, nil
}

// NewHTTPTransportForEndpoint builds an unauthenticated transport against an
// explicit endpoint URL. Intended for the emulator and local development.
func NewHTTPTransportForEndpoint(endpoint string) *HTTPTransport {
	return &HTTPTransport{baseURL: endpoint, tokenTTL: defaultTokenTTL}
}

// Send performs one request/response exchange. The api-version parameter and
// the Authorization header are added here; everything else comes from the
// caller. The response body is fully read before returning.
func (t *HTTPTransport) Send(ctx context.Context, method, path string, headers http.Header, body []byte) (*interfaces.Response, error) {
	if t.closed.Load() {
		return nil, errors.New("transport is closed")
	}

	url := fmt.Sprintf("%s/%s?api-version=%s", t.baseURL, path, api.ServiceAPIVersion)

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if t.connString != nil {
		req.Header.Set("Authorization", sasToken(t.connString, t.connString.HostName, time.Now().Add(t.tokenTTL)))
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request registry: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read registry response: %w", err)
	}

	return &interfaces.Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    respBody,
	}, nil
}

// Close releases idle connections. Idempotent; Send fails after Close.
func (t *HTTPTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.Client != nil {
		t.Client.CloseIdleConnections()
	}
	return nil
}
