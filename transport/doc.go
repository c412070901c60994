// Package transport provides the default ContractTransport implementation:
// plain net/http request/response exchange against the registry service,
// with shared-access-signature authentication derived from a service
// connection string and the api-version parameter applied to every request.
package transport
