// Package api defines the wire payload types and protocol constants of the
// device-provisioning registry service: the three managed record kinds
// (individual enrollments, enrollment groups, device registration states),
// the bulk operation envelope and the query specification.
//
// Attestation payloads are carried as typed but shallow structures; their
// internals (TPM endorsement keys, X.509 chains) are opaque to this client
// and validated only by the service.
package api
