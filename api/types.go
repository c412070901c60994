package api

import "encoding/json"

// ProvisioningStatus controls whether a record participates in provisioning.
type ProvisioningStatus string

const (
	ProvisioningEnabled  ProvisioningStatus = "enabled"
	ProvisioningDisabled ProvisioningStatus = "disabled"
)

// RegistrationStatus is the device-side progress reported in a registration state.
type RegistrationStatus string

const (
	RegistrationUnassigned RegistrationStatus = "unassigned"
	RegistrationAssigning  RegistrationStatus = "assigning"
	RegistrationAssigned   RegistrationStatus = "assigned"
	RegistrationFailed     RegistrationStatus = "failed"
	RegistrationDisabled   RegistrationStatus = "disabled"
)

// AttestationMechanism selects how a device proves its identity during
// provisioning. Exactly one of the payload fields matching Type is set.
type AttestationMechanism struct {
	// Type is one of "tpm", "x509" or "symmetricKey".
	Type string `json:"type"`

	TPM          *TPMAttestation          `json:"tpm,omitempty"`
	X509         *X509Attestation         `json:"x509,omitempty"`
	SymmetricKey *SymmetricKeyAttestation `json:"symmetricKey,omitempty"`
}

// TPMAttestation carries TPM endorsement material. The keys are opaque
// base64 blobs verified by the service.
type TPMAttestation struct {
	EndorsementKey string `json:"endorsementKey"`
	StorageRootKey string `json:"storageRootKey,omitempty"`
}

// X509Attestation carries certificate material as opaque JSON; this client
// never inspects certificate contents.
type X509Attestation struct {
	ClientCertificates  json.RawMessage `json:"clientCertificates,omitempty"`
	SigningCertificates json.RawMessage `json:"signingCertificates,omitempty"`
	CAReferences        json.RawMessage `json:"caReferences,omitempty"`
}

// SymmetricKeyAttestation carries base64-encoded shared keys.
type SymmetricKeyAttestation struct {
	PrimaryKey   string `json:"primaryKey,omitempty"`
	SecondaryKey string `json:"secondaryKey,omitempty"`
}

// IndividualEnrollment authorizes a single device to register.
//
// A record read from the service always carries a non-empty ETag; a record
// submitted for creation may leave it empty. The timestamps are
// service-assigned.
type IndividualEnrollment struct {
	RegistrationID     string               `json:"registrationId"`
	DeviceID           string               `json:"deviceId,omitempty"`
	Attestation        AttestationMechanism `json:"attestation"`
	IotHubHostName     string               `json:"iotHubHostName,omitempty"`
	InitialTwin        json.RawMessage      `json:"initialTwin,omitempty"`
	ProvisioningStatus ProvisioningStatus   `json:"provisioningStatus,omitempty"`
	ETag               string               `json:"etag,omitempty"`
	CreatedDateTimeUTC string               `json:"createdDateTimeUtc,omitempty"`
	LastUpdatedUTC     string               `json:"lastUpdatedDateTimeUtc,omitempty"`
}

// EnrollmentGroup authorizes a fleet of devices sharing a signing
// certificate or group key to register.
type EnrollmentGroup struct {
	EnrollmentGroupID  string               `json:"enrollmentGroupId"`
	Attestation        AttestationMechanism `json:"attestation"`
	IotHubHostName     string               `json:"iotHubHostName,omitempty"`
	InitialTwin        json.RawMessage      `json:"initialTwin,omitempty"`
	ProvisioningStatus ProvisioningStatus   `json:"provisioningStatus,omitempty"`
	ETag               string               `json:"etag,omitempty"`
	CreatedDateTimeUTC string               `json:"createdDateTimeUtc,omitempty"`
	LastUpdatedUTC     string               `json:"lastUpdatedDateTimeUtc,omitempty"`
}

// DeviceRegistrationState records the outcome of a device's provisioning
// attempt. States are created by the service as devices register; the
// management plane can read, delete and query them but never creates one.
// Deleting a state only removes the registry entry, never the downstream
// device identity it describes.
type DeviceRegistrationState struct {
	RegistrationID string             `json:"registrationId"`
	DeviceID       string             `json:"deviceId,omitempty"`
	AssignedHub    string             `json:"assignedHub,omitempty"`
	Status         RegistrationStatus `json:"status,omitempty"`
	ErrorCode      int                `json:"errorCode,omitempty"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
	ETag           string             `json:"etag,omitempty"`
	LastUpdatedUTC string             `json:"lastUpdatedDateTimeUtc,omitempty"`
}

// QuerySpecification is an opaque query in the service's query language.
// Immutable once constructed.
type QuerySpecification struct {
	Query string `json:"query"`
}
