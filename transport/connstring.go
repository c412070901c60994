package transport

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ConnectionString holds the parsed service connection parameters.
type ConnectionString struct {
	// HostName is the service endpoint, e.g. "my-service.example.net".
	HostName string

	// SharedAccessKeyName is the authorization policy name.
	SharedAccessKeyName string

	// SharedAccessKey is the decoded signing key.
	SharedAccessKey []byte
}

// ParseConnectionString parses a connection string of the form
// "HostName=...;SharedAccessKeyName=...;SharedAccessKey=...". All three
// parts are required; the key must be valid base64.
func ParseConnectionString(raw string) (*ConnectionString, error) {
	cs := &ConnectionString{}
	for _, part := range strings.Split(raw, ";") {
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("invalid connection string segment %q", part)
		}
		switch key {
		case "HostName":
			cs.HostName = value
		case "SharedAccessKeyName":
			cs.SharedAccessKeyName = value
		case "SharedAccessKey":
			decoded, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, fmt.Errorf("could not decode shared access key: %w", err)
			}
			cs.SharedAccessKey = decoded
		default:
			// Unknown segments are ignored for forward compatibility.
		}
	}

	if cs.HostName == "" {
		return nil, errors.New("connection string is missing HostName")
	}
	if cs.SharedAccessKeyName == "" {
		return nil, errors.New("connection string is missing SharedAccessKeyName")
	}
	if len(cs.SharedAccessKey) == 0 {
		return nil, errors.New("connection string is missing SharedAccessKey")
	}
	return cs, nil
}
