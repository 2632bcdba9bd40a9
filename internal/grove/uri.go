// Package grove is the client for the Grove immutable blob storage service.
//
// Grove only supports upload-and-get: every upload yields a new
// content-addressed URI and blobs are never mutated in place. The client
// pairs the HTTP calls with an explicit TTL cache so repeated reads of the
// same URI do not hit the network.
package grove

import (
	"fmt"
	"strings"
)

// Scheme is the URI scheme for content-addressed Grove objects.
const Scheme = "grove"

// URI is a content-addressed storage URI, e.g. "grove://3f8a...".
type URI string

// ParseURI validates s as a grove URI.
func ParseURI(s string) (URI, error) {
	key, ok := strings.CutPrefix(s, Scheme+"://")
	if !ok {
		return "", fmt.Errorf("invalid storage URI %q: want scheme %s://", s, Scheme)
	}
	if key == "" {
		return "", fmt.Errorf("invalid storage URI %q: empty key", s)
	}
	for _, c := range key {
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && c != '-' && c != '_' {
			return "", fmt.Errorf("invalid storage URI %q: bad character %q", s, c)
		}
	}
	return URI(s), nil
}

// Key returns the content key without the scheme prefix.
func (u URI) Key() string {
	return strings.TrimPrefix(string(u), Scheme+"://")
}

// String returns the URI as a string.
func (u URI) String() string {
	return string(u)
}

// IsZero reports whether the URI is empty.
func (u URI) IsZero() bool {
	return u == ""
}
