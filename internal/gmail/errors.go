package gmail

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// FailureKind classifies why a fetch cycle gave up
type FailureKind string

const (
	// FailureTransient covers errors retried with backoff
	FailureTransient FailureKind = "transient"
	// FailureCredential covers secure-channel and auth errors that
	// trigger a credential refresh before the next attempt
	FailureCredential FailureKind = "credential"
)

// FetchError is returned after every fetch attempt for one notification
// cycle has failed. The batch for that cycle is dropped.
type FetchError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempts (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// isCredentialError reports whether an error belongs to the
// transport/credential class: TLS negotiation failures and rejected or
// expired OAuth credentials.
func isCredentialError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 {
			return true
		}
	}

	msg := err.Error()
	for _, marker := range []string{"SSL", "WRONG_VERSION_NUMBER", "tls:", "oauth2", "invalid_grant"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
