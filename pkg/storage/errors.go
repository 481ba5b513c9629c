package storage

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// StoreErrorKind classifies object-store failures.
type StoreErrorKind string

const (
	// StoreUnauthorized means credentials were rejected.
	StoreUnauthorized StoreErrorKind = "unauthorized"
	// StoreUnavailable means the store could not be reached or failed transiently.
	StoreUnavailable StoreErrorKind = "unavailable"
	// StoreQuotaExceeded means the store refused the object for capacity reasons.
	StoreQuotaExceeded StoreErrorKind = "quota_exceeded"
)

// StoreError is a classified object-store failure. The adapter never retries;
// recovery policy belongs to the caller.
type StoreError struct {
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("object store %s: %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// classifyError maps an AWS SDK error to a StoreError.
func classifyError(err error) *StoreError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			return &StoreError{Kind: StoreUnauthorized, Err: err}
		case "EntityTooLarge", "QuotaExceeded", "ServiceQuotaExceededException":
			return &StoreError{Kind: StoreQuotaExceeded, Err: err}
		}
	}
	return &StoreError{Kind: StoreUnavailable, Err: err}
}
