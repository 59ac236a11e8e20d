package domain

import (
	"github.com/cockroachdb/errors"
)

// Provider boundary errors. Callers decide whether to retry.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderAuth        = errors.New("provider rejected credentials")
	ErrProviderRejected    = errors.New("provider rejected the request")
	ErrUnknownEntityType   = errors.New("unknown entity type")
)

// State-contract errors. These are never retried automatically.
var (
	ErrBatchNotFound        = errors.New("batch not found")
	ErrItemNotFound         = errors.New("batch item not found")
	ErrInvalidTransition    = errors.New("invalid item status transition")
	ErrBatchClosed          = errors.New("batch already closed")
	ErrJobNotFound          = errors.New("job not found")
	ErrJobDisabled          = errors.New("job disabled")
	ErrJobAlreadyRunning    = errors.New("job already running")
	ErrRunNotFound          = errors.New("job run not found")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrAlertAlreadyResolved = errors.New("alert already resolved")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrReportNotArchived    = errors.New("batch report not archived")
)

// MarkProviderUnavailable tags cause so errors.Is(err, ErrProviderUnavailable) holds.
func MarkProviderUnavailable(cause error, format string, args ...interface{}) error {
	err := errors.Wrapf(cause, format, args...)
	err = errors.WithHint(err, "the provider may be down or slow; the run can be retried later")
	return errors.Mark(err, ErrProviderUnavailable)
}

// MarkProviderAuth tags cause so errors.Is(err, ErrProviderAuth) holds.
func MarkProviderAuth(cause error, format string, args ...interface{}) error {
	err := errors.Wrapf(cause, format, args...)
	err = errors.WithHint(err, "check provider.api_key")
	return errors.Mark(err, ErrProviderAuth)
}

// MarkProviderRejected tags cause so errors.Is(err, ErrProviderRejected) holds.
// Used for provider answers that are neither an outage nor an auth failure:
// unexpected statuses, request-level errors in the body, undecodable payloads.
func MarkProviderRejected(cause error, format string, args ...interface{}) error {
	err := errors.Wrapf(cause, format, args...)
	err = errors.WithHint(err, "check the job params against the provider's documentation")
	return errors.Mark(err, ErrProviderRejected)
}

// MarkUnknownEntityType reports an entity type the provider cannot serve.
func MarkUnknownEntityType(raw string) error {
	return errors.Wrapf(ErrUnknownEntityType, "%q", raw)
}
