package notifications

import "errors"

// Ingest errors.
var (
	ErrQueueClosed  = errors.New("notification queue closed")
	ErrShuttingDown = errors.New("service is shutting down")
)

// Delivery errors.
var (
	ErrBundleNotSupported = errors.New("adapter does not support forward bundles")
	ErrEmptyMessage       = errors.New("message has neither text nor image")
)

// RetryableError wraps a delivery error and records whether a later attempt
// could succeed. Deliveries are never retried; the flag only feeds logs and
// the delivery status metric.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewPermanentError creates a non-retryable error.
func NewPermanentError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}

// IsRetryable checks if an error is retryable. Unknown errors count as
// retryable.
func IsRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}
