package paypresto

import "errors"

// Sentinel errors for payment operations.
var (
	// ErrMissingKey indicates the payment was constructed without a valid
	// private key.
	ErrMissingKey = errors.New("paypresto: missing or invalid private key")

	// ErrInsufficientFunds indicates PushTx was called while the payment
	// still has a non-zero amount due.
	ErrInsufficientFunds = errors.New("paypresto: transaction is not fully funded")

	// ErrNoInvoice indicates an operation that requires an invoice was
	// called before one was created or loaded.
	ErrNoInvoice = errors.New("paypresto: no invoice loaded")

	// ErrNoChannel indicates an operation that requires a mounted payment
	// surface was called before Mount succeeded.
	ErrNoChannel = errors.New("paypresto: payment surface is not mounted")

	// ErrInvoiceRequest indicates the invoice create or load request
	// failed.
	ErrInvoiceRequest = errors.New("paypresto: invoice request failed")

	// ErrMountFailed indicates the payment surface could not be mounted.
	ErrMountFailed = errors.New("paypresto: mounting payment surface failed")

	// ErrInvalidOutput indicates an output with no locking condition, or
	// with more than one of To, Script and Data set.
	ErrInvalidOutput = errors.New("paypresto: invalid output")

	// ErrRemoteFailure indicates the payment surface reported a broadcast
	// failure.
	ErrRemoteFailure = errors.New("paypresto: remote surface reported failure")
)

// ErrorCode represents payment error codes for programmatic handling.
type ErrorCode string

const (
	// ErrCodeMissingKey indicates a missing or invalid private key.
	ErrCodeMissingKey ErrorCode = "MISSING_KEY"

	// ErrCodeInsufficientFunds indicates the payment is not fully funded.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeNetworkError indicates an invoice request failed.
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"

	// ErrCodeMountFailed indicates the payment surface could not be
	// mounted.
	ErrCodeMountFailed ErrorCode = "MOUNT_FAILED"

	// ErrCodeRemoteFailure indicates the surface reported a broadcast
	// failure.
	ErrCodeRemoteFailure ErrorCode = "REMOTE_FAILURE"

	// ErrCodeBuildFailed indicates the transaction could not be built or
	// signed.
	ErrCodeBuildFailed ErrorCode = "BUILD_FAILED"
)

// PaymentError provides structured error information.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
// Lazily initializes the Details map if nil.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
