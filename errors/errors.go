package errors

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrorCodeUnknown            = "unknown"
	ErrorCodeConfiguration      = "configuration"
	ErrorCodeTemplateResolution = "template_resolution"
	ErrorCodeRequestBuild       = "request_build"
	ErrorCodeTransport          = "transport"
	ErrorCodeRetryExhausted     = "retry_exhausted"
	ErrorCodeDecode             = "decode"
	ErrorCodeStatus             = "status"
	ErrorCodeInvalidArgument    = "invalid_argument"
	ErrorCodeCancelled          = "cancelled"
)

// Error represents an error with additional context
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error
func New(code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new error with formatted message
func Newf(code, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with additional context
func Wrap(code string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// coder is satisfied by the typed errors below.
type coder interface {
	ErrorCode() string
}

// Code returns the error code
func Code(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t, ok := e.(*Error); ok {
			return t.Code
		}
		if c, ok := e.(coder); ok {
			return c.ErrorCode()
		}
	}
	return ErrorCodeUnknown
}

// Cause returns the deepest cause of the error, or the error itself.
func Cause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// ConfigurationError reports a bind-time defect: missing method metadata, an
// unregistered expander name, an invalid target. It fails client
// construction and is never produced per call.
type ConfigurationError struct {
	Message string
	Cause   error
}

// Error returns the error message
func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrorCodeConfiguration, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrorCodeConfiguration, e.Message)
}

// Unwrap returns the cause of the error
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code
func (e *ConfigurationError) ErrorCode() string { return ErrorCodeConfiguration }

// Configurationf creates a ConfigurationError with a formatted message.
func Configurationf(format string, args ...interface{}) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// TemplateResolutionError reports a required template placeholder with no
// bound value.
type TemplateResolutionError struct {
	// Variable is the unresolved placeholder name.
	Variable string
	// Expression is the template string being resolved.
	Expression string
}

// Error returns the error message
func (e *TemplateResolutionError) Error() string {
	return fmt.Sprintf("%s: no value bound for placeholder {%s} in %q", ErrorCodeTemplateResolution, e.Variable, e.Expression)
}

// ErrorCode returns the error code
func (e *TemplateResolutionError) ErrorCode() string { return ErrorCodeTemplateResolution }

// RequestBuildError reports an encoder failure while attaching a request
// body.
type RequestBuildError struct {
	ConfigKey string
	Cause     error
}

// Error returns the error message
func (e *RequestBuildError) Error() string {
	return fmt.Sprintf("%s: %s: encoding request body: %v", ErrorCodeRequestBuild, e.ConfigKey, e.Cause)
}

// Unwrap returns the cause of the error
func (e *RequestBuildError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code
func (e *RequestBuildError) ErrorCode() string { return ErrorCodeRequestBuild }

// TransportError wraps a failure raised while exchanging a request for a
// response. Transport failures are the only errors eligible for automatic
// retry.
type TransportError struct {
	Cause error
	// RetryAfter optionally carries a retry hint (delay seconds or an
	// HTTP-date) supplied by the transport.
	RetryAfter string
}

// Error returns the error message
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrorCodeTransport, e.Cause)
}

// Unwrap returns the cause of the error
func (e *TransportError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code
func (e *TransportError) ErrorCode() string { return ErrorCodeTransport }

// Transport wraps err as a TransportError. Returns nil if err is nil.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Cause: err}
}

// RetryExhaustedError wraps the last transport failure once the retryer
// declines another attempt.
type RetryExhaustedError struct {
	ConfigKey string
	// Attempts is the total number of execute attempts made.
	Attempts int
	Cause    error
}

// Error returns the error message
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s: giving up after %d attempt(s): %v", ErrorCodeRetryExhausted, e.ConfigKey, e.Attempts, e.Cause)
}

// Unwrap returns the cause of the error
func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code
func (e *RetryExhaustedError) ErrorCode() string { return ErrorCodeRetryExhausted }

// DecodeError reports a decoder failure on an otherwise successful
// response. RequestBody carries the original request body for diagnosis.
type DecodeError struct {
	ConfigKey   string
	RequestBody []byte
	Cause       error
}

// Error returns the error message
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: decoding response: %v", ErrorCodeDecode, e.ConfigKey, e.Cause)
}

// Unwrap returns the cause of the error
func (e *DecodeError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code
func (e *DecodeError) ErrorCode() string { return ErrorCodeDecode }

// StatusError is the domain error produced by the default error decoder for
// a non-successful response.
type StatusError struct {
	ConfigKey string
	Status    int
	Reason    string
	// Body is the buffered response body.
	Body []byte
	// RetryAfter carries the raw Retry-After header value, if any.
	RetryAfter string
}

// Error returns the error message
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: %d %s", ErrorCodeStatus, e.ConfigKey, e.Status, e.Reason)
}

// ErrorCode returns the error code
func (e *StatusError) ErrorCode() string { return ErrorCodeStatus }
