package client

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx response
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether the request may succeed if repeated
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport error to an Error.
func classifyNetworkError(message string, err error) *Error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	e := &Error{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case os.IsTimeout(err):
		e.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		e.Type = ErrTypeDNS
		e.Retryable = dnsErr.IsTemporary
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		e.Type = ErrTypeConnectionRefused
	}
	return e
}

// newHTTPError creates an HTTP-level error. Server errors and 409 (the
// diagnostic device is busy) are retryable.
func newHTTPError(statusCode int, message string) *Error {
	return &Error{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500 || statusCode == http.StatusConflict,
	}
}

func newParseError(message string, err error) *Error {
	return &Error{Type: ErrTypeParse, Message: message, Err: err}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// StatusCode returns the HTTP status of err, or zero if it has none.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// Troubleshooting returns user-facing hints for err.
func Troubleshooting(err error, baseURL string) []string {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}

	switch e.Type {
	case ErrTypeConnectionRefused:
		return []string{
			"Nothing is listening at " + baseURL,
			"Start the daemon with 'cellwatch serve'",
			"Check the --listen address of the daemon",
		}
	case ErrTypeTimeout, ErrTypeNetwork:
		return []string{
			"Check that this machine can reach " + baseURL,
			"Use 'cellwatch discover' to find daemons on the network",
		}
	case ErrTypeDNS:
		return []string{"Use the IP address instead of the hostname"}
	case ErrTypeHTTP:
		switch e.StatusCode {
		case http.StatusNotFound:
			return []string{"No capture is running, or the capture name is wrong"}
		case http.StatusConflict:
			return []string{"Another capture holds the diagnostic device", "Stop it with 'cellwatch status --stop'"}
		case http.StatusServiceUnavailable:
			return []string{"The daemon cannot open its diagnostic device", "Check device.path in the daemon configuration"}
		}
	case ErrTypeParse:
		return []string{"The server at " + baseURL + " may not be a cellwatch daemon"}
	}
	return nil
}
