// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"errors"
	"fmt"
)

// Error codes returned by the Code method of the errors in this package.
const (
	CodeError       = "error"
	CodeAbort       = "abort"
	CodeTimeout     = "timeout"
	CodeParseError  = "parsererror"
	CodeHTTPFailure = "httperror"
)

var (
	// ErrNoSuggestion is returned when a selection does not resolve to
	// any suggestion in the last fetched sequence.
	ErrNoSuggestion = errors.New("suggestions: no matching suggestion")

	// ErrForeignInstance is returned when linking instances that were not
	// produced by the same [*Factory].
	ErrForeignInstance = errors.New("suggestions: instance belongs to another factory")

	// ErrSelfLink is returned when linking an instance to itself.
	ErrSelfLink = errors.New("suggestions: cannot link an instance to itself")

	// ErrUnknownType is returned when no [*Strategy] is registered for a type.
	ErrUnknownType = errors.New("suggestions: unknown suggestion type")
)

// NetworkError means the HTTP round trip failed before a response arrived.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("suggestions: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Code returns [CodeError].
func (e *NetworkError) Code() string { return CodeError }

// HTTPStatusError means the service answered with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	StatusText string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("suggestions: http status %d: %s", e.StatusCode, e.StatusText)
}

// Code returns [CodeHTTPFailure].
func (e *HTTPStatusError) Code() string { return CodeHTTPFailure }

// AbortError means the call was canceled. Reason tells whether this
// happened because of a timeout, a newer request, or disposal.
type AbortError struct {
	Reason CancelReason
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("suggestions: request aborted (%s)", e.Reason.String())
}

func (e *AbortError) Unwrap() error { return e.Err }

// Code returns [CodeTimeout] for timeouts and [CodeAbort] otherwise.
func (e *AbortError) Code() string {
	if e.Reason == ReasonTimeout {
		return CodeTimeout
	}
	return CodeAbort
}

// ParseError means the response body is not the JSON we expected.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("suggestions: cannot parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code returns [CodeParseError].
func (e *ParseError) Code() string { return CodeParseError }

// ErrorCode returns the Code of err when err wraps one of the errors of
// this package, and [CodeError] otherwise. It returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return CodeError
}

// IsAborted reports whether err is an [*AbortError].
func IsAborted(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}

// isReportable reports whether err should reach OnSearchError: every
// failure except aborts caused by supersession or disposal.
func isReportable(err error) bool {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort.Reason == ReasonTimeout
	}
	return err != nil
}
