// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"errors"

	"github.com/bassosimone/errclass"
)

// ErrClassifier classifies errors into categorical strings for logging.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier labels the errors of this package with their
// Code (e.g., "timeout", "parsererror") and delegates everything else,
// typically dial and I/O failures, to [errclass.New].
var DefaultErrClassifier = ErrClassifierFunc(classifyError)

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	var (
		abort  *AbortError
		status *HTTPStatusError
		parse  *ParseError
		netErr *NetworkError
	)
	switch {
	case errors.As(err, &abort):
		return abort.Code()
	case errors.As(err, &status):
		return status.Code()
	case errors.As(err, &parse):
		return parse.Code()
	case errors.As(err, &netErr):
		return errclass.New(netErr.Err)
	default:
		return errclass.New(err)
	}
}
