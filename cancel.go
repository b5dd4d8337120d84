// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"errors"
	"sync"
)

// CancelReason tells why a request was canceled.
//
// A CancelReason is also an error so that it can be used as the cause of
// a [context.CancelCauseFunc] and recovered with [context.Cause].
type CancelReason int

const (
	// ReasonNone means the request was not canceled by this package.
	ReasonNone CancelReason = iota

	// ReasonSuperseded means a newer request took over the same [*Slot].
	ReasonSuperseded

	// ReasonDisposed means the owner was cleared or disposed.
	ReasonDisposed

	// ReasonTimeout means the per-request timeout expired.
	ReasonTimeout
)

// String implements [fmt.Stringer].
func (r CancelReason) String() string {
	switch r {
	case ReasonSuperseded:
		return "superseded"
	case ReasonDisposed:
		return "disposed"
	case ReasonTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Error implements error.
func (r CancelReason) Error() string {
	return "suggestions: canceled: " + r.String()
}

// cancelReasonOf maps a done context to its [CancelReason]. Deadlines set
// by the caller count as timeouts; any other caller cancellation counts
// as disposal.
func cancelReasonOf(ctx context.Context) CancelReason {
	cause := context.Cause(ctx)
	var reason CancelReason
	switch {
	case cause == nil:
		return ReasonNone
	case errors.As(cause, &reason):
		return reason
	case errors.Is(cause, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonDisposed
	}
}

// Slot is a logical request slot: at most one request issued through
// the same Slot is in flight at any time. Beginning a new request
// cancels the previous one with [ReasonSuperseded].
//
// The zero value is ready to use.
type Slot struct {
	mu     sync.Mutex
	cancel context.CancelCauseFunc
	gen    uint64
}

// Begin cancels the request currently holding the slot, if any, and
// returns a context for the new request together with its generation.
//
// The caller must invoke the returned release function when done.
func (s *Slot) Begin(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ReasonSuperseded)
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel(context.Canceled)
	}
	return ctx, gen, release
}

// Current reports whether gen is still the latest generation.
func (s *Slot) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// Cancel cancels the in-flight request, if any, with the given reason
// and invalidates its generation.
func (s *Slot) Cancel(reason CancelReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel(reason)
		s.cancel = nil
	}
	s.gen++
}
