// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelReason(t *testing.T) {
	assert.Equal(t, "superseded", ReasonSuperseded.String())
	assert.Equal(t, "disposed", ReasonDisposed.String())
	assert.Equal(t, "timeout", ReasonTimeout.String())
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "suggestions: canceled: timeout", ReasonTimeout.Error())
}

func TestCancelReasonOf(t *testing.T) {
	t.Run("a live context has no reason", func(t *testing.T) {
		assert.Equal(t, ReasonNone, cancelReasonOf(context.Background()))
	})

	t.Run("an explicit cause is recovered", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(ReasonSuperseded)
		assert.Equal(t, ReasonSuperseded, cancelReasonOf(ctx))
	})

	t.Run("a caller deadline counts as timeout", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		assert.Equal(t, ReasonTimeout, cancelReasonOf(ctx))
	})

	t.Run("a plain caller cancellation counts as disposal", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, ReasonDisposed, cancelReasonOf(ctx))
	})
}

func TestSlot(t *testing.T) {
	t.Run("beginning a request supersedes the previous one", func(t *testing.T) {
		var slot Slot
		first, gen1, release1 := slot.Begin(context.Background())
		defer release1()
		second, gen2, release2 := slot.Begin(context.Background())
		defer release2()

		require.Error(t, first.Err())
		assert.Equal(t, ReasonSuperseded, context.Cause(first))
		assert.NoError(t, second.Err())
		assert.False(t, slot.Current(gen1))
		assert.True(t, slot.Current(gen2))
	})

	t.Run("a stale release does not clear the current request", func(t *testing.T) {
		var slot Slot
		_, _, release1 := slot.Begin(context.Background())
		second, _, release2 := slot.Begin(context.Background())
		defer release2()

		release1()
		slot.Cancel(ReasonDisposed)

		assert.Equal(t, ReasonDisposed, context.Cause(second))
	})

	t.Run("cancel invalidates the generation", func(t *testing.T) {
		var slot Slot
		ctx, gen, release := slot.Begin(context.Background())
		defer release()

		slot.Cancel(ReasonDisposed)

		assert.Equal(t, ReasonDisposed, context.Cause(ctx))
		assert.False(t, slot.Current(gen))
	})

	t.Run("cancel on an idle slot is harmless", func(t *testing.T) {
		var slot Slot
		slot.Cancel(ReasonDisposed)
		_, gen, release := slot.Begin(context.Background())
		defer release()
		assert.True(t, slot.Current(gen))
	})
}

func TestErrors(t *testing.T) {
	t.Run("codes", func(t *testing.T) {
		assert.Equal(t, "", ErrorCode(nil))
		assert.Equal(t, CodeError, ErrorCode(&NetworkError{Err: errors.New("refused")}))
		assert.Equal(t, CodeHTTPFailure, ErrorCode(&HTTPStatusError{StatusCode: 500}))
		assert.Equal(t, CodeParseError, ErrorCode(&ParseError{Err: errors.New("bad")}))
		assert.Equal(t, CodeTimeout, ErrorCode(&AbortError{Reason: ReasonTimeout}))
		assert.Equal(t, CodeAbort, ErrorCode(&AbortError{Reason: ReasonDisposed}))
		assert.Equal(t, CodeError, ErrorCode(errors.New("other")))
	})

	t.Run("codes survive wrapping", func(t *testing.T) {
		err := fmt.Errorf("enrich: %w", &ParseError{Err: errors.New("bad")})
		assert.Equal(t, CodeParseError, ErrorCode(err))
	})

	t.Run("only timeouts among aborts are reportable", func(t *testing.T) {
		assert.False(t, isReportable(nil))
		assert.False(t, isReportable(&AbortError{Reason: ReasonSuperseded}))
		assert.False(t, isReportable(&AbortError{Reason: ReasonDisposed}))
		assert.True(t, isReportable(&AbortError{Reason: ReasonTimeout}))
		assert.True(t, isReportable(&HTTPStatusError{StatusCode: 502}))
		assert.True(t, isReportable(&NetworkError{Err: errors.New("refused")}))
	})

	t.Run("unwrap", func(t *testing.T) {
		cause := errors.New("connection refused")
		assert.ErrorIs(t, &NetworkError{Err: cause}, cause)
		assert.ErrorIs(t, &AbortError{Reason: ReasonTimeout, Err: context.DeadlineExceeded}, context.DeadlineExceeded)
		assert.True(t, IsAborted(fmt.Errorf("x: %w", &AbortError{})))
		assert.False(t, IsAborted(cause))
	})

	t.Run("messages", func(t *testing.T) {
		err := &HTTPStatusError{StatusCode: 403, StatusText: "Forbidden"}
		assert.Equal(t, "suggestions: http status 403: Forbidden", err.Error())
		abort := &AbortError{Reason: ReasonSuperseded}
		assert.Equal(t, "suggestions: request aborted (superseded)", abort.Error())
		timeout := &AbortError{Reason: ReasonTimeout, Err: context.DeadlineExceeded}
		assert.Equal(t, "suggestions: request aborted (timeout)", timeout.Error())
	})
}
