// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// StatusRecord describes what the service offers for a type and token.
type StatusRecord struct {
	Search bool   `json:"search"`
	Enrich bool   `json:"enrich"`
	Plan   string `json:"plan"`
}

// PlanFree is the plan for which a promotional hint is shown.
const PlanFree = "FREE"

// StatusKey identifies a shared status check.
type StatusKey struct {
	Type  Type
	Token string
}

func (k StatusKey) String() string {
	return string(k.Type) + "\x00" + k.Token
}

// StatusCoalescer deduplicates status checks across all providers that
// share a [StatusKey]: the first caller issues the request, concurrent
// callers wait for the same result, and the first successful record is
// kept for the lifetime of the coalescer. Failures are delivered to
// every waiting caller but are not remembered.
//
// A StatusCoalescer is safe for concurrent use.
type StatusCoalescer struct {
	// Transport performs the status requests.
	Transport Func[*Request, *Response]

	// Logger is the [SLogger] to use.
	Logger SLogger

	group    singleflight.Group
	mu       sync.Mutex
	resolved map[StatusKey]StatusRecord
}

// NewStatusCoalescer returns a new [*StatusCoalescer].
func NewStatusCoalescer(txp Func[*Request, *Response], logger SLogger) *StatusCoalescer {
	return &StatusCoalescer{
		Transport: txp,
		Logger:    logger,
		resolved:  map[StatusKey]StatusRecord{},
	}
}

// Peek returns the record for key if it has already been resolved.
func (c *StatusCoalescer) Peek(key StatusKey) (StatusRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, found := c.resolved[key]
	return rec, found
}

// Status returns the record for key, issuing req only if no other caller
// resolved or is resolving the same key.
//
// Canceling ctx stops waiting but does not cancel the shared request,
// which other callers may still be waiting for; req.Timeout bounds it.
func (c *StatusCoalescer) Status(ctx context.Context, key StatusKey, req *Request) (StatusRecord, error) {
	if rec, found := c.Peek(key); found {
		return rec, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		// a call that completed just before we joined already stored it
		if rec, found := c.Peek(key); found {
			return rec, nil
		}
		return c.fetch(shared, key, req)
	})
	select {
	case <-ctx.Done():
		return StatusRecord{}, &AbortError{Reason: cancelReasonOf(ctx), Err: context.Cause(ctx)}
	case res := <-ch:
		if res.Err != nil {
			return StatusRecord{}, res.Err
		}
		return res.Val.(StatusRecord), nil
	}
}

func (c *StatusCoalescer) fetch(ctx context.Context, key StatusKey, req *Request) (StatusRecord, error) {
	call := *req
	call.Method = http.MethodGet
	call.Endpoint = EndpointStatus
	call.Slot = nil
	c.Logger.Info("statusCheckStart", slog.String("type", string(key.Type)))
	resp, err := c.Transport.Call(ctx, &call)
	var rec StatusRecord
	if err == nil {
		rec, err = resp.Status()
	}
	c.Logger.Info(
		"statusCheckDone",
		slog.String("type", string(key.Type)),
		slog.Any("err", err),
		slog.String("plan", rec.Plan),
	)
	if err != nil {
		return StatusRecord{}, err
	}
	c.mu.Lock()
	c.resolved[key] = rec
	c.mu.Unlock()
	return rec, nil
}

// Reset forgets every resolved record.
func (c *StatusCoalescer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = map[StatusKey]StatusRecord{}
}
