// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
	"golang.org/x/net/http2"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making the transport depend on an abstract implementation we
// allow for unit testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ObservedDialer wraps a [Dialer] and logs connectStart/connectDone
// events around each dial.
//
// All fields are safe to modify after construction but before first use.
type ObservedDialer struct {
	// Dialer is the underlying [Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// NewObservedDialer returns a new [*ObservedDialer] wired from cfg.
func NewObservedDialer(cfg *Config) *ObservedDialer {
	return &ObservedDialer{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        cfg.Logger,
		TimeNow:       cfg.TimeNow,
	}
}

var _ Dialer = &ObservedDialer{}

// DialContext implements [Dialer].
func (d *ObservedDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	t0 := d.TimeNow()
	deadline, _ := ctx.Deadline()
	d.Logger.Debug(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
	conn, err := d.Dialer.DialContext(ctx, network, address)
	d.Logger.Debug(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", d.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", d.TimeNow()),
	)
	return conn, err
}

// newHTTPClient builds the default [*http.Client] used by [*Transport]:
// connections come from dialer and the transport negotiates HTTP/2
// when the service offers it.
func newHTTPClient(dialer Dialer) *http.Client {
	txp := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	err := http2.ConfigureTransport(txp)
	runtimex.Assert(err == nil)
	return &http.Client{Transport: txp}
}
