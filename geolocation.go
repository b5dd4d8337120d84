// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// Locator resolves the caller location from its IP address using the
// iplocate endpoint. The lookup runs at most once per Locator, no matter
// how many providers ask for it; all of them share the outcome.
//
// A Locator is safe for concurrent use.
type Locator struct {
	// Transport performs the lookup.
	Transport Func[*Request, *Response]

	// Logger is the [SLogger] to use.
	Logger SLogger

	once     sync.Once
	done     chan struct{}
	location *Suggestion
	err      error
}

// NewLocator returns a new [*Locator].
func NewLocator(txp Func[*Request, *Response], logger SLogger) *Locator {
	return &Locator{
		Transport: txp,
		Logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start issues the lookup in the background unless a previous call
// already did. Only the connection fields of req are used.
func (l *Locator) Start(req *Request) {
	l.once.Do(func() {
		call := &Request{
			Method:     http.MethodGet,
			Endpoint:   EndpointIPLocate,
			ServiceURL: req.ServiceURL,
			Token:      req.Token,
			Partner:    req.Partner,
			Timeout:    req.Timeout,
		}
		go l.run(call)
	})
}

func (l *Locator) run(req *Request) {
	defer close(l.done)
	l.Logger.Info("locateStart")
	resp, err := l.Transport.Call(context.Background(), req)
	var location *Suggestion
	if err == nil {
		location, err = resp.Location()
	}
	l.Logger.Info("locateDone", slog.Any("err", err), slog.Bool("found", location != nil))
	l.location, l.err = location, err
}

// Await waits for the lookup started by [Locator.Start]. A nil location
// with a nil error means the service could not locate the caller.
func (l *Locator) Await(ctx context.Context) (*Suggestion, error) {
	select {
	case <-ctx.Done():
		return nil, &AbortError{Reason: cancelReasonOf(ctx), Err: context.Cause(ctx)}
	case <-l.done:
		return l.location, l.err
	}
}

// Peek returns the location without waiting. The second value is false
// while the lookup is pending or was never started.
func (l *Locator) Peek() (*Suggestion, bool) {
	select {
	case <-l.done:
		return l.location, true
	default:
		return nil, false
	}
}

// GeolocationSubscriberID is the [OptionsSpy] subscriber id of the
// geolocation transform.
const GeolocationSubscriberID = "geolocation"

// newGeolocationTransform returns the transform that boosts suggestions
// near the caller location.
//
// Eligible options are those of a type whose strategy accepts the boost,
// with Geolocation not disabled and no explicit Constraints. For them
// the lookup is started (once) and Params is wrapped so that each query
// waits for the location and adds a "locations_boost" parameter, unless
// the user params already carry one.
func newGeolocationTransform(cfg *Config, services *Services) Transform {
	return func(opts Options) *Options {
		strategy, err := services.Registry.Lookup(opts.Type)
		if err != nil || !strategy.GeoEnabled || !opts.geolocation() || len(opts.Constraints) > 0 {
			return nil
		}
		resolved := opts.withDefaults(cfg)
		services.Locator.Start(&Request{
			ServiceURL: resolved.ServiceURL,
			Token:      resolved.Token,
			Partner:    resolved.Partner,
			Timeout:    resolved.Timeout,
		})
		user := opts.Params
		return &Options{Params: func(ctx context.Context, query string) map[string]any {
			var params map[string]any
			if user != nil {
				params = user(ctx, query)
			}
			if params == nil {
				params = map[string]any{}
			}
			if _, found := params["locations_boost"]; found {
				return params
			}
			location, err := services.Locator.Await(ctx)
			if err != nil || location == nil {
				return params
			}
			if kladrID := location.FieldString("kladr_id"); kladrID != "" {
				params["locations_boost"] = []map[string]any{{"kladr_id": kladrID}}
			}
			return params
		}}
	}
}
