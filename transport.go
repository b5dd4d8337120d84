// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Endpoint is a service endpoint.
type Endpoint string

// Endpoints exposed by the suggestion service.
const (
	EndpointSuggest  Endpoint = "suggest"
	EndpointFindByID Endpoint = "findById"
	EndpointStatus   Endpoint = "status"
	EndpointIPLocate Endpoint = "iplocate/address"
)

// MaxResponseBodySize is the largest response body a [*Transport]
// accepts. Larger bodies fail with a [*ParseError].
const MaxResponseBodySize = 4 << 20

// Request describes a single call to the service.
type Request struct {
	// Method is the HTTP method. Defaults to POST.
	Method string

	// Endpoint is the service endpoint.
	Endpoint Endpoint

	// URLSuffix is appended to the endpoint path (e.g., "address").
	// Leave empty for endpoints without a type component.
	URLSuffix string

	// ServiceURL is the service base URL.
	ServiceURL string

	// URL, when set, replaces the URL computed from ServiceURL,
	// Endpoint and URLSuffix.
	URL string

	// Token is sent as "Authorization: Token <token>" when not empty.
	Token string

	// Partner is sent as the X-Partner header when not empty.
	Partner string

	// Timeout bounds the call when positive.
	Timeout time.Duration

	// Query and Count are added to Params in the JSON body. Count is
	// omitted when zero.
	Query string
	Count int

	// Params are the extra body parameters.
	Params map[string]any

	// Slot, when set, makes this call supersede the previous call
	// issued through the same slot.
	Slot *Slot
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodPost
	}
	return r.Method
}

func (r *Request) url() string {
	if r.URL != "" {
		return r.URL
	}
	u := strings.TrimRight(r.ServiceURL, "/") + "/" + string(r.Endpoint)
	if r.URLSuffix != "" {
		u += "/" + r.URLSuffix
	}
	return u
}

// body serializes Params with query and count on top.
func (r *Request) body() ([]byte, error) {
	params := r.Params
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if data, err = sjson.SetBytes(data, "query", r.Query); err != nil {
		return nil, err
	}
	if r.Count > 0 {
		if data, err = sjson.SetBytes(data, "count", r.Count); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// queryString encodes Params for a GET request. Scalars are written as
// is; objects and arrays are written as JSON.
func (r *Request) queryString() (string, error) {
	values := url.Values{}
	for key, value := range r.Params {
		switch v := value.(type) {
		case nil:
		case string:
			values.Set(key, v)
		case bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
			values.Set(key, fmt.Sprint(v))
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("query parameter %q: %w", key, err)
			}
			values.Set(key, string(data))
		}
	}
	return values.Encode(), nil
}

// Response is the successful outcome of a [*Transport] call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Suggestions decodes a suggest or findById response.
func (r *Response) Suggestions() ([]Suggestion, error) {
	var payload struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(r.Body, &payload); err != nil {
		return nil, &ParseError{Err: err}
	}
	if payload.Suggestions == nil {
		payload.Suggestions = []Suggestion{}
	}
	return payload.Suggestions, nil
}

// Location decodes an iplocate response. A null location yields nil.
func (r *Response) Location() (*Suggestion, error) {
	var payload struct {
		Location *Suggestion `json:"location"`
	}
	if err := json.Unmarshal(r.Body, &payload); err != nil {
		return nil, &ParseError{Err: err}
	}
	return payload.Location, nil
}

// Status decodes a status response. The plan comes from the body and,
// when the body does not carry it, from the X-Plan header.
func (r *Response) Status() (StatusRecord, error) {
	var rec StatusRecord
	if err := json.Unmarshal(r.Body, &rec); err != nil {
		return StatusRecord{}, &ParseError{Err: err}
	}
	if rec.Plan == "" {
		rec.Plan = r.Header.Get("X-Plan")
	}
	return rec, nil
}

// Transport executes cancelable, timeout-bounded calls to the service
// and normalizes failures into the errors of this package.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type Transport struct {
	// Client performs the HTTP round trips.
	//
	// Set by [NewTransport] from [Config.HTTPClient] or built on top
	// of an [*ObservedDialer].
	Client *http.Client

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewTransport] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewTransport] from [Config.Logger].
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewTransport] from [Config.TimeNow].
	TimeNow func() time.Time

	// Version is sent in the X-Version header.
	//
	// Set by [NewTransport] from [Config.Version].
	Version string
}

// NewTransport returns a new [*Transport] wired from cfg.
func NewTransport(cfg *Config) *Transport {
	runtimex.Assert(cfg != nil)
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient(NewObservedDialer(cfg))
	}
	return &Transport{
		Client:        client,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        cfg.Logger,
		TimeNow:       cfg.TimeNow,
		Version:       cfg.Version,
	}
}

var _ Func[*Request, *Response] = &Transport{}

// Call performs the request described by req.
//
// Failures are always one of [*NetworkError], [*HTTPStatusError],
// [*AbortError] or [*ParseError].
func (t *Transport) Call(ctx context.Context, req *Request) (*Response, error) {
	if req.Slot != nil {
		var release func()
		ctx, _, release = req.Slot.Begin(ctx)
		defer release()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, req.Timeout, ReasonTimeout)
		defer cancel()
	}

	span := &transportSpan{
		ID:       NewSpanID(),
		Request:  req,
		T0:       t.TimeNow(),
		Endpoint: string(req.Endpoint),
	}
	span.Deadline, _ = ctx.Deadline()
	t.logStart(span)

	pipeline := Compose3(
		FuncAdapter[*Request, *http.Request](t.newHTTPRequest),
		FuncAdapter[*http.Request, *http.Response](func(ctx context.Context, hreq *http.Request) (*http.Response, error) {
			return t.roundTrip(ctx, hreq, span)
		}),
		FuncAdapter[*http.Response, *Response](t.readResponse),
	)
	resp, err := pipeline.Call(ctx, req)
	if err != nil && ctx.Err() != nil {
		err = &AbortError{Reason: cancelReasonOf(ctx), Err: err}
	}
	t.logDone(span, resp, err)
	return resp, err
}

func (t *Transport) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.method()
	target := req.url()
	var body io.Reader = http.NoBody
	if method == http.MethodGet {
		if len(req.Params) > 0 {
			query, err := req.queryString()
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			target += "?" + query
		}
	} else {
		data, err := req.body()
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		body = bytes.NewReader(data)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json;charset=utf-8")
	hreq.Header.Set("X-Version", t.Version)
	if req.Token != "" {
		hreq.Header.Set("Authorization", "Token "+req.Token)
	}
	if req.Partner != "" {
		hreq.Header.Set("X-Partner", req.Partner)
	}
	return hreq, nil
}

func (t *Transport) roundTrip(ctx context.Context, hreq *http.Request, span *transportSpan) (*http.Response, error) {
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			span.LocalAddr = safeconn.LocalAddr(info.Conn)
			span.RemoteAddr = safeconn.RemoteAddr(info.Conn)
		},
	}
	hreq = hreq.WithContext(httptrace.WithClientTrace(ctx, trace))
	span.Method = hreq.Method
	span.URL = hreq.URL.String()

	resp, err := t.Client.Do(hreq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	span.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, StatusText: statusText(resp)}
	}
	return resp, nil
}

func (t *Transport) readResponse(ctx context.Context, resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize+1))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if len(data) > MaxResponseBodySize {
		return nil, &ParseError{Err: fmt.Errorf("response body exceeds %d bytes", MaxResponseBodySize)}
	}
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Err: fmt.Errorf("invalid JSON body (%d bytes)", len(data))}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// transportSpan accumulates the fields logged by a single call.
type transportSpan struct {
	ID         string
	Request    *Request
	Endpoint   string
	Method     string
	URL        string
	StatusCode int
	LocalAddr  string
	RemoteAddr string
	T0         time.Time
	Deadline   time.Time
}

func (t *Transport) logStart(span *transportSpan) {
	t.Logger.Info(
		"suggestRequestStart",
		slog.String("spanID", span.ID),
		slog.Time("deadline", span.Deadline),
		slog.String("endpoint", span.Endpoint),
		slog.String("query", span.Request.Query),
		slog.Time("t", span.T0),
	)
}

func (t *Transport) logDone(span *transportSpan, resp *Response, err error) {
	var size int
	if resp != nil {
		size = len(resp.Body)
	}
	t.Logger.Info(
		"suggestRequestDone",
		slog.String("spanID", span.ID),
		slog.Time("deadline", span.Deadline),
		slog.String("endpoint", span.Endpoint),
		slog.Any("err", err),
		slog.String("errClass", t.ErrClassifier.Classify(err)),
		slog.String("httpMethod", span.Method),
		slog.String("httpUrl", span.URL),
		slog.Int("httpResponseStatusCode", span.StatusCode),
		slog.Int("httpResponseBodyLength", size),
		slog.String("localAddr", span.LocalAddr),
		slog.String("remoteAddr", span.RemoteAddr),
		slog.Time("t0", span.T0),
		slog.Time("t", t.TimeNow()),
	)
}
