// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
	"github.com/tidwall/gjson"
)

// logRecorder collects log records. It is safe for concurrent use since
// status checks and geolocation lookups log from background goroutines.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// newCapturingLogger returns a logger that captures all log records into
// the returned recorder.
func newCapturingLogger() (*slog.Logger, *logRecorder) {
	rec := &logRecorder{}
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			rec.mu.Lock()
			rec.records = append(rec.records, record)
			rec.mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), rec
}

// Messages returns the messages logged so far.
func (r *logRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, record := range r.records {
		out = append(out, record.Message)
	}
	return out
}

// Find returns the first record with the given message.
func (r *logRecorder) Find(msg string) (slog.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.Message == msg {
			return record, true
		}
	}
	return slog.Record{}, false
}

// recordAttrs flattens the attributes of a record.
func recordAttrs(record slog.Record) map[string]slog.Value {
	attrs := map[string]slog.Value{}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value
		return true
	})
	return attrs
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc,
// RemoteAddrFunc and CloseFunc set.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4321} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 443} },
		CloseFunc:      func() error { return nil },
	}
}

// recordedRequest is a request received by a [*fakeService].
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   gjson.Result
}

// fakeHandler serves one route of a [*fakeService].
type fakeHandler func(w http.ResponseWriter, r *http.Request, req recordedRequest)

// fakeService emulates the suggestion service.
//
// Unless overridden with Handle, status answers {"search":true,"enrich":true},
// iplocate answers {"location":null} and everything else answers an empty
// suggestions list.
type fakeService struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]fakeHandler
}

func newFakeService(t *testing.T) *fakeService {
	fs := &fakeService{routes: map[string]fakeHandler{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Server.Close)
	return fs
}

// Handle installs handler for the given path (e.g., "/suggest/address").
func (fs *fakeService) Handle(path string, handler fakeHandler) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.routes[path] = handler
}

// HandleJSON installs a handler always answering body with status 200.
func (fs *fakeService) HandleJSON(path, body string) {
	fs.Handle(path, func(w http.ResponseWriter, r *http.Request, req recordedRequest) {
		writeJSON(w, http.StatusOK, body)
	})
}

// Requests returns the requests received for path.
func (fs *fakeService) Requests(path string) []recordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []recordedRequest
	for _, req := range fs.requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

// Count returns the number of requests received for path.
func (fs *fakeService) Count(path string) int {
	return len(fs.Requests(path))
}

func (fs *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	req := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   gjson.ParseBytes(data),
	}
	fs.mu.Lock()
	fs.requests = append(fs.requests, req)
	handler := fs.routes[r.URL.Path]
	fs.mu.Unlock()

	switch {
	case handler != nil:
		handler(w, r, req)
	case strings.HasPrefix(r.URL.Path, "/status/"):
		writeJSON(w, http.StatusOK, `{"search":true,"enrich":true}`)
	case r.URL.Path == "/iplocate/address":
		writeJSON(w, http.StatusOK, `{"location":null}`)
	default:
		writeJSON(w, http.StatusOK, `{"suggestions":[]}`)
	}
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	io.WriteString(w, body)
}

// newTestConfig returns a [*Config] pointing to fs and logging to logger.
func newTestConfig(fs *fakeService, logger SLogger) *Config {
	cfg := NewConfig()
	cfg.ServiceURL = fs.Server.URL
	cfg.Token = "test-token"
	cfg.Logger = logger
	return cfg
}

// newTestFactory returns a [*Factory] talking to fs with logging disabled.
func newTestFactory(fs *fakeService) *Factory {
	return NewFactory(newTestConfig(fs, DefaultSLogger()))
}

// suggestionsBody renders a suggest response from JSON objects.
func suggestionsBody(items ...string) string {
	return `{"suggestions":[` + strings.Join(items, ",") + `]}`
}
