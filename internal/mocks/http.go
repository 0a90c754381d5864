package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/comfortablynumb/pmp-unit-test/internal/recorder"
	"github.com/comfortablynumb/pmp-unit-test/internal/requests"
	"github.com/comfortablynumb/pmp-unit-test/internal/tracker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HTTP mocker hooks and markers
const (
	ServiceHTTP = "http"

	// FilterPreMockHTTP runs before the mock tables with a nil value; a
	// non-nil result answers the request.
	FilterPreMockHTTP = "pmc_pre_mock_http"
	// FilterMockHTTP receives the mock picked from the tables (or nil) and
	// may replace it.
	FilterMockHTTP = "pmc_mock_http"
	// FilterRemoteGet receives the raw text of every passthrough response.
	FilterRemoteGet = "pmc_mock_http_remote_get"

	// RemoteGet returned from a BodyFunc forwards the request to the network.
	RemoteGet = "__remote_get"
	// Wildcard matches any URL in Mock and Once, and queues in Next.
	Wildcard = "*"

	defaultStatusLine = "HTTP/1.1 200 OK"
	hookPriority      = math.MaxInt
)

// Request is an intercepted request, passed to body callbacks and filters.
type Request struct {
	URL     string
	Headers requests.Headers
	Data    any
	Options requests.Options
}

// method is the request method, GET when none was given
func (r Request) method() string {
	if r.Options.Method == "" {
		return http.MethodGet
	}
	return r.Options.Method
}

// BodyFunc computes a response body at request time. It may rewrite the
// header lines through headers, and may return RemoteGet to pass the request
// through to the network.
type BodyFunc func(headers *[]string, req Request) any

// Response is a mocked HTTP response. Raw, when set, is returned verbatim
// (or the contents of the file it names); otherwise Headers and Body are
// assembled, with File replacing a textual Body.
type Response struct {
	Raw     string
	Headers []string
	Body    any
	File    string
	Once    bool

	// blank entries come from empty data: they are consumed like any other
	// entry but answer nothing, so the request falls through.
	blank bool
}

// LegacyResponse is the structured response returned by filters on
// cms.FilterPreHTTPRequest.
type LegacyResponse struct {
	Code    int
	Message string
	Headers http.Header
	Body    string
}

// httpState is shared by every HTTP mocker: the transport registry it
// replaces is process-global too.
type httpState struct {
	mu               sync.Mutex
	intercepting     bool
	transportsStored []requests.Transport
	owner            *HTTP
	feedHook         cms.HookID
	match            map[string]*Response
	nextMatch        map[string]*Response
	nextQueue        []*Response
	default404       bool
	default404Verbal bool
}

var state = &httpState{
	match:     make(map[string]*Response),
	nextMatch: make(map[string]*Response),
}

// HTTP intercepts the requests transport layer and answers requests from
// mock tables.
type HTTP struct {
	env      *cms.Env
	remote   requests.Transport
	tracker  *tracker.Tracker
	recorder *recorder.Recorder
}

// HTTPOption configures an HTTP mocker
type HTTPOption func(*HTTP)

// WithRemoteTransport sets the transport used for passthrough requests
func WithRemoteTransport(t requests.Transport) HTTPOption {
	return func(h *HTTP) {
		h.remote = t
	}
}

// WithRecorder records passthrough responses into r
func WithRecorder(r *recorder.Recorder) HTTPOption {
	return func(h *HTTP) {
		h.recorder = r
	}
}

// NewHTTP creates an HTTP mocker firing its filters on env's hook bus
func NewHTTP(env *cms.Env, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		env:     env,
		tracker: tracker.NewTracker(1000),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.remote == nil {
		h.remote = requests.NewNetTransport(nil)
	}
	if h.recorder == nil {
		h.recorder = recorder.NewRecorder()
	}
	return h
}

// ProvideService implements mocker.Mocker
func (h *HTTP) ProvideService() string {
	return ServiceHTTP
}

// Enable installs the mocker as the only requests transport. Calling it
// again while intercepting does nothing.
func (h *HTTP) Enable() *HTTP {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.intercepting {
		return h
	}

	state.transportsStored = requests.SetTransports([]requests.Transport{h})
	requests.ClearTransportCache()
	state.intercepting = true
	state.owner = h
	if h.env != nil {
		state.feedHook = h.env.Hooks.AddAction(cms.ActionFeedOptions, h.actionFeedOptions, hookPriority)
	}

	observability.Debug("HTTP transport intercepted")
	return h
}

// InterceptTransport is Enable
func (h *HTTP) InterceptTransport() *HTTP {
	return h.Enable()
}

// Intercepting reports whether the requests transports are replaced
func (h *HTTP) Intercepting() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.intercepting
}

// Disable is Reset
func (h *HTTP) Disable() *HTTP {
	h.Reset()
	return h
}

// Dispose is Reset
func (h *HTTP) Dispose() *HTTP {
	h.Reset()
	return h
}

// Reset restores the original transports and empties every mock table.
func (h *HTTP) Reset() {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.intercepting {
		requests.SetTransports(state.transportsStored)
		requests.ClearTransportCache()
		if state.owner != nil && state.owner.env != nil {
			state.owner.env.Hooks.Remove(cms.ActionFeedOptions, state.feedHook)
		}
	}

	state.intercepting = false
	state.transportsStored = nil
	state.owner = nil
	state.feedHook = 0
	state.match = make(map[string]*Response)
	state.nextMatch = make(map[string]*Response)
	state.nextQueue = nil
	state.default404 = false
	state.default404Verbal = false

	h.tracker.Clear()
}

// Mock is the registry entry point: Mock() enables interception,
// Mock(url, data) registers a persistent response for url.
func (h *HTTP) Mock(args ...any) (any, error) {
	if len(args) == 0 {
		return h.Enable(), nil
	}
	url, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: http mock url must be a string, got %T", mocker.ErrDispatch, args[0])
	}
	var data any
	if len(args) > 1 {
		data = args[1]
	}
	return h.MockURL(url, data), nil
}

// MockURL answers every request to url with data until removed. url may be
// Wildcard. data is a *Response, a Response, an option map with the keys
// raw, headers, body, file and once, or a body value.
func (h *HTTP) MockURL(url string, data any) *HTTP {
	h.Enable()

	resp := normalize(data)
	state.mu.Lock()
	state.match[url] = resp
	state.mu.Unlock()
	return h
}

// Once answers the first request to url with data, then forgets it.
func (h *HTTP) Once(url string, data any) *HTTP {
	h.Enable()

	resp := normalize(data)
	resp.Once = true
	state.mu.Lock()
	state.match[url] = resp
	state.mu.Unlock()
	return h
}

// Next answers the next request to url with data, ahead of any Mock or Once
// entry. An empty url or Wildcard queues data for the very next request,
// whatever its URL.
func (h *HTTP) Next(url string, data any) *HTTP {
	h.Enable()

	resp := normalize(data)
	state.mu.Lock()
	defer state.mu.Unlock()

	if url == "" || url == Wildcard {
		state.nextQueue = append(state.nextQueue, resp)
	} else {
		state.nextMatch[url] = resp
	}
	return h
}

// Remove drops the persistent response for url
func (h *HTTP) Remove(url string) *HTTP {
	state.mu.Lock()
	defer state.mu.Unlock()
	delete(state.match, url)
	return h
}

// DefaultNotFound answers unmocked requests with a 404 instead of passing
// them through. verbal also logs each unmocked URL to stderr.
func (h *HTTP) DefaultNotFound(enable, verbal bool) *HTTP {
	state.mu.Lock()
	state.default404 = enable
	state.default404Verbal = verbal
	state.mu.Unlock()

	if enable {
		return h.Enable()
	}
	return h
}

// History returns the requests intercepted since the last reset
func (h *HTTP) History() []tracker.RequestLog {
	return h.tracker.GetLogs()
}

// LastRequest returns the most recent intercepted request
func (h *HTTP) LastRequest() (tracker.RequestLog, bool) {
	return h.tracker.Last()
}

// Recorder returns the recorder capturing passthrough responses
func (h *HTTP) Recorder() *recorder.Recorder {
	return h.recorder
}

// Test implements requests.Transport by probing the network transport
func (h *HTTP) Test(capabilities requests.Capabilities) bool {
	return h.remote.Test(capabilities)
}

// Request implements requests.Transport. It answers from, in order: the
// pre-mock filter, the next queue, the next table, the persistent table for
// url, the persistent wildcard entry, the mock filter, the legacy
// pre_http_request filter, the default 404, and finally the network.
func (h *HTTP) Request(ctx context.Context, url string, headers requests.Headers, data any, options requests.Options) (raw string, err error) {
	ctx, span := observability.StartSpan(ctx, "pmp.http.intercept", trace.WithAttributes(attribute.String("url.full", url)))
	defer func() { observability.EndSpan(span, err) }()

	req := Request{URL: url, Headers: headers, Data: data, Options: options}

	mock, source := h.resolve(req)
	if mock != nil && !mock.blank {
		h.track(ctx, req, source, true)
		return h.render(ctx, mock, req)
	}

	if legacy := h.legacy(req); legacy != nil {
		h.track(ctx, req, observability.SourceLegacy, true)
		return legacy.raw(), nil
	}

	state.mu.Lock()
	notFound, verbal := state.default404, state.default404Verbal
	state.mu.Unlock()

	if notFound {
		if verbal {
			observability.Stderr().Warn("Request not mocked: " + url)
		}
		h.track(ctx, req, observability.SourceDefault404, true)
		return "HTTP/1.1 404 Not Found\r\n\r\nRequest not mocked: " + url, nil
	}

	h.track(ctx, req, observability.SourceRemote, false)
	return h.passthrough(ctx, req)
}

// resolve picks the mock answering req and names the table it came from.
func (h *HTTP) resolve(req Request) (*Response, string) {
	if mock := asResponse(h.applyFilters(FilterPreMockHTTP, nil, req)); mock != nil {
		return mock, observability.SourceFilter
	}

	mock, source := state.take(req.URL)

	var current any
	if mock != nil {
		current = mock
	}
	filtered := asResponse(h.applyFilters(FilterMockHTTP, current, req))
	if filtered != mock {
		source = observability.SourceFilter
	}
	return filtered, source
}

// take pops the mock for url from the tables in precedence order.
func (s *httpState) take(url string) (*Response, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.nextQueue) > 0 {
		mock := s.nextQueue[0]
		s.nextQueue = s.nextQueue[1:]
		return mock, observability.SourceNextQueue
	}
	if mock, ok := s.nextMatch[url]; ok {
		delete(s.nextMatch, url)
		return mock, observability.SourceNextMatch
	}
	if mock, ok := s.match[url]; ok {
		if mock.Once {
			delete(s.match, url)
		}
		return mock, observability.SourceMatch
	}
	if mock, ok := s.match[Wildcard]; ok {
		if mock.Once {
			delete(s.match, Wildcard)
		}
		return mock, observability.SourceWildcard
	}
	return nil, ""
}

func (h *HTTP) legacy(req Request) *LegacyResponse {
	if h.env == nil {
		return nil
	}
	switch v := h.env.Hooks.ApplyFilters(cms.FilterPreHTTPRequest, nil, req.URL, req).(type) {
	case *LegacyResponse:
		return v
	case LegacyResponse:
		return &v
	}
	return nil
}

func (l *LegacyResponse) raw() string {
	message := l.Message
	if message == "" {
		message = http.StatusText(l.Code)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s", l.Code, message)
	keys := make([]string, 0, len(l.Headers))
	for key := range l.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, v := range l.Headers[key] {
			fmt.Fprintf(&b, "\n%s: %s", key, v)
		}
	}
	b.WriteString("\r\n\r\n")
	b.WriteString(l.Body)
	return b.String()
}

// render turns mock into raw response text.
func (h *HTTP) render(ctx context.Context, mock *Response, req Request) (string, error) {
	if mock.Raw != "" {
		if isFile(mock.Raw) {
			data, err := os.ReadFile(mock.Raw)
			if err != nil {
				return "", fmt.Errorf("failed to read raw response %s: %w", mock.Raw, err)
			}
			return string(data), nil
		}
		return mock.Raw, nil
	}

	headers := append([]string(nil), mock.Headers...)

	var body string
	switch b := mock.Body.(type) {
	case BodyFunc:
		out, passthrough := h.callBody(b, &headers, req)
		if passthrough {
			return h.passthrough(ctx, req)
		}
		encoded, err := encodeBody(out)
		if err != nil {
			return "", err
		}
		body = encoded
	case func(*[]string, Request) any:
		out, passthrough := h.callBody(b, &headers, req)
		if passthrough {
			return h.passthrough(ctx, req)
		}
		encoded, err := encodeBody(out)
		if err != nil {
			return "", err
		}
		body = encoded
	default:
		text, isText := bodyText(b)
		if !isText {
			encoded, err := encodeBody(b)
			if err != nil {
				return "", err
			}
			text = encoded
		} else if mock.File != "" && isFile(mock.File) {
			data, err := os.ReadFile(mock.File)
			if err != nil {
				return "", fmt.Errorf("failed to read response body %s: %w", mock.File, err)
			}
			text = string(data)
		}
		body = text
	}

	if len(headers) == 0 {
		headers = []string{defaultStatusLine}
	} else if !strings.HasPrefix(headers[0], "HTTP/") {
		headers = append([]string{defaultStatusLine}, headers...)
	}

	return strings.Join(headers, "\n") + "\r\n\r\n" + body, nil
}

func (h *HTTP) callBody(fn BodyFunc, headers *[]string, req Request) (any, bool) {
	out := fn(headers, req)
	if s, ok := out.(string); ok && s == RemoteGet {
		return nil, true
	}
	return out, false
}

// passthrough forwards req to the network transport.
func (h *HTTP) passthrough(ctx context.Context, req Request) (string, error) {
	raw, err := h.remote.Request(ctx, req.URL, req.Headers, req.Data, req.Options)
	if err != nil {
		observability.RecordPassthrough("error")
		return "", err
	}
	observability.RecordPassthrough("ok")
	observability.RecordResolution(observability.SourceRemote)

	h.record(req, raw)

	if out, ok := h.applyFilters(FilterRemoteGet, raw, req).(string); ok {
		raw = out
	}
	return raw, nil
}

func (h *HTTP) record(req Request, raw string) {
	if !h.recorder.Active() {
		return
	}
	resp, err := requests.ParseResponse(raw, req.URL, req.method())
	if err != nil {
		observability.Warn("Failed to record passthrough response", zap.String("url", req.URL), zap.Error(err))
		return
	}
	headers := make(map[string]string, len(resp.Headers))
	for key := range resp.Headers {
		headers[key] = resp.Headers.Get(key)
	}
	h.recorder.Record(recorder.Recording{
		Method:  req.method(),
		URL:     req.URL,
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    resp.Body,
	})
}

func (h *HTTP) track(ctx context.Context, req Request, source string, mocked bool) {
	if mocked {
		observability.RecordResolution(source)
	}
	observability.AddSpanEvent(ctx, "request resolved",
		attribute.String("pmp.source", source),
		attribute.Bool("pmp.mocked", mocked),
	)
	h.tracker.Log(tracker.RequestLog{
		Method:  req.method(),
		URL:     req.URL,
		Headers: req.Headers,
		Data:    req.Data,
		Source:  source,
		Mocked:  mocked,
	})
}

func (h *HTTP) applyFilters(name string, value any, req Request) any {
	if h.env == nil {
		return value
	}
	return h.env.Hooks.ApplyFilters(name, value, req)
}

// actionFeedOptions routes feed fetches through the requests transports so
// they hit the mock tables too.
func (h *HTTP) actionFeedOptions(args ...any) {
	feed := mocker.Arg[*cms.Feed](args, 0, nil)
	url := mocker.Arg(args, 1, "")
	if feed == nil || url == "" {
		return
	}

	resp, err := requests.Get(context.Background(), url, nil)
	if err != nil {
		observability.Warn("Failed to fetch mocked feed", zap.String("url", url), zap.Error(err))
		return
	}
	feed.RawData = []byte(resp.Body)
}

// Dispatch implements mocker.Dispatcher
func (h *HTTP) Dispatch(method string, args ...any) (any, error) {
	url := mocker.Arg(args, 0, "")
	var data any
	if len(args) > 1 {
		data = args[1]
	}

	switch method {
	case "enable", "intercept_transport":
		return h.Enable(), nil
	case "disable":
		return h.Disable(), nil
	case "dispose":
		return h.Dispose(), nil
	case "reset":
		h.Reset()
		return h, nil
	case "mock":
		return h.Mock(args...)
	case "once":
		return h.Once(url, data), nil
	case "next":
		return h.Next(url, data), nil
	case "remove":
		return h.Remove(url), nil
	case "default_not_found":
		return h.DefaultNotFound(mocker.Arg(args, 0, true), mocker.Arg(args, 1, true)), nil
	case "load":
		paths := make([]string, 0, len(args))
		for _, a := range args {
			if p, ok := a.(string); ok {
				paths = append(paths, p)
			}
		}
		if _, err := h.LoadFixtures(paths...); err != nil {
			return nil, err
		}
		return h, nil
	}
	observability.RecordDispatchError()
	return nil, mocker.UnknownMethod(ServiceHTTP, method)
}

// responseKeys are the keys of an option map accepted by normalize
var responseKeys = map[string]bool{"raw": true, "headers": true, "body": true, "file": true, "once": true}

// normalize converts the data argument of Mock, Once and Next to a Response.
func normalize(data any) *Response {
	switch d := data.(type) {
	case nil:
		return &Response{}
	case *Response:
		c := *d
		return &c
	case Response:
		return &d
	case map[string]any:
		if len(d) == 0 {
			return &Response{blank: true}
		}
		if isOptionMap(d) {
			return fromOptionMap(d)
		}
	case []any:
		if len(d) == 0 {
			return &Response{blank: true}
		}
	case map[string]string:
		if len(d) == 0 {
			return &Response{blank: true}
		}
	case []string:
		if len(d) == 0 {
			return &Response{blank: true}
		}
	}
	return &Response{Body: data}
}

func isOptionMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !responseKeys[k] {
			return false
		}
	}
	return true
}

func fromOptionMap(m map[string]any) *Response {
	resp := &Response{Body: m["body"]}
	resp.Raw, _ = m["raw"].(string)
	resp.File, _ = m["file"].(string)
	resp.Once, _ = m["once"].(bool)
	switch hs := m["headers"].(type) {
	case []string:
		resp.Headers = append([]string(nil), hs...)
	case string:
		resp.Headers = []string{hs}
	case []any:
		for _, v := range hs {
			resp.Headers = append(resp.Headers, fmt.Sprint(v))
		}
	}
	return resp
}

// asResponse accepts a filter result; nil and false mean "no mock".
func asResponse(v any) *Response {
	switch r := v.(type) {
	case nil:
		return nil
	case bool:
		if !r {
			return nil
		}
	case *Response:
		return r
	}
	return normalize(v)
}

func bodyText(v any) (string, bool) {
	switch b := v.(type) {
	case nil:
		return "", true
	case string:
		return b, true
	case []byte:
		return string(b), true
	case fmt.Stringer:
		return b.String(), true
	}
	return "", false
}

func encodeBody(v any) (string, error) {
	if text, ok := bodyText(v); ok {
		return text, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode mock body: %w", err)
	}
	return string(data), nil
}

func isFile(path string) bool {
	if strings.ContainsAny(path, "\r\n") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
