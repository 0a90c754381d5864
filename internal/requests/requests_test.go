package requests

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
)

type stubTransport struct {
	raw    string
	ok     bool
	calls  int
	method string
}

func (s *stubTransport) Request(ctx context.Context, url string, headers Headers, data any, options Options) (string, error) {
	s.calls++
	s.method = options.Method
	return s.raw, nil
}

func (s *stubTransport) Test(capabilities Capabilities) bool {
	return s.ok
}

// swapTransports installs ts for the duration of the test
func swapTransports(t *testing.T, ts ...Transport) {
	t.Helper()
	prev := SetTransports(ts)
	ClearTransportCache()
	t.Cleanup(func() {
		SetTransports(prev)
		ClearTransportCache()
	})
}

func TestTransportSelection(t *testing.T) {
	broken := &stubTransport{ok: false}
	working := &stubTransport{ok: true, raw: "HTTP/1.1 200 OK\r\n\r\nstub"}
	swapTransports(t, broken, working)

	resp, err := Head(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.Body != "stub" {
		t.Errorf("Expected stub body, got %q", resp.Body)
	}
	if broken.calls != 0 || working.calls != 1 {
		t.Errorf("Expected only the working transport to be used, got %d and %d", broken.calls, working.calls)
	}
	if working.method != http.MethodHead {
		t.Errorf("Expected HEAD, got %s", working.method)
	}
}

func TestTransportCache(t *testing.T) {
	first := &stubTransport{ok: true, raw: "HTTP/1.1 200 OK\r\n\r\nfirst"}
	second := &stubTransport{ok: true, raw: "HTTP/1.1 200 OK\r\n\r\nsecond"}
	swapTransports(t, first)

	if _, err := Get(context.Background(), "https://example.com", nil); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	SetTransports([]Transport{second})
	resp, err := Get(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.Body != "first" {
		t.Errorf("Expected cached transport, got %q", resp.Body)
	}

	ClearTransportCache()
	resp, err = Get(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.Body != "second" {
		t.Errorf("Expected new transport after clearing the cache, got %q", resp.Body)
	}
}

func TestNoTransport(t *testing.T) {
	swapTransports(t, &stubTransport{ok: false})

	_, err := Get(context.Background(), "http://example.com", nil)
	if !errors.Is(err, ErrNoTransport) {
		t.Errorf("Expected ErrNoTransport, got %v", err)
	}
}

func TestParseResponse(t *testing.T) {
	raw := "HTTP/1.1 404 Not Found\nSet-Cookie: session=abc\nX-A: 1\nX-A: 2\r\n\r\n{\"error\":{\"code\":7}}"

	resp, err := ParseResponse(raw, "https://example.com", "")
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.StatusCode != 404 || resp.Success {
		t.Errorf("Expected unsuccessful 404, got %d", resp.StatusCode)
	}
	if resp.Cookies["session"] == nil || resp.Cookies["session"].Value != "abc" {
		t.Errorf("Expected session cookie, got %v", resp.Cookies)
	}
	if got := resp.Headers.Values("X-A"); len(got) != 2 {
		t.Errorf("Expected two X-A headers, got %v", got)
	}
	if code := resp.JSON("error.code").Int(); code != 7 {
		t.Errorf("Expected error code 7, got %d", code)
	}
	if resp.Raw != raw {
		t.Error("Expected raw text to be kept")
	}

	if _, err := ParseResponse("not http", "https://example.com", ""); err == nil {
		t.Error("Expected error for malformed response")
	}
}

func TestNetTransport(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(http.StatusCreated, http.Header{"X-Reply": {"yes"}}, []byte("created")),
	)

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		nt := NewNetTransport(nil)

		raw, err := nt.Request(context.Background(), server.URL+"/items?a=1", Headers{"X-Token": "t"}, map[string]string{"b": "2"}, Options{Method: http.MethodGet})
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp, err := ParseResponse(raw, server.URL, http.MethodGet)
		if err != nil {
			t.Fatalf("ParseResponse failed: %v", err)
		}
		if resp.StatusCode != http.StatusCreated || resp.Body != "created" || resp.Headers.Get("X-Reply") != "yes" {
			t.Errorf("Unexpected response %d %q %v", resp.StatusCode, resp.Body, resp.Headers)
		}

		info := <-requests
		if info.Request.URL.RawQuery != "a=1&b=2" {
			t.Errorf("Expected merged query, got %s", info.Request.URL.RawQuery)
		}
		if info.Request.Header.Get("X-Token") != "t" {
			t.Error("Expected X-Token header")
		}

		_, err = nt.Request(context.Background(), server.URL, nil, map[string]string{"name": "pair"}, Options{Method: http.MethodPost, Timeout: time.Second})
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		info = <-requests
		if info.Request.Method != http.MethodPost || string(info.Body) != "name=pair" {
			t.Errorf("Expected form POST, got %s %q", info.Request.Method, info.Body)
		}
		if ct := info.Request.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Unexpected content type %s", ct)
		}

		if _, err := nt.Request(context.Background(), server.URL, nil, 42, Options{Method: http.MethodPost}); err == nil {
			t.Error("Expected error for unsupported data")
		}
	})
}

func TestNetTransportDoesNotFollowRedirects(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(http.StatusFound, http.Header{"Location": {"/elsewhere"}}, nil)

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		raw, err := NewNetTransport(nil).Request(context.Background(), server.URL, nil, nil, Options{})
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if !strings.HasPrefix(raw, "HTTP/1.1 302") {
			t.Errorf("Expected raw redirect, got %q", raw)
		}
	})
}

func TestHeadWithContentLength(t *testing.T) {
	swapTransports(t, NewNetTransport(nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "11")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte("hello world"))
		}
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		resp, err := Head(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatalf("Head failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK || resp.Body != "" {
			t.Errorf("Expected empty 200, got %d %q", resp.StatusCode, resp.Body)
		}
		if resp.Headers.Get("Content-Length") != "11" {
			t.Errorf("Expected Content-Length 11, got %q", resp.Headers.Get("Content-Length"))
		}

		resp, err = Get(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if resp.Body != "hello world" {
			t.Errorf("Expected body, got %q", resp.Body)
		}
	})
}

func TestParseHeadResponse(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\n"

	if _, err := ParseResponse(raw, "https://example.com", http.MethodHead); err != nil {
		t.Errorf("Expected HEAD response to parse, got %v", err)
	}
	if _, err := ParseResponse(raw, "https://example.com", ""); err == nil {
		t.Error("Expected missing body to fail for GET")
	}
}

func TestNetTransportCapabilities(t *testing.T) {
	nt := NewNetTransport(nil)
	if !nt.Test(Capabilities{"ssl": true}) {
		t.Error("Expected ssl support")
	}
	if nt.Test(Capabilities{"http3": true}) {
		t.Error("Expected no http3 support")
	}
}

func TestFormat(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTeapot,
		Header:     http.Header{"X-A": {"1"}},
		Body:       io.NopCloser(strings.NewReader("")),
	}
	raw := Format(resp, []byte("tea"))

	if !strings.HasPrefix(raw, "HTTP/1.1 418 I'm a teapot\r\n") {
		t.Errorf("Unexpected status line in %q", raw)
	}
	parsed, err := ParseResponse(raw, "x", "")
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if parsed.Body != "tea" || parsed.Headers.Get("X-A") != "1" {
		t.Errorf("Unexpected round trip %q %v", parsed.Body, parsed.Headers)
	}
}
