// Package requests is a small HTTP client whose transports speak raw HTTP
// response text. The active transport list is process-global so a test
// harness can swap it out, the same way pluggable transports work in
// scripting-language HTTP libraries.
package requests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoTransport is returned when no registered transport passes the
// capability probe for a request.
var ErrNoTransport = errors.New("no working transports found")

// Headers are request headers keyed by name
type Headers map[string]string

// Capabilities describe what a request needs from a transport, e.g. "ssl".
type Capabilities map[string]bool

// Options tune a single request.
type Options struct {
	Method  string
	Timeout time.Duration
}

// Transport performs a request and returns the raw response text:
// status line, header lines, a blank line and the body.
type Transport interface {
	Request(ctx context.Context, url string, headers Headers, data any, options Options) (string, error)
	Test(capabilities Capabilities) bool
}

var (
	mu         sync.Mutex
	transports = []Transport{NewNetTransport(nil)}
	selected   = make(map[string]Transport)
)

// Transports returns a copy of the registered transports in probe order
func Transports() []Transport {
	mu.Lock()
	defer mu.Unlock()
	return append([]Transport(nil), transports...)
}

// SetTransports replaces the registered transports and returns the previous
// list. The selection cache is left alone; call ClearTransportCache for the
// change to affect requests whose transport was already chosen.
func SetTransports(ts []Transport) []Transport {
	mu.Lock()
	defer mu.Unlock()
	prev := transports
	transports = append([]Transport(nil), ts...)
	return prev
}

// ClearTransportCache forgets which transport was chosen per capability set
func ClearTransportCache() {
	mu.Lock()
	defer mu.Unlock()
	selected = make(map[string]Transport)
}

func getTransport(caps Capabilities) (Transport, error) {
	key := capabilityKey(caps)

	mu.Lock()
	defer mu.Unlock()

	if t, ok := selected[key]; ok {
		return t, nil
	}
	for _, t := range transports {
		if t.Test(caps) {
			selected[key] = t
			return t, nil
		}
	}
	return nil, ErrNoTransport
}

func capabilityKey(caps Capabilities) string {
	keys := make([]string, 0, len(caps))
	for k, v := range caps {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// Request sends a request through the selected transport and parses the
// raw response.
func Request(ctx context.Context, url string, headers Headers, data any, options Options) (*Response, error) {
	if options.Method == "" {
		options.Method = http.MethodGet
	}

	caps := Capabilities{}
	if strings.HasPrefix(strings.ToLower(url), "https://") {
		caps["ssl"] = true
	}

	t, err := getTransport(caps)
	if err != nil {
		return nil, err
	}

	raw, err := t.Request(ctx, url, headers, data, options)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	return ParseResponse(raw, url, options.Method)
}

// Get sends a GET request
func Get(ctx context.Context, url string, headers Headers) (*Response, error) {
	return Request(ctx, url, headers, nil, Options{Method: http.MethodGet})
}

// Post sends a POST request with data as the body
func Post(ctx context.Context, url string, headers Headers, data any) (*Response, error) {
	return Request(ctx, url, headers, data, Options{Method: http.MethodPost})
}

// Head sends a HEAD request
func Head(ctx context.Context, url string, headers Headers) (*Response, error) {
	return Request(ctx, url, headers, nil, Options{Method: http.MethodHead})
}
