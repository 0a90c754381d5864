package requests

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// NetTransport performs real network requests with net/http.
type NetTransport struct {
	client *http.Client
}

// NewNetTransport creates a network transport. A nil client gets
// NewClient(0).
func NewNetTransport(client *http.Client) *NetTransport {
	if client == nil {
		client = NewClient(0)
	}
	return &NetTransport{client: client}
}

// NewClient returns a client that does not follow redirects, so callers see
// the raw response. A zero timeout means 30 seconds.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Test reports whether the transport supports capabilities. The network
// transport supports everything this package asks for.
func (t *NetTransport) Test(capabilities Capabilities) bool {
	for name, wanted := range capabilities {
		if wanted && name != "ssl" {
			return false
		}
	}
	return true
}

// Request implements Transport.
func (t *NetTransport) Request(ctx context.Context, rawURL string, headers Headers, data any, options Options) (raw string, err error) {
	method := options.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := observability.StartClientSpan(ctx, method, rawURL)
	defer func() { observability.EndSpan(span, err) }()

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	target, body, contentType, err := encodeData(method, rawURL, data)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	observability.Debug("forwarding request to network", zap.String("method", method), zap.String("url", target))

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return Format(resp, respBody), nil
}

// encodeData places data in the query string for GET/HEAD/DELETE and in
// the body otherwise. Maps are form encoded; strings and bytes are sent as is.
func encodeData(method, rawURL string, data any) (string, io.Reader, string, error) {
	var values url.Values
	var payload string

	switch d := data.(type) {
	case nil:
		return rawURL, nil, "", nil
	case string:
		payload = d
	case []byte:
		payload = string(d)
	case map[string]string:
		values = url.Values{}
		for k, v := range d {
			values.Set(k, v)
		}
	case url.Values:
		values = d
	default:
		return "", nil, "", fmt.Errorf("unsupported request data type %T", data)
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		query := payload
		if values != nil {
			query = values.Encode()
		}
		if query == "" {
			return rawURL, nil, "", nil
		}
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		return rawURL + sep + query, nil, "", nil
	}

	if values != nil {
		return rawURL, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", nil
	}
	return rawURL, strings.NewReader(payload), "", nil
}
