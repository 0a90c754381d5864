package requests

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Response is a parsed raw HTTP response.
type Response struct {
	URL        string
	Protocol   string
	StatusCode int
	Status     string
	Headers    http.Header
	Cookies    map[string]*http.Cookie
	Body       string
	Success    bool
	Raw        string
}

// ParseResponse parses raw response text as produced by a Transport for a
// request with the given method. An empty method is GET. A HEAD response is
// read without a body whatever its Content-Length says.
func ParseResponse(raw, url, method string) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(raw)), &http.Request{Method: method})
	if err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // in-memory reader

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	cookies := make(map[string]*http.Cookie)
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c
	}

	return &Response{
		URL:        url,
		Protocol:   resp.Proto,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Cookies:    cookies,
		Body:       string(body),
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		Raw:        raw,
	}, nil
}

// JSON looks up a GJSON path in the body
func (r *Response) JSON(path string) gjson.Result {
	return gjson.Get(r.Body, path)
}

// Format renders an http.Response back into raw response text. The body must
// already have been read into body.
func Format(resp *http.Response, body []byte) string {
	var b strings.Builder
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	b.WriteString(proto + " " + status + "\r\n")
	_ = resp.Header.Write(&b)
	b.WriteString("\r\n")
	b.Write(body)
	return b.String()
}
