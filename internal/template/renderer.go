// Package template renders fixture bodies marked as templates. A body sees
// the intercepted request as its data, plus a few helpers for generated
// values and request lookups.
package template

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// DateLayout is the site date format produced by the "cmsDate" helper
const DateLayout = "2006-01-02 15:04:05"

// RequestData is the intercepted request a body is rendered for
type RequestData struct {
	URL     string
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Data    any
}

// NewRequestData splits rawURL into path and first query values
func NewRequestData(rawURL, method string, headers map[string]string, data any) *RequestData {
	rd := &RequestData{
		URL:     rawURL,
		Method:  method,
		Query:   make(map[string]string),
		Headers: headers,
		Data:    data,
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rd
	}
	rd.Path = u.Path
	for key, values := range u.Query() {
		rd.Query[key] = values[0]
	}
	return rd
}

// Header looks name up case-insensitively
func (rd *RequestData) Header(name string) string {
	for k, v := range rd.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// JSON reads path from the request data. A string is taken as a JSON
// document; any other value is encoded first.
func (rd *RequestData) JSON(path string) gjson.Result {
	switch d := rd.Data.(type) {
	case nil:
		return gjson.Result{}
	case string:
		return gjson.Get(d, path)
	case []byte:
		return gjson.GetBytes(d, path)
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return gjson.Result{}
		}
		return gjson.GetBytes(b, path)
	}
}

// Renderer parses bodies with the helper functions
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{funcs: template.FuncMap{
		"uuid":         uuid.NewString,
		"randomString": randomString,
		"randomInt":    randomInt,
		"now":          time.Now,
		"timestamp":    func() int64 { return time.Now().Unix() },
		"cmsDate":      func() string { return time.Now().Format(DateLayout) },
		"upper":        strings.ToUpper,
		"lower":        strings.ToLower,
		"jsonPath":     func(rd *RequestData, path string) string { return rd.JSON(path).String() },
	}}
}

// Compiled is a parsed body, safe to execute repeatedly
type Compiled struct {
	tmpl *template.Template
}

// Compile parses body
func (r *Renderer) Compile(body string) (*Compiled, error) {
	tmpl, err := template.New("body").Funcs(r.funcs).Option("missingkey=zero").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Compiled{tmpl: tmpl}, nil
}

// Check reports whether body parses
func (r *Renderer) Check(body string) error {
	_, err := r.Compile(body)
	return err
}

// Render compiles body and executes it for data
func (r *Renderer) Render(body string, data *RequestData) (string, error) {
	c, err := r.Compile(body)
	if err != nil {
		return "", err
	}
	return c.Execute(data)
}

// Execute renders the body for data
func (c *Compiled) Execute(data *RequestData) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

func randomInt(min, max int) int {
	if min >= max {
		return min
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	return int(n.Int64()) + min
}
