package models

import (
	"fmt"
	"net/http"
	"sort"
)

// Fixture modes: how a loaded fixture is registered with the HTTP mocker
const (
	ModeMock = "mock" // persistent until removed
	ModeOnce = "once" // persistent entry removed after its first match
	ModeNext = "next" // consumed by the next matching request
)

// FixtureSpec is a fixture file: a list of HTTP responses keyed by URL
type FixtureSpec struct {
	Fixtures []Fixture `yaml:"fixtures" json:"fixtures"`
}

// Fixture is one mocked HTTP response.
type Fixture struct {
	Name       string            `yaml:"name,omitempty" json:"name,omitempty"`
	URL        string            `yaml:"url" json:"url"`                     // exact URL or "*"
	Mode       string            `yaml:"mode,omitempty" json:"mode,omitempty"` // mock (default), once, next
	StatusCode int               `yaml:"status_code,omitempty" json:"status_code,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body       string            `yaml:"body,omitempty" json:"body,omitempty"`
	JSON       any               `yaml:"json,omitempty" json:"json,omitempty"`             // encoded as the body
	File       string            `yaml:"file,omitempty" json:"file,omitempty"`             // body read from disk
	Raw        string            `yaml:"raw,omitempty" json:"raw,omitempty"`               // whole response text or a path to it
	Template   bool              `yaml:"template,omitempty" json:"template,omitempty"`     // body is a Go template
	JavaScript string            `yaml:"javascript,omitempty" json:"javascript,omitempty"` // script computing the body
	Source     string            `yaml:"-" json:"-"`                                       // file the fixture came from
}

// EffectiveMode returns the mode, defaulting to ModeMock
func (f *Fixture) EffectiveMode() string {
	if f.Mode == "" {
		return ModeMock
	}
	return f.Mode
}

// HeaderLines renders the status line followed by the headers, sorted by
// name. It returns nil when neither a status nor headers were set so the
// default status line applies.
func (f *Fixture) HeaderLines() []string {
	if f.StatusCode == 0 && len(f.Headers) == 0 {
		return nil
	}

	status := f.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	lines := []string{fmt.Sprintf("HTTP/1.1 %d %s", status, http.StatusText(status))}

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+f.Headers[k])
	}
	return lines
}
