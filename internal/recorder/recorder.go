// Package recorder captures responses the HTTP mocker let through to the
// network, so a test run against live services can be turned into fixtures.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/comfortablynumb/pmp-unit-test/internal/models"
	"gopkg.in/yaml.v3"
)

// Recording is one passthrough response
type Recording struct {
	At      time.Time         `yaml:"at" json:"at"`
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Status  int               `yaml:"status" json:"status"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// Recorder collects recordings while active
type Recorder struct {
	mu      sync.RWMutex
	active  bool
	entries []Recording
}

// NewRecorder creates an inactive recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Active reports whether Record keeps what it is given
func (r *Recorder) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Start drops previous recordings and activates the recorder
func (r *Recorder) Start() {
	r.mu.Lock()
	r.active = true
	r.entries = nil
	r.mu.Unlock()
}

// Stop deactivates the recorder, keeping what was recorded
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
}

// Record appends rec while active. A zero At is set to the current time.
func (r *Recorder) Record(rec Recording) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	r.entries = append(r.entries, rec)
}

// Recordings returns a copy of the recordings, oldest first
func (r *Recorder) Recordings() []Recording {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Recording(nil), r.entries...)
}

// Count returns the number of recordings
func (r *Recorder) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Fixtures turns the recordings into fixtures. Repeated URLs replay their
// responses in order through "next" fixtures; a URL seen once is mocked.
func (r *Recorder) Fixtures() models.FixtureSpec {
	recs := r.Recordings()

	seen := make(map[string]int, len(recs))
	for _, rec := range recs {
		seen[rec.URL]++
	}

	spec := models.FixtureSpec{Fixtures: make([]models.Fixture, len(recs))}
	for i, rec := range recs {
		f := models.Fixture{
			Name:       fmt.Sprintf("Recorded: %s %s", rec.Method, rec.URL),
			URL:        rec.URL,
			Mode:       models.ModeMock,
			StatusCode: rec.Status,
			Headers:    rec.Headers,
			Body:       rec.Body,
		}
		if seen[rec.URL] > 1 {
			f.Mode = models.ModeNext
		}
		spec.Fixtures[i] = f
	}
	return spec
}

// ExportYAML encodes Fixtures as a fixture file
func (r *Recorder) ExportYAML() ([]byte, error) {
	spec := r.Fixtures()
	data, err := yaml.Marshal(&spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fixtures: %w", err)
	}
	return data, nil
}
