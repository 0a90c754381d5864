package recorder

import (
	"testing"
	"time"

	"github.com/comfortablynumb/pmp-unit-test/internal/models"
	"gopkg.in/yaml.v3"
)

func TestRecorderInactiveByDefault(t *testing.T) {
	r := NewRecorder()
	r.Record(Recording{Method: "GET", URL: "https://example.com", Status: 200, Body: "ok"})

	if r.Active() {
		t.Error("Expected recorder to be inactive")
	}
	if r.Count() != 0 {
		t.Errorf("Expected no recordings, got %d", r.Count())
	}
}

func TestRecorderStartStop(t *testing.T) {
	r := NewRecorder()
	r.Start()
	r.Record(Recording{Method: "GET", URL: "https://example.com", Status: 200, Body: "ok"})
	r.Stop()
	r.Record(Recording{Method: "GET", URL: "https://example.com/ignored", Status: 200})

	recordings := r.Recordings()
	if len(recordings) != 1 {
		t.Fatalf("Expected 1 recording, got %d", len(recordings))
	}
	if recordings[0].URL != "https://example.com" || recordings[0].Body != "ok" {
		t.Errorf("Unexpected recording: %+v", recordings[0])
	}
	if recordings[0].At.IsZero() {
		t.Error("Expected the recording time to be set")
	}

	r.Start()
	if r.Count() != 0 {
		t.Error("Expected Start to clear previous recordings")
	}
}

func TestRecorderKeepsGivenTime(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRecorder()
	r.Start()
	r.Record(Recording{URL: "https://example.com", At: at})

	if got := r.Recordings()[0].At; !got.Equal(at) {
		t.Errorf("Expected %v, got %v", at, got)
	}
}

func TestFixtures(t *testing.T) {
	r := NewRecorder()
	r.Start()
	r.Record(Recording{Method: "GET", URL: "https://example.com/once", Status: 200, Headers: map[string]string{"Content-Type": "text/plain"}, Body: "one"})
	r.Record(Recording{Method: "GET", URL: "https://example.com/twice", Status: 500, Body: "first"})
	r.Record(Recording{Method: "GET", URL: "https://example.com/twice", Status: 200, Body: "second"})

	spec := r.Fixtures()
	if len(spec.Fixtures) != 3 {
		t.Fatalf("Expected 3 fixtures, got %d", len(spec.Fixtures))
	}

	if spec.Fixtures[0].EffectiveMode() != models.ModeMock {
		t.Errorf("Expected single recording to be a persistent mock, got %s", spec.Fixtures[0].Mode)
	}
	if spec.Fixtures[0].Headers["Content-Type"] != "text/plain" {
		t.Errorf("Expected headers to be kept, got %v", spec.Fixtures[0].Headers)
	}
	for _, f := range spec.Fixtures[1:] {
		if f.Mode != models.ModeNext {
			t.Errorf("Expected repeated url to export as next, got %s", f.Mode)
		}
	}
	if spec.Fixtures[1].StatusCode != 500 || spec.Fixtures[2].Body != "second" {
		t.Error("Expected repeated responses to keep their order")
	}
}

func TestExportYAML(t *testing.T) {
	r := NewRecorder()
	r.Start()
	r.Record(Recording{Method: "GET", URL: "https://example.com", Status: 201, Body: "created"})

	data, err := r.ExportYAML()
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	var spec models.FixtureSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("Exported YAML does not decode: %v", err)
	}
	if len(spec.Fixtures) != 1 || spec.Fixtures[0].StatusCode != 201 {
		t.Errorf("Unexpected exported fixtures: %+v", spec.Fixtures)
	}
}
