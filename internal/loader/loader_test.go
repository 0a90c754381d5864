package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestLoadAllDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api.yaml", `fixtures:
  - name: users
    url: https://api.example.com/users
    status_code: 200
    body: '[]'
  - url: https://api.example.com/flaky
    mode: next
    status_code: 503
`)
	writeFixture(t, dir, "nested/feed.yml", `fixtures:
  - url: https://example.com/feed
    file: feed.xml
`)
	writeFixture(t, dir, "nested/feed.xml", "<rss/>")
	writeFixture(t, dir, "README.md", "ignored")

	l, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	fixtures := l.GetFixtures()
	if len(fixtures) != 3 {
		t.Fatalf("Expected 3 fixtures, got %d", len(fixtures))
	}

	byURL := make(map[string]int)
	for i, f := range fixtures {
		byURL[f.URL] = i
		if f.Source == "" {
			t.Errorf("Expected source to be set for %s", f.URL)
		}
	}

	feed := fixtures[byURL["https://example.com/feed"]]
	expected := filepath.Join(dir, "nested", "feed.xml")
	if feed.File != expected {
		t.Errorf("Expected file %s, got %s", expected, feed.File)
	}

	flaky := fixtures[byURL["https://api.example.com/flaky"]]
	if flaky.Mode != "next" || flaky.StatusCode != 503 {
		t.Errorf("Expected next/503, got %s/%d", flaky.Mode, flaky.StatusCode)
	}

	if len(l.Results()) != 2 {
		t.Errorf("Expected 2 file results, got %d", len(l.Results()))
	}
}

func TestLoadAllSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "good.yaml", "fixtures:\n  - url: https://example.com\n")
	bad := writeFixture(t, dir, "bad.yaml", "fixtures:\n  - body: missing url\n")

	l, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if len(l.GetFixtures()) != 1 {
		t.Errorf("Expected 1 fixture, got %d", len(l.GetFixtures()))
	}

	invalid := l.Invalid()
	if len(invalid) != 1 {
		t.Fatalf("Expected 1 invalid file, got %d", len(invalid))
	}
	if invalid[0].Path != bad {
		t.Errorf("Expected invalid file %s, got %s", bad, invalid[0].Path)
	}
	if len(invalid[0].Validation.Errors) == 0 {
		t.Error("Expected validation errors for the invalid file")
	}
}

func TestLoadAllSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "single.yaml", "fixtures:\n  - url: '*'\n    body: fallback\n")

	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	fixtures := l.GetFixtures()
	if len(fixtures) != 1 || fixtures[0].URL != "*" {
		t.Errorf("Expected one wildcard fixture, got %+v", fixtures)
	}
}

func TestLoadAllMissingPath(t *testing.T) {
	l, err := NewLoader(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := l.LoadAll(); err == nil {
		t.Error("Expected error for a missing path")
	}
}

func TestLoadAllReplacesPreviousResults(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "api.yaml", "fixtures:\n  - url: https://a.example.com\n  - url: https://b.example.com\n")

	l, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	writeFixture(t, dir, filepath.Base(path), "fixtures:\n  - url: https://a.example.com\n")
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if len(l.GetFixtures()) != 1 {
		t.Errorf("Expected reload to replace fixtures, got %d", len(l.GetFixtures()))
	}
}

func TestIsYAMLFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"a.yaml", true},
		{"a.YML", true},
		{"a.json", false},
		{"yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isYAMLFile(tt.path); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
