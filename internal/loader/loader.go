package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/comfortablynumb/pmp-unit-test/internal/models"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/comfortablynumb/pmp-unit-test/internal/validator"
	"go.uber.org/zap"
)

// FileResult is the outcome of loading one fixture file
type FileResult struct {
	Path       string
	Fixtures   int
	Validation *validator.ValidationResult
}

// Loader loads HTTP fixture files from files and directories
type Loader struct {
	paths     []string
	validator *validator.Validator
	fixtures  []models.Fixture
	results   []FileResult
	mu        sync.RWMutex
}

// NewLoader creates a fixture loader for one or more files or directories
func NewLoader(paths ...string) (*Loader, error) {
	v, err := validator.NewValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{
		paths:     paths,
		validator: v,
		fixtures:  make([]models.Fixture, 0),
	}, nil
}

// LoadAll loads every fixture file under the configured paths. Invalid files
// are reported in Results and skipped; only I/O failures abort the load.
func (l *Loader) LoadAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fixtures = make([]models.Fixture, 0)
	l.results = make([]FileResult, 0)

	for _, root := range l.paths {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("failed to read fixtures path %s: %w", root, err)
		}
		if !info.IsDir() {
			if err := l.loadFile(root); err != nil {
				return err
			}
			continue
		}

		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !isYAMLFile(path) {
				return nil
			}
			return l.loadFile(path)
		})
		if err != nil {
			return fmt.Errorf("failed to walk fixtures directory %s: %w", root, err)
		}
	}

	observability.Debug("loaded fixtures", zap.Int("count", len(l.fixtures)), zap.Int("paths", len(l.paths)))
	return nil
}

// loadFile validates and loads a single fixture file
func (l *Loader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	spec, result := l.validator.ValidateDocument(data)
	fr := FileResult{Path: path, Validation: result}

	for _, w := range result.Warnings {
		observability.Warn("fixture warning", zap.String("file", path), zap.String("warning", w))
	}
	if !result.Valid {
		observability.Warn("skipping invalid fixture file", zap.String("file", path), zap.Strings("errors", result.Errors))
		l.results = append(l.results, fr)
		return nil
	}

	dir := filepath.Dir(path)
	for _, f := range spec.Fixtures {
		f.Source = path
		// file and raw paths are relative to the fixture file
		if f.File != "" && !filepath.IsAbs(f.File) {
			f.File = filepath.Join(dir, f.File)
		}
		if f.Raw != "" && !strings.Contains(f.Raw, "\n") && !filepath.IsAbs(f.Raw) {
			if _, err := os.Stat(filepath.Join(dir, f.Raw)); err == nil {
				f.Raw = filepath.Join(dir, f.Raw)
			}
		}
		l.fixtures = append(l.fixtures, f)
	}
	fr.Fixtures = len(spec.Fixtures)
	l.results = append(l.results, fr)
	return nil
}

// GetFixtures returns a copy of all loaded fixtures
func (l *Loader) GetFixtures() []models.Fixture {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fixtures := make([]models.Fixture, len(l.fixtures))
	copy(fixtures, l.fixtures)
	return fixtures
}

// Results returns the per-file outcome of the last LoadAll
func (l *Loader) Results() []FileResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]FileResult, len(l.results))
	copy(results, l.results)
	return results
}

// Invalid returns the files that failed validation in the last LoadAll
func (l *Loader) Invalid() []FileResult {
	invalid := make([]FileResult, 0)
	for _, r := range l.Results() {
		if !r.Validation.Valid {
			invalid = append(invalid, r)
		}
	}
	return invalid
}

// isYAMLFile checks if a file has a YAML extension
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
