package validator

import (
	"encoding/json"
	"fmt"

	"github.com/comfortablynumb/pmp-unit-test/internal/models"
	"github.com/comfortablynumb/pmp-unit-test/internal/template"
	"github.com/dop251/goja"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// fixtureSchema is the JSON schema every fixture document must satisfy
const fixtureSchema = `{
  "type": "object",
  "required": ["fixtures"],
  "properties": {
    "fixtures": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url"],
        "additionalProperties": false,
        "properties": {
          "name":        {"type": "string"},
          "url":         {"type": "string"},
          "mode":        {"enum": ["mock", "once", "next"]},
          "status_code": {"type": "integer"},
          "headers":     {"type": "object", "additionalProperties": {"type": "string"}},
          "body":        {"type": "string"},
          "json":        {},
          "file":        {"type": "string"},
          "raw":         {"type": "string"},
          "template":    {"type": "boolean"},
          "javascript":  {"type": "string"}
        }
      }
    }
  }
}`

// ValidationResult represents the result of fixture validation
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates fixture documents
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator creates a new fixture validator
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(fixtureSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile fixture schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateDocument checks raw YAML against the fixture schema and, when it
// conforms, decodes and validates the fixtures themselves.
func (v *Validator) ValidateDocument(data []byte) (*models.FixtureSpec, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		result.fail("failed to parse YAML: %v", err)
		return nil, result
	}

	// Round-trip through JSON so the schema sees plain JSON types
	asJSON, err := json.Marshal(doc)
	if err != nil {
		result.fail("document cannot be represented as JSON: %v", err)
		return nil, result
	}

	schemaResult, err := v.schema.Validate(gojsonschema.NewBytesLoader(asJSON))
	if err != nil {
		result.fail("schema validation failed: %v", err)
		return nil, result
	}
	for _, e := range schemaResult.Errors() {
		result.fail("%s", e.String())
	}
	if !result.Valid {
		return nil, result
	}

	var spec models.FixtureSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		result.fail("failed to decode fixtures: %v", err)
		return nil, result
	}

	v.ValidateFixtures(spec.Fixtures, result)
	return &spec, result
}

// ValidateFixtures checks fixtures for mistakes the schema cannot express
func (v *Validator) ValidateFixtures(fixtures []models.Fixture, result *ValidationResult) {
	seen := make(map[string]int)

	for i, f := range fixtures {
		prefix := fmt.Sprintf("Fixture #%d (%s)", i+1, f.URL)

		if f.URL == "" {
			result.fail("%s: url is required", prefix)
		}
		if f.EffectiveMode() != models.ModeNext {
			seen[f.URL]++
		}

		if f.StatusCode != 0 && (f.StatusCode < 100 || f.StatusCode > 599) {
			result.fail("%s: invalid status code %d", prefix, f.StatusCode)
		}

		sources := 0
		for _, set := range []bool{f.Body != "", f.JSON != nil, f.File != "", f.Raw != "", f.JavaScript != ""} {
			if set {
				sources++
			}
		}
		if sources > 1 {
			result.warn("%s: more than one of body, json, file, raw and javascript is set", prefix)
		}
		if f.Raw != "" && (f.StatusCode != 0 || len(f.Headers) > 0) {
			result.warn("%s: raw responses ignore status_code and headers", prefix)
		}

		if f.JavaScript != "" {
			if _, err := goja.Compile(prefix, f.JavaScript, false); err != nil {
				result.fail("%s: invalid JavaScript: %v", prefix, err)
			}
		}

		if f.Template {
			if err := template.NewRenderer().Check(f.Body); err != nil {
				result.fail("%s: invalid body template: %v", prefix, err)
			}
		}
	}

	for url, count := range seen {
		if count > 1 {
			result.warn("Duplicate fixture url '%s' (%d occurrences), the last one wins", url, count)
		}
	}
}
