package validator

import (
	"strings"
	"testing"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	return v
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name          string
		doc           string
		valid         bool
		errorContains string
		warnings      int
	}{
		{
			name:  "minimal",
			doc:   "fixtures:\n  - url: https://example.com\n",
			valid: true,
		},
		{
			name:  "json body",
			doc:   "fixtures:\n  - url: https://example.com\n    json:\n      ok: true\n",
			valid: true,
		},
		{
			name:  "missing url",
			doc:   "fixtures:\n  - body: hello\n",
			valid: false,
		},
		{
			name:  "unknown field",
			doc:   "fixtures:\n  - url: https://example.com\n    delay: 5\n",
			valid: false,
		},
		{
			name:  "unknown mode",
			doc:   "fixtures:\n  - url: https://example.com\n    mode: twice\n",
			valid: false,
		},
		{
			name:          "bad status",
			doc:           "fixtures:\n  - url: https://example.com\n    status_code: 999\n",
			valid:         false,
			errorContains: "invalid status code",
		},
		{
			name:          "bad javascript",
			doc:           "fixtures:\n  - url: https://example.com\n    javascript: 'function ('\n",
			valid:         false,
			errorContains: "invalid JavaScript",
		},
		{
			name:          "bad template",
			doc:           "fixtures:\n  - url: https://example.com\n    template: true\n    body: '{{ .URL '\n",
			valid:         false,
			errorContains: "invalid body template",
		},
		{
			name:  "template with helpers",
			doc:   "fixtures:\n  - url: https://example.com\n    template: true\n    body: '{{ upper .Method }} {{ uuid }}'\n",
			valid: true,
		},
		{
			name:          "malformed yaml",
			doc:           "fixtures: [\n",
			valid:         false,
			errorContains: "failed to parse YAML",
		},
		{
			name:     "multiple sources",
			doc:      "fixtures:\n  - url: https://example.com\n    body: a\n    file: b.txt\n",
			valid:    true,
			warnings: 1,
		},
		{
			name:     "raw with headers",
			doc:      "fixtures:\n  - url: https://example.com\n    raw: response.txt\n    status_code: 201\n",
			valid:    true,
			warnings: 1,
		},
		{
			name:     "duplicate url",
			doc:      "fixtures:\n  - url: https://example.com\n  - url: https://example.com\n",
			valid:    true,
			warnings: 1,
		},
		{
			name:  "duplicate next entries",
			doc:   "fixtures:\n  - url: https://example.com\n    mode: next\n  - url: https://example.com\n    mode: next\n",
			valid: true,
		},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, result := v.ValidateDocument([]byte(tt.doc))

			if result.Valid != tt.valid {
				t.Fatalf("Expected valid=%v, got %v (errors: %v)", tt.valid, result.Valid, result.Errors)
			}
			if tt.valid && spec == nil {
				t.Error("Expected decoded spec for a valid document")
			}
			if tt.errorContains != "" {
				found := false
				for _, e := range result.Errors {
					if strings.Contains(e, tt.errorContains) {
						found = true
					}
				}
				if !found {
					t.Errorf("Expected an error containing %q, got %v", tt.errorContains, result.Errors)
				}
			}
			if len(result.Warnings) != tt.warnings {
				t.Errorf("Expected %d warnings, got %v", tt.warnings, result.Warnings)
			}
		})
	}
}
