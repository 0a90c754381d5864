package mocks

import (
	"fmt"
	"strings"

	"github.com/comfortablynumb/pmp-unit-test/internal/loader"
	"github.com/comfortablynumb/pmp-unit-test/internal/models"
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/comfortablynumb/pmp-unit-test/internal/template"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// LoadFixtures registers the responses of every fixture file under paths
// and returns how many were registered. Any invalid file fails the load
// before anything is registered.
func (h *HTTP) LoadFixtures(paths ...string) (int, error) {
	l, err := loader.NewLoader(paths...)
	if err != nil {
		return 0, err
	}
	if err := l.LoadAll(); err != nil {
		return 0, err
	}
	if invalid := l.Invalid(); len(invalid) > 0 {
		return 0, fmt.Errorf("invalid fixture file %s: %s", invalid[0].Path, strings.Join(invalid[0].Validation.Errors, "; "))
	}

	fixtures := l.GetFixtures()
	responses := make([]*Response, 0, len(fixtures))
	for _, f := range fixtures {
		resp, err := fixtureResponse(f)
		if err != nil {
			return 0, fmt.Errorf("fixture %s from %s: %w", f.URL, f.Source, err)
		}
		responses = append(responses, resp)
	}

	for i, f := range fixtures {
		switch f.EffectiveMode() {
		case models.ModeNext:
			h.Next(f.URL, responses[i])
		case models.ModeOnce:
			h.Once(f.URL, responses[i])
		default:
			h.MockURL(f.URL, responses[i])
		}
	}

	observability.RecordFixturesLoaded(len(fixtures))
	observability.Info("Loaded HTTP fixtures", zap.Int("count", len(fixtures)), zap.Strings("paths", paths))
	return len(fixtures), nil
}

// fixtureResponse converts a fixture to a mock response
func fixtureResponse(f models.Fixture) (*Response, error) {
	if f.Raw != "" {
		return &Response{Raw: f.Raw}, nil
	}

	resp := &Response{Headers: f.HeaderLines(), File: f.File}

	switch {
	case f.JavaScript != "":
		fn, err := scriptBody(f)
		if err != nil {
			return nil, err
		}
		resp.Body = fn
	case f.Template:
		fn, err := templateBody(f.Body)
		if err != nil {
			return nil, err
		}
		resp.Body = fn
	case f.JSON != nil:
		resp.Body = f.JSON
	default:
		resp.Body = f.Body
	}
	return resp, nil
}

func templateBody(body string) (BodyFunc, error) {
	tmpl, err := template.NewRenderer().Compile(body)
	if err != nil {
		return nil, err
	}
	return func(headers *[]string, req Request) any {
		out, err := tmpl.Execute(template.NewRequestData(req.URL, req.method(), req.Headers, req.Data))
		if err != nil {
			observability.Warn("Fixture template failed", zap.String("url", req.URL), zap.Error(err))
			*headers = []string{"HTTP/1.1 500 Internal Server Error"}
			return err.Error()
		}
		return out
	}, nil
}

// scriptBody compiles the fixture script once. Each request runs it in a
// fresh VM with a request object in scope. A string result is the body; an
// object with body or status_code keys sets the response parts; any other
// value is encoded as JSON.
func scriptBody(f models.Fixture) (BodyFunc, error) {
	prog, err := goja.Compile(f.URL, f.JavaScript, false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}

	return func(headers *[]string, req Request) any {
		vm := goja.New()

		rd := template.NewRequestData(req.URL, req.method(), req.Headers, req.Data)
		log := observability.With(zap.String("url", req.URL))
		vm.Set("request", map[string]interface{}{ //nolint:errcheck // plain values
			"url":     rd.URL,
			"path":    rd.Path,
			"method":  rd.Method,
			"query":   rd.Query,
			"headers": rd.Headers,
			"data":    rd.Data,
		})
		vm.Set("console", map[string]interface{}{ //nolint:errcheck // plain values
			"log": func(args ...interface{}) {
				log.Debug("Fixture script", zap.String("message", fmt.Sprint(args...)))
			},
		})

		result, err := vm.RunProgram(prog)
		if err != nil {
			log.Warn("Fixture script failed", zap.Error(err))
			*headers = []string{"HTTP/1.1 500 Internal Server Error"}
			return fmt.Sprintf("JavaScript error: %v", err)
		}

		out := result.Export()
		spec, ok := out.(map[string]interface{})
		if !ok {
			return out
		}
		_, hasBody := spec["body"]
		_, hasStatus := spec["status_code"]
		if !hasBody && !hasStatus {
			return out
		}

		resp := f
		if code, ok := spec["status_code"].(int64); ok {
			resp.StatusCode = int(code)
		}
		if hs, ok := spec["headers"].(map[string]interface{}); ok {
			merged := make(map[string]string, len(f.Headers)+len(hs))
			for k, v := range f.Headers {
				merged[k] = v
			}
			for k, v := range hs {
				merged[k] = fmt.Sprint(v)
			}
			resp.Headers = merged
		}
		if lines := resp.HeaderLines(); lines != nil {
			*headers = lines
		}
		return spec["body"]
	}, nil
}
