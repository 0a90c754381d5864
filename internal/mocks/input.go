package mocks

import (
	"fmt"
	"strings"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
)

const ServiceInput = "input"

// inputMethods in the order they are applied; the last one present sets
// REQUEST_METHOD.
var inputMethods = []string{cms.MethodRequest, cms.MethodGet, cms.MethodPost}

// Input mocks the request superglobals
type Input struct {
	env      *cms.Env
	captured bool
	saved    map[string]map[string]string
	method   string
}

// NewInput creates an input mocker
func NewInput(env *cms.Env) *Input {
	return &Input{env: env}
}

// ProvideService implements mocker.Mocker
func (m *Input) ProvideService() string {
	return ServiceInput
}

// Mock implements mocker.Caller. The argument maps GET, POST or REQUEST
// (any case) to the values of that bucket; other keys are ignored.
func (m *Input) Mock(args ...any) (any, error) {
	buckets, err := inputBuckets(mocker.Arg[any](args, 0, nil))
	if err != nil {
		return nil, err
	}

	m.capture()
	for _, method := range inputMethods {
		values, ok := buckets[method]
		if !ok {
			continue
		}
		m.env.SetServer("REQUEST_METHOD", method)
		m.env.SetSuperglobal(method, values)
	}
	return m, nil
}

// capture saves the superglobals before the first mock so Reset can
// restore them.
func (m *Input) capture() {
	if m.captured {
		return
	}
	m.saved = make(map[string]map[string]string, len(inputMethods))
	for _, method := range inputMethods {
		m.saved[method] = m.env.Superglobal(method)
	}
	m.method = m.env.Server("REQUEST_METHOD")
	m.captured = true
}

// Reset restores the superglobals seen before the first mock
func (m *Input) Reset() {
	if !m.captured {
		return
	}
	for method, values := range m.saved {
		m.env.SetSuperglobal(method, values)
	}
	m.env.SetServer("REQUEST_METHOD", m.method)
	m.captured = false
	m.saved = nil
}

func inputBuckets(v any) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	switch a := v.(type) {
	case nil:
	case map[string]map[string]string:
		for k, values := range a {
			out[strings.ToUpper(k)] = values
		}
	case map[string]any:
		for k, raw := range a {
			values := make(map[string]string)
			switch vs := raw.(type) {
			case map[string]string:
				values = vs
			case map[string]any:
				for name, val := range vs {
					values[name] = fmt.Sprint(val)
				}
			default:
				return nil, fmt.Errorf("%w: input bucket %s must be a map, got %T", mocker.ErrDispatch, k, raw)
			}
			out[strings.ToUpper(k)] = values
		}
	default:
		return nil, fmt.Errorf("%w: unsupported input %T", mocker.ErrDispatch, v)
	}
	return out, nil
}
